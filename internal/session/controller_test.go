package session

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-optimizer/console/internal/apperr"
	"github.com/project-optimizer/console/internal/backend"
	"github.com/project-optimizer/console/internal/models"
	"github.com/project-optimizer/console/internal/testutil"
	"github.com/project-optimizer/console/internal/upload"
)

const testInterval = 10 * time.Millisecond

type fixture struct {
	ctrl  *Controller
	fake  *testutil.FakeBackend
	files *upload.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := testutil.NewFakeBackend(t)
	client := backend.NewClient(backend.Options{BaseURL: fake.URL()}, nil)
	files := upload.NewManager(testutil.NewMockStorage(), upload.Options{}, nil)
	ctrl := NewController(client, files, Options{PollInterval: testInterval}, nil)
	t.Cleanup(ctrl.Shutdown)
	return &fixture{ctrl: ctrl, fake: fake, files: files}
}

func (f *fixture) stage(t *testing.T, name, body string) {
	t.Helper()
	res := f.files.Select([]upload.Candidate{{
		Name: name,
		Size: int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}})
	require.Len(t, res.Accepted, 1)
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	require.Eventually(t, func() bool { return !c.Processing() }, 2*time.Second, testInterval)
	c.waitPoller()
}

func TestSubmit_BlankDescription(t *testing.T) {
	f := newFixture(t)

	for _, desc := range []string{"", "   \n\t"} {
		err := f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: desc})
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.Validation))
	}

	assert.Zero(t, f.fake.TotalCalls())
	snap := f.ctrl.Snapshot()
	assert.False(t, snap.Processing)
	assert.Equal(t, models.PhaseInput, snap.Phase)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, "Please provide a project description", snap.Notice.Message)
}

func TestSubmit_CompletesAndFetchesResultsOnce(t *testing.T) {
	f := newFixture(t)
	f.fake.SetStatusSequence(
		testutil.StatusJSON("parallel_analysis", 2, 6, "running", ""),
		testutil.StatusJSON("completed", 6, 6, "completed", "completed"),
	)
	f.stage(t, "deck.pdf", "%PDF-1.4 deck")

	err := f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "A kanban board for hardware teams"})
	require.NoError(t, err)
	assert.True(t, f.ctrl.Processing())

	waitIdle(t, f.ctrl)

	snap := f.ctrl.Snapshot()
	assert.Equal(t, models.PhaseCompleted, snap.Phase)
	assert.Equal(t, 100, snap.Progress.Percent)
	assert.True(t, snap.HasResults)
	assert.Nil(t, snap.Notice)
	assert.Empty(t, snap.Files, "selection is cleared after completion")
	assert.Equal(t, 2, snap.Polls)
	for _, s := range snap.Progress.Steps {
		assert.Equal(t, models.StepCompleted, s.State, s.Key)
	}

	assert.Equal(t, 1, f.fake.Calls("/api/results"))
	assert.Equal(t, []string{"deck.pdf"}, f.fake.UploadedNames())
	assert.Equal(t, []string{"uploads/deck.pdf"}, f.fake.LastProcessRequest().Files)

	res, ok := f.ctrl.Results()
	require.True(t, ok)
	assert.True(t, res.Results.Succeeded(models.AgentBlueprint))

	// No further polling once complete.
	polls := f.fake.Calls("/api/status")
	time.Sleep(5 * testInterval)
	assert.Equal(t, polls, f.fake.Calls("/api/status"))
	assert.Zero(t, f.ctrl.ActivePollers())
}

func TestSubmit_DeprecatedStatusAlias(t *testing.T) {
	f := newFixture(t)
	f.fake.SetStatusSequence(`{"status":"completed","current_process":{"current_step":"completed","steps_completed":6,"total_steps":6}}`)

	require.NoError(t, f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "x"}))
	waitIdle(t, f.ctrl)

	assert.Equal(t, models.PhaseCompleted, f.ctrl.Snapshot().Phase)
}

func TestSubmit_ServerError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"top level error", `{"status":"error","final_status":"error","error":"LLM quota exceeded"}`, "LLM quota exceeded"},
		{"nested error", `{"status":"running","final_status":"error","current_process":{"current_step":"parallel_analysis","steps_completed":2,"total_steps":6,"error":"crawler timed out"}}`, "crawler timed out"},
		{"no message", `{"status":"error"}`, jobFailedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.fake.SetStatusSequence(tt.body)

			require.NoError(t, f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "x"}))
			waitIdle(t, f.ctrl)

			snap := f.ctrl.Snapshot()
			assert.Equal(t, models.PhaseInput, snap.Phase)
			assert.False(t, snap.HasResults)
			require.NotNil(t, snap.Notice)
			assert.Equal(t, tt.want, snap.Notice.Message)
			assert.Equal(t, string(apperr.Server), snap.Notice.Kind)
			assert.Zero(t, f.fake.Calls("/api/results"))
		})
	}
}

func TestSubmit_TransientPollFailures(t *testing.T) {
	f := newFixture(t)
	f.fake.SetStatusSequence(testutil.StatusJSON("indexing_documents", 1, 6, "running", ""))
	f.fake.AppendStatus(http.StatusInternalServerError, `{"error":"boom"}`)
	f.fake.AppendStatus(http.StatusBadGateway, `not json`)
	f.fake.AppendStatus(http.StatusOK, testutil.StatusJSON("completed", 6, 6, "completed", "completed"))

	require.NoError(t, f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "x"}))
	waitIdle(t, f.ctrl)

	snap := f.ctrl.Snapshot()
	assert.Equal(t, models.PhaseCompleted, snap.Phase)
	assert.Nil(t, snap.Notice)
	assert.Equal(t, 2, snap.Polls, "failed polls are not counted")
	assert.Equal(t, 4, f.fake.Calls("/api/status"))
}

func TestSubmit_Busy(t *testing.T) {
	f := newFixture(t)
	release := f.fake.BlockProcess()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstErr = f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "first"})
	}()

	require.Eventually(t, func() bool { return f.fake.Calls("/api/process") == 1 }, time.Second, time.Millisecond)

	err := f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "second"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Busy))

	release()
	wg.Wait()
	require.NoError(t, firstErr)

	assert.Equal(t, 1, f.fake.Calls("/api/process"))
	assert.Equal(t, "first", f.fake.LastProcessRequest().ProjectData)
	assert.LessOrEqual(t, f.ctrl.ActivePollers(), 1)
}

func TestSubmit_UploadErrorVerbatim(t *testing.T) {
	f := newFixture(t)
	f.fake.SetUploadResponse(http.StatusBadRequest, `{"error":"File type not allowed: deck.pdf"}`)
	f.stage(t, "deck.pdf", "%PDF")

	err := f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "x"})
	require.Error(t, err)

	snap := f.ctrl.Snapshot()
	assert.False(t, snap.Processing)
	assert.Equal(t, models.PhaseInput, snap.Phase)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, "File type not allowed: deck.pdf", snap.Notice.Message)
	assert.Zero(t, f.fake.Calls("/api/process"))
	assert.Len(t, snap.Files, 1, "selection survives a failed submission")
}

func TestSubmit_UploadUnexpectedStatus(t *testing.T) {
	f := newFixture(t)
	f.fake.SetUploadResponse(http.StatusOK, `{"status":"partial","uploaded_files":[]}`)
	f.stage(t, "deck.pdf", "%PDF")

	err := f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "x"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Server))

	snap := f.ctrl.Snapshot()
	assert.False(t, snap.Processing)
	assert.Equal(t, models.PhaseInput, snap.Phase)
	require.NotNil(t, snap.Notice)
	assert.Contains(t, snap.Notice.Message, `status "partial"`)
	assert.Zero(t, f.fake.Calls("/api/process"))
	assert.Zero(t, f.ctrl.ActivePollers())
}

func TestSubmit_CancelledBeforePolling(t *testing.T) {
	f := newFixture(t)
	release := f.fake.BlockProcess()

	errc := make(chan error, 1)
	go func() {
		errc <- f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "x"})
	}()
	require.Eventually(t, func() bool { return f.fake.Calls("/api/process") == 1 }, time.Second, time.Millisecond)

	f.ctrl.Cancel()
	release()

	err := <-errc
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Busy))
	assert.Equal(t, submissionCancelled, apperr.UserMessage(err))
	assert.Zero(t, f.ctrl.ActivePollers())
	assert.Nil(t, f.ctrl.Snapshot().Notice)
}

func TestSubmit_KeepsFilesStagedDuringJob(t *testing.T) {
	f := newFixture(t)
	f.fake.SetStatusSequence(testutil.StatusJSON("parallel_analysis", 2, 6, "running", ""))
	f.stage(t, "deck.pdf", "%PDF")

	require.NoError(t, f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "x"}))
	f.stage(t, "later.txt", "added while the job runs")
	f.fake.SetStatusSequence(testutil.StatusJSON("completed", 6, 6, "completed", "completed"))

	waitIdle(t, f.ctrl)

	snap := f.ctrl.Snapshot()
	assert.Equal(t, models.PhaseCompleted, snap.Phase)
	require.Len(t, snap.Files, 1)
	assert.Equal(t, "later.txt", snap.Files[0].Name)
	assert.Equal(t, []string{"deck.pdf"}, f.fake.UploadedNames())
}

func TestSubmit_ProcessRejected(t *testing.T) {
	f := newFixture(t)
	f.fake.SetProcessResponse(http.StatusOK, `{"status":"already_processing"}`)

	err := f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "x"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Server))
	assert.False(t, f.ctrl.Processing())
	assert.Zero(t, f.ctrl.ActivePollers())
}

func TestSubmit_Transcripts(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       []models.Transcript
	}{
		{"blank", "  \n ", []models.Transcript{}},
		{"text", "Interview with Ana", []models.Transcript{{Content: "Interview with Ana", Source: models.TranscriptSourceUser}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.ctrl.Submit(context.Background(), SubmitInput{
				ProjectDescription: "x",
				TeamInfo:           "two engineers",
				Transcript:         tt.transcript,
			}))
			f.ctrl.Cancel()

			req := f.fake.LastProcessRequest()
			assert.Equal(t, tt.want, req.Transcripts)
			assert.Equal(t, "two engineers", req.TeamInfo)
			assert.Equal(t, []string{}, req.Files)
		})
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)

	f.ctrl.Cancel() // nothing running

	require.NoError(t, f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "x"}))
	f.ctrl.Cancel()
	f.ctrl.Cancel()
	f.ctrl.waitPoller()

	snap := f.ctrl.Snapshot()
	assert.False(t, snap.Processing)
	assert.Equal(t, models.PhaseInput, snap.Phase)
	assert.Zero(t, f.ctrl.ActivePollers())

	polls := f.fake.Calls("/api/status")
	time.Sleep(5 * testInterval)
	assert.Equal(t, polls, f.fake.Calls("/api/status"))

	// A new job can start after cancelling.
	f.fake.SetStatusSequence(testutil.StatusJSON("completed", 6, 6, "completed", "completed"))
	require.NoError(t, f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "y"}))
	waitIdle(t, f.ctrl)
	assert.Equal(t, models.PhaseCompleted, f.ctrl.Snapshot().Phase)
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	f.fake.SetStatusSequence(testutil.StatusJSON("completed", 6, 6, "completed", "completed"))

	require.NoError(t, f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "x"}))
	waitIdle(t, f.ctrl)
	f.stage(t, "notes.txt", "hello")

	require.NoError(t, f.ctrl.Clear(context.Background()))

	snap := f.ctrl.Snapshot()
	assert.Equal(t, models.PhaseInput, snap.Phase)
	assert.False(t, snap.HasResults)
	assert.Empty(t, snap.Files)
	assert.Zero(t, snap.Progress.Percent)
	assert.Equal(t, 1, f.fake.Calls("/api/clear"))
}

func TestDismissNotice(t *testing.T) {
	f := newFixture(t)
	_ = f.ctrl.Submit(context.Background(), SubmitInput{})
	require.NotNil(t, f.ctrl.Snapshot().Notice)

	f.ctrl.DismissNotice()
	assert.Nil(t, f.ctrl.Snapshot().Notice)
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	f.fake.SetStatusSequence(testutil.StatusJSON("completed", 6, 6, "completed", "completed"))

	ch, unsubscribe := f.ctrl.Subscribe()
	defer unsubscribe()

	require.NoError(t, f.ctrl.Submit(context.Background(), SubmitInput{ProjectDescription: "x"}))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if snap.Phase == models.PhaseCompleted {
				assert.True(t, snap.HasResults)
				return
			}
		case <-deadline:
			t.Fatal("no completed snapshot published")
		}
	}
}
