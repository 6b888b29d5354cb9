// Package session owns the console's job lifecycle: staged files are
// uploaded, the job is submitted, a single poller tracks progress and the
// results are fetched once the backend reports completion.
package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/project-optimizer/console/internal/apperr"
	"github.com/project-optimizer/console/internal/backend"
	"github.com/project-optimizer/console/internal/models"
)

// DefaultPollInterval is the status poll period.
const DefaultPollInterval = 2 * time.Second

// submissionCancelled is returned when a job is cancelled or superseded
// before polling starts.
const submissionCancelled = "Submission was cancelled"

// Backend is the part of the analysis service the controller drives.
type Backend interface {
	Upload(ctx context.Context, files []backend.UploadFile) ([]string, error)
	Process(ctx context.Context, req models.ProcessRequest) (*models.ProcessResponse, error)
	Status(ctx context.Context) (*models.JobStatus, error)
	Results(ctx context.Context) (*models.ResultsEnvelope, error)
	Clear(ctx context.Context) error
}

// Files is the staged file selection.
type Files interface {
	Files() []models.UploadedFile
	Open(id string) (io.ReadCloser, error)
	Discard(ids ...string)
	Clear()
}

// SubmitInput is what the user typed into the form.
type SubmitInput struct {
	ProjectDescription string `json:"projectDescription"`
	TeamInfo           string `json:"teamInfo"`
	Transcript         string `json:"transcript"`
}

// Options configures a Controller.
type Options struct {
	PollInterval time.Duration
	Now          func() time.Time
}

// Controller is the single owner of session state. All fields below mu are
// guarded by it.
type Controller struct {
	backend  Backend
	files    Files
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	// activePollers counts running poll goroutines.
	activePollers atomic.Int32

	mu          sync.Mutex
	id          string
	generation  uint64
	phase       models.Phase
	processing  bool
	cancelPoll  context.CancelFunc
	pollDone    chan struct{}
	tracker     *Tracker
	notice      *models.Notice
	results     *models.ResultsEnvelope
	submittedAt *time.Time
	completedAt *time.Time
	polls       int
	sent        []string // ids of the staged files sent with the job
	observers   map[int]chan models.Snapshot
	nextObs     int
}

// NewController creates a Controller in the input phase.
func NewController(b Backend, files Files, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		backend:   b,
		files:     files,
		logger:    logger.With("component", "session"),
		interval:  opts.PollInterval,
		now:       opts.Now,
		phase:     models.PhaseInput,
		tracker:   NewTracker(),
		observers: make(map[int]chan models.Snapshot),
	}
}

// Submit uploads staged files, starts the job and, on success, starts the
// status poller. It returns a Busy error while a job is running and a
// Validation error, without touching the network, when the project
// description is blank.
func (c *Controller) Submit(ctx context.Context, in SubmitInput) error {
	const op = "session.submit"

	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return apperr.New(apperr.Busy, op, "A job is already running")
	}
	if strings.TrimSpace(in.ProjectDescription) == "" {
		err := apperr.New(apperr.Validation, op, "Please provide a project description")
		c.setNoticeLocked(err)
		c.mu.Unlock()
		c.publish()
		return err
	}

	c.stopPollerLocked()
	c.processing = true
	c.generation++
	gen := c.generation
	c.id = uuid.New().String()
	c.results = nil
	c.notice = nil
	c.completedAt = nil
	c.submittedAt = nil
	c.polls = 0
	c.tracker = NewTracker()

	staged := c.files.Files()
	c.sent = make([]string, len(staged))
	for i, f := range staged {
		c.sent[i] = f.ID
	}
	c.phase = models.PhaseSubmitting
	if len(staged) > 0 {
		c.phase = models.PhaseUploading
	}
	logger := c.logger.With("job", c.id[:8])
	c.mu.Unlock()
	c.publish()

	var paths []string
	if len(staged) > 0 {
		var err error
		if paths, err = c.upload(ctx, staged); err != nil {
			logger.Warn("upload failed", "files", len(staged), "error", err)
			return c.fail(gen, err)
		}
		logger.Info("files uploaded", "files", len(paths))

		if !c.setPhase(gen, models.PhaseSubmitting) {
			return apperr.New(apperr.Busy, op, submissionCancelled)
		}
	}

	req := models.ProcessRequest{
		ProjectData: in.ProjectDescription,
		TeamInfo:    in.TeamInfo,
		Files:       paths,
		Transcripts: transcripts(in.Transcript),
	}
	if _, err := c.backend.Process(ctx, req); err != nil {
		logger.Warn("process request failed", "error", err)
		return c.fail(gen, err)
	}

	c.mu.Lock()
	if gen != c.generation || !c.processing {
		c.mu.Unlock()
		logger.Info("submission cancelled before polling started")
		return apperr.New(apperr.Busy, op, submissionCancelled)
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	now := c.now()
	c.cancelPoll = cancel
	c.pollDone = done
	c.phase = models.PhaseProcessing
	c.submittedAt = &now
	c.mu.Unlock()

	logger.Info("job started", "files", len(paths), "poll_interval", c.interval)
	c.publish()

	go c.poll(pollCtx, gen, done, logger)
	return nil
}

// transcripts wraps typed text as a single user transcript, or none.
func transcripts(text string) []models.Transcript {
	if strings.TrimSpace(text) == "" {
		return []models.Transcript{}
	}
	return []models.Transcript{{Content: text, Source: models.TranscriptSourceUser}}
}

func (c *Controller) upload(ctx context.Context, staged []models.UploadedFile) ([]string, error) {
	parts := make([]backend.UploadFile, 0, len(staged))
	defer func() {
		for _, p := range parts {
			if rc, ok := p.Content.(io.Closer); ok {
				rc.Close()
			}
		}
	}()

	for _, f := range staged {
		rc, err := c.files.Open(f.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, "session.upload", "Could not read "+f.Name, err)
		}
		parts = append(parts, backend.UploadFile{Name: f.Name, Content: rc})
	}
	return c.backend.Upload(ctx, parts)
}

// Cancel stops polling and returns to the input phase. It is a no-op when
// nothing is running.
func (c *Controller) Cancel() {
	c.mu.Lock()
	wasProcessing := c.processing
	c.stopPollerLocked()
	if wasProcessing {
		c.generation++
	}
	c.processing = false
	if c.phase != models.PhaseCompleted {
		c.phase = models.PhaseInput
	}
	c.mu.Unlock()

	if wasProcessing {
		c.logger.Info("job cancelled")
		c.publish()
	}
}

// Clear cancels any running job, asks the backend to drop its results and
// resets the session.
func (c *Controller) Clear(ctx context.Context) error {
	c.Cancel()

	if err := c.backend.Clear(ctx); err != nil {
		c.mu.Lock()
		c.setNoticeLocked(err)
		c.mu.Unlock()
		c.publish()
		return err
	}

	c.mu.Lock()
	c.generation++
	c.phase = models.PhaseInput
	c.results = nil
	c.notice = nil
	c.tracker = NewTracker()
	c.submittedAt = nil
	c.completedAt = nil
	c.polls = 0
	c.mu.Unlock()

	c.files.Clear()
	c.logger.Info("session cleared")
	c.publish()
	return nil
}

// DismissNotice clears the error surface.
func (c *Controller) DismissNotice() {
	c.mu.Lock()
	had := c.notice != nil
	c.notice = nil
	c.mu.Unlock()
	if had {
		c.publish()
	}
}

// Processing reports whether a job is running.
func (c *Controller) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// Results returns the results of the last completed job.
func (c *Controller) Results() (*models.ResultsEnvelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results, c.results != nil
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() models.Snapshot {
	files := c.files.Files()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(files)
}

func (c *Controller) snapshotLocked(files []models.UploadedFile) models.Snapshot {
	s := models.Snapshot{
		ID:          c.id,
		Phase:       c.phase,
		Processing:  c.processing,
		Progress:    c.tracker.Progress(),
		Files:       files,
		HasResults:  c.results != nil,
		SubmittedAt: c.submittedAt,
		CompletedAt: c.completedAt,
		Polls:       c.polls,
	}
	if s.Files == nil {
		s.Files = []models.UploadedFile{}
	}
	if c.notice != nil {
		n := *c.notice
		s.Notice = &n
	}
	return s
}

// Subscribe registers for snapshots published on every state change. The
// returned func unsubscribes. Slow subscribers miss intermediate snapshots.
func (c *Controller) Subscribe() (<-chan models.Snapshot, func()) {
	ch := make(chan models.Snapshot, 8)

	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// NotifyFilesChanged publishes a snapshot after the selection changed.
func (c *Controller) NotifyFilesChanged() {
	c.publish()
}

func (c *Controller) publish() {
	files := c.files.Files()

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.observers) == 0 {
		return
	}
	snap := c.snapshotLocked(files)
	for _, ch := range c.observers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// fail records err as the current notice and returns to input, unless the
// job was superseded in the meantime. It returns err.
func (c *Controller) fail(gen uint64, err error) error {
	c.mu.Lock()
	if gen == c.generation {
		c.stopPollerLocked()
		c.processing = false
		c.phase = models.PhaseInput
		c.setNoticeLocked(err)
	}
	c.mu.Unlock()
	c.publish()
	return err
}

func (c *Controller) setPhase(gen uint64, phase models.Phase) bool {
	c.mu.Lock()
	ok := gen == c.generation && c.processing
	if ok {
		c.phase = phase
	}
	c.mu.Unlock()
	if ok {
		c.publish()
	}
	return ok
}

func (c *Controller) setNoticeLocked(err error) {
	kind := string(apperr.KindOf(err))
	if kind == "" {
		kind = string(apperr.Server)
	}
	c.notice = &models.Notice{
		Kind:      kind,
		Message:   apperr.UserMessage(err),
		CreatedAt: c.now(),
	}
}

// stopPollerLocked cancels the running poller, if any. pollDone is kept so
// callers can still wait for the goroutine to exit.
func (c *Controller) stopPollerLocked() {
	if c.cancelPoll != nil {
		c.cancelPoll()
		c.cancelPoll = nil
	}
}

// waitPoller blocks until the most recent poller goroutine exits.
func (c *Controller) waitPoller() {
	c.mu.Lock()
	done := c.pollDone
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Shutdown stops polling and waits for the poller to exit.
func (c *Controller) Shutdown() {
	c.Cancel()
	c.waitPoller()
}

// ActivePollers returns the number of running poll goroutines.
func (c *Controller) ActivePollers() int {
	return int(c.activePollers.Load())
}
