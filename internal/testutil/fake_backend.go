// fake_backend.go - Scripted analysis backend for testing
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/project-optimizer/console/internal/models"
)

// FakeBackend serves the analysis backend REST contract from canned bodies.
// The status endpoint walks through a scripted sequence and repeats the last
// entry once the sequence is exhausted.
type FakeBackend struct {
	Server *httptest.Server

	mu           sync.Mutex
	calls        map[string]int
	statuses     []scripted
	statusIdx    int
	uploadCode   int
	uploadBody   string
	processCode  int
	processBody  string
	processGate  chan struct{}
	release      func()
	resultsBody  string
	pdf          []byte
	lastProcess  models.ProcessRequest
	uploadedName []string
}

type scripted struct {
	code int
	body string
}

// NewFakeBackend starts a fake backend that is closed when the test ends.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		calls:       make(map[string]int),
		uploadCode:  http.StatusOK,
		processCode: http.StatusOK,
		processBody: `{"status":"processing_started","message":"Project processing started in background"}`,
		resultsBody: SampleResultsJSON,
		pdf:         MinimalPDF(2),
		statuses:    []scripted{{http.StatusOK, StatusJSON("initializing", 0, 6, "running", "")}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", f.handleHealth)
	mux.HandleFunc("POST /api/upload", f.handleUpload)
	mux.HandleFunc("POST /api/process", f.handleProcess)
	mux.HandleFunc("GET /api/status", f.handleStatus)
	mux.HandleFunc("GET /api/results", f.handleResults)
	mux.HandleFunc("GET /api/results/{component}", f.handleComponent)
	mux.HandleFunc("GET /api/agents", f.handleAgents)
	mux.HandleFunc("POST /api/clear", f.handleClear)
	mux.HandleFunc("GET /api/export/{format}", f.handleExport)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// URL returns the base URL of the fake.
func (f *FakeBackend) URL() string { return f.Server.URL }

// Close releases any blocked handler and shuts the server down.
func (f *FakeBackend) Close() {
	f.mu.Lock()
	release := f.release
	f.mu.Unlock()
	if release != nil {
		release()
	}
	f.Server.Close()
}

// SetStatusSequence scripts the bodies returned by successive status polls.
func (f *FakeBackend) SetStatusSequence(bodies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = f.statuses[:0]
	for _, b := range bodies {
		f.statuses = append(f.statuses, scripted{http.StatusOK, b})
	}
	f.statusIdx = 0
}

// AppendStatus adds one scripted status response with an explicit code.
func (f *FakeBackend) AppendStatus(code int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, scripted{code, body})
}

// SetUploadResponse overrides the upload response.
func (f *FakeBackend) SetUploadResponse(code int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCode, f.uploadBody = code, body
}

// SetProcessResponse overrides the process response.
func (f *FakeBackend) SetProcessResponse(code int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processCode, f.processBody = code, body
}

// BlockProcess makes process requests wait until the returned func is called.
func (f *FakeBackend) BlockProcess() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	var once sync.Once
	f.processGate = gate
	f.release = func() { once.Do(func() { close(gate) }) }
	return f.release
}

// SetResults overrides the results body.
func (f *FakeBackend) SetResults(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultsBody = body
}

// SetPDF overrides the bytes served by the pdf export.
func (f *FakeBackend) SetPDF(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pdf = b
}

// Calls returns how many requests hit the given path.
func (f *FakeBackend) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// TotalCalls returns the number of requests served.
func (f *FakeBackend) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// LastProcessRequest returns the body of the most recent process request.
func (f *FakeBackend) LastProcessRequest() models.ProcessRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastProcess
}

// UploadedNames returns the file names received by the upload endpoint.
func (f *FakeBackend) UploadedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploadedName...)
}

func (f *FakeBackend) count(r *http.Request) {
	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

func (f *FakeBackend) handleHealth(w http.ResponseWriter, r *http.Request) {
	f.count(r)
	writeJSON(w, http.StatusOK, `{"status":"healthy","orchestrator_ready":true}`)
}

func (f *FakeBackend) handleUpload(w http.ResponseWriter, r *http.Request) {
	f.count(r)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"error":"No files provided"}`)
		return
	}

	var names, paths []string
	for _, fh := range r.MultipartForm.File["files"] {
		names = append(names, fh.Filename)
		paths = append(paths, "uploads/"+fh.Filename)
	}

	f.mu.Lock()
	f.uploadedName = append(f.uploadedName, names...)
	code, body := f.uploadCode, f.uploadBody
	f.mu.Unlock()

	if body == "" {
		out, _ := json.Marshal(models.UploadResponse{Status: "success", UploadedFiles: paths, Count: len(paths)})
		body = string(out)
	}
	writeJSON(w, code, body)
}

func (f *FakeBackend) handleProcess(w http.ResponseWriter, r *http.Request) {
	f.count(r)

	var req models.ProcessRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.lastProcess = req
	gate := f.processGate
	code, body := f.processCode, f.processBody
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, code, body)
}

func (f *FakeBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	f.count(r)

	f.mu.Lock()
	s := f.statuses[len(f.statuses)-1]
	if f.statusIdx < len(f.statuses) {
		s = f.statuses[f.statusIdx]
		f.statusIdx++
	}
	f.mu.Unlock()

	writeJSON(w, s.code, s.body)
}

func (f *FakeBackend) handleResults(w http.ResponseWriter, r *http.Request) {
	f.count(r)
	f.mu.Lock()
	body := f.resultsBody
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, body)
}

func (f *FakeBackend) handleComponent(w http.ResponseWriter, r *http.Request) {
	f.count(r)
	component := r.PathValue("component")

	f.mu.Lock()
	body := f.resultsBody
	f.mu.Unlock()

	var env models.ResultsEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil || !env.Results.Has(component) {
		writeJSON(w, http.StatusNotFound, fmt.Sprintf(`{"error":"Component '%s' not found"}`, component))
		return
	}
	out, _ := json.Marshal(models.ComponentResult{Component: component, Result: env.Results[component], ProcessInfo: env.ProcessInfo})
	writeJSON(w, http.StatusOK, string(out))
}

func (f *FakeBackend) handleAgents(w http.ResponseWriter, r *http.Request) {
	f.count(r)
	writeJSON(w, http.StatusOK, `{"orchestrator":{"name":"OptimizerOrchestrator","version":"1.0.0"},"agents":{"blueprint":{"name":"BlueprintAgent"}}}`)
}

func (f *FakeBackend) handleClear(w http.ResponseWriter, r *http.Request) {
	f.count(r)
	f.mu.Lock()
	f.statusIdx = 0
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, `{"status":"cleared","message":"Results and processing state cleared"}`)
}

func (f *FakeBackend) handleExport(w http.ResponseWriter, r *http.Request) {
	f.count(r)

	f.mu.Lock()
	results, pdf := f.resultsBody, f.pdf
	f.mu.Unlock()

	switch strings.ToLower(r.PathValue("format")) {
	case "json":
		writeJSON(w, http.StatusOK, results)
	case "summary":
		writeJSON(w, http.StatusOK, `{"process_summary":{"status":"completed"},"agent_results":{"blueprint":"success"}}`)
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
	default:
		writeJSON(w, http.StatusBadRequest, fmt.Sprintf(`{"error":"Unsupported export format: %s"}`, r.PathValue("format")))
	}
}

// StatusJSON builds a status poll body. An empty finalStatus is omitted.
func StatusJSON(step string, completed, total int, status, finalStatus string) string {
	s := models.JobStatus{
		Status:      status,
		FinalStatus: finalStatus,
		CurrentProcess: &models.ProcessProgress{
			CurrentStep:    step,
			StepsCompleted: completed,
			TotalSteps:     total,
			Status:         status,
		},
	}
	out, _ := json.Marshal(s)
	return string(out)
}
