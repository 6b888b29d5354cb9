package models

import "encoding/json"

// TranscriptSourceUser tags transcripts typed into the console.
const TranscriptSourceUser = "user_input"

// Transcript is a free-text meeting or interview transcript.
type Transcript struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// ProcessRequest is the body of POST /api/process.
type ProcessRequest struct {
	ProjectData string       `json:"project_data"`
	TeamInfo    string       `json:"team_info"`
	Files       []string     `json:"files"`
	Transcripts []Transcript `json:"transcripts"`
}

// UploadResponse is the body returned by POST /api/upload.
type UploadResponse struct {
	Status        string   `json:"status"`
	UploadedFiles []string `json:"uploaded_files"`
	Count         int      `json:"count,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// ProcessResponse is the body returned by POST /api/process.
type ProcessResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ProcessStarted is the only status that marks a submission as accepted.
const ProcessStarted = "processing_started"

// UploadSucceeded is the only status that marks an upload as accepted.
const UploadSucceeded = "success"

// HealthResponse is the body returned by GET /api/health.
type HealthResponse struct {
	Status            string `json:"status"`
	Timestamp         string `json:"timestamp,omitempty"`
	OrchestratorReady bool   `json:"orchestrator_ready"`
}

// ClearResponse is the body returned by POST /api/clear.
type ClearResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ComponentResult is the body returned by GET /api/results/{component}.
type ComponentResult struct {
	Component   string          `json:"component"`
	Result      json.RawMessage `json:"result"`
	ProcessInfo ProcessInfo     `json:"process_info"`
}

// AgentInfo is the body of GET /api/agents: orchestrator and per-agent
// descriptions keyed by section.
type AgentInfo map[string]json.RawMessage
