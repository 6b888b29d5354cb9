package models

import "strings"

// Job status values reported by the backend.
const (
	JobProcessing = "processing"
	JobRunning    = "running"
	JobCompleted  = "completed"
	JobError      = "error"
	JobIdle       = "idle"
)

// ProcessProgress is the nested current_process block of a status poll.
type ProcessProgress struct {
	CurrentStep    string `json:"current_step"`
	StepsCompleted int    `json:"steps_completed"`
	TotalSteps     int    `json:"total_steps"`
	Status         string `json:"status,omitempty"`
	Error          string `json:"error,omitempty"`
	StartTime      string `json:"start_time,omitempty"`
}

// JobStatus is one GET /api/status response. Each poll supersedes the
// previous one.
type JobStatus struct {
	// Status is the orchestrator-level status. Deprecated alias of
	// FinalStatus for terminal detection.
	Status string `json:"status"`
	// FinalStatus is the canonical terminal marker.
	FinalStatus    string           `json:"final_status,omitempty"`
	CurrentProcess *ProcessProgress `json:"current_process,omitempty"`
	HasResults     bool             `json:"has_results,omitempty"`
	Error          string           `json:"error,omitempty"`
	Timestamp      string           `json:"timestamp,omitempty"`
}

// Terminal returns the terminal status of the job, or "" while it is still
// running. FinalStatus wins over Status when both are set.
func (s *JobStatus) Terminal() string {
	for _, v := range []string{s.FinalStatus, s.Status} {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case JobCompleted:
			return JobCompleted
		case JobError:
			return JobError
		}
	}
	return ""
}

// ErrorMessage returns the most specific error message carried by the poll.
func (s *JobStatus) ErrorMessage() string {
	if s.Error != "" {
		return s.Error
	}
	if s.CurrentProcess != nil && s.CurrentProcess.Error != "" {
		return s.CurrentProcess.Error
	}
	return ""
}
