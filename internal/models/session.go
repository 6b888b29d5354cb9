package models

import "time"

// Phase is the console's position in the job lifecycle.
type Phase string

const (
	PhaseInput      Phase = "input"
	PhaseUploading  Phase = "uploading"
	PhaseSubmitting Phase = "submitting"
	PhaseProcessing Phase = "processing"
	PhaseCompleted  Phase = "completed"
)

// StepState is the display state of one progress indicator.
type StepState string

const (
	StepPending   StepState = "pending"
	StepActive    StepState = "active"
	StepCompleted StepState = "completed"
)

// StepIndicator is one entry of the fixed six-stage progress strip.
type StepIndicator struct {
	Key   string    `json:"key"`
	Label string    `json:"label"`
	State StepState `json:"state"`
}

// Progress is the progress view derived from the latest poll.
type Progress struct {
	Percent        int             `json:"percent"` // 0-100
	CurrentStep    string          `json:"currentStep"`
	CurrentLabel   string          `json:"currentLabel"`
	StepsCompleted int             `json:"stepsCompleted"`
	TotalSteps     int             `json:"totalSteps"`
	Steps          []StepIndicator `json:"steps"`
}

// Notice is the single dismissible error surface.
type Notice struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot is a point-in-time copy of the console session state.
type Snapshot struct {
	ID          string         `json:"id"`
	Phase       Phase          `json:"phase"`
	Processing  bool           `json:"processing"`
	Progress    Progress       `json:"progress"`
	Files       []UploadedFile `json:"files"`
	Notice      *Notice        `json:"notice,omitempty"`
	HasResults  bool           `json:"hasResults"`
	SubmittedAt *time.Time     `json:"submittedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Polls       int            `json:"polls"`
}
