package session

import (
	"math"
	"strings"

	"github.com/project-optimizer/console/internal/models"
)

// Step is one backend pipeline stage shown in the progress strip.
type Step struct {
	Key   string
	Label string
}

// Steps are the pipeline stages in execution order. The implicit terminal
// stage "completed" is not shown.
var Steps = []Step{
	{"initializing", "Initializing"},
	{"indexing_documents", "Indexing documents"},
	{"parallel_analysis", "Blueprint & market research"},
	{"optimization_and_echo_analysis", "Optimization & echo-chamber analysis"},
	{"generating_synthesis", "Generating synthesis"},
	{"comprehensive_analysis", "Comprehensive analysis"},
}

// StepCompletedKey is reported as current_step once the pipeline is done.
const StepCompletedKey = "completed"

// Percent returns round(completed/total*100) clamped to [0,100]; 0 when
// total is not positive.
func Percent(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	p := int(math.Round(float64(completed) * 100 / float64(total)))
	if p > 100 {
		return 100
	}
	return p
}

// Tracker folds successive polls of one job into a progress view that never
// regresses: the percentage is non-decreasing and completed steps stay
// completed.
type Tracker struct {
	percent        int
	done           []bool
	current        string
	stepsCompleted int
	totalSteps     int
}

// NewTracker creates a tracker for a new job.
func NewTracker() *Tracker {
	return &Tracker{done: make([]bool, len(Steps)), totalSteps: len(Steps)}
}

// Observe folds one poll into the tracker and returns the resulting view.
func (t *Tracker) Observe(p *models.ProcessProgress) models.Progress {
	if p == nil {
		return t.Progress()
	}

	if p.TotalSteps > 0 {
		t.totalSteps = p.TotalSteps
	}
	if p.StepsCompleted > t.stepsCompleted {
		t.stepsCompleted = p.StepsCompleted
	}
	if pct := Percent(p.StepsCompleted, p.TotalSteps); pct > t.percent {
		t.percent = pct
	}

	step := strings.TrimSpace(p.CurrentStep)
	if step != "" {
		t.current = step
	}
	if step == StepCompletedKey {
		t.markAll()
	}
	for i := range t.done {
		if i < p.StepsCompleted {
			t.done[i] = true
		}
	}

	return t.Progress()
}

// Complete marks the job finished.
func (t *Tracker) Complete() models.Progress {
	t.percent = 100
	t.current = StepCompletedKey
	if t.stepsCompleted < t.totalSteps {
		t.stepsCompleted = t.totalSteps
	}
	t.markAll()
	return t.Progress()
}

func (t *Tracker) markAll() {
	for i := range t.done {
		t.done[i] = true
	}
}

// Progress returns the current view.
func (t *Tracker) Progress() models.Progress {
	out := models.Progress{
		Percent:        t.percent,
		CurrentStep:    t.current,
		CurrentLabel:   stepLabel(t.current),
		StepsCompleted: t.stepsCompleted,
		TotalSteps:     t.totalSteps,
		Steps:          make([]models.StepIndicator, len(Steps)),
	}
	for i, s := range Steps {
		state := models.StepPending
		switch {
		case t.done[i]:
			state = models.StepCompleted
		case s.Key == t.current:
			state = models.StepActive
		}
		out.Steps[i] = models.StepIndicator{Key: s.Key, Label: s.Label, State: state}
	}
	return out
}

func stepLabel(key string) string {
	if key == "" {
		return ""
	}
	if key == StepCompletedKey {
		return "Completed"
	}
	for _, s := range Steps {
		if s.Key == key {
			return s.Label
		}
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	if len(words) > 0 {
		words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	}
	return strings.Join(words, " ")
}
