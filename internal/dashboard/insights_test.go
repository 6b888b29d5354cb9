package dashboard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-optimizer/console/internal/models"
)

func TestInsights(t *testing.T) {
	bundle := sampleBundle(t)
	got := Insights(bundle, models.ProjectsFromBundle(bundle))

	require.Len(t, got, MaxItems)
	assert.Equal(t, "Found 3 comparable projects; market saturation looks low.", got[0])
	assert.Equal(t, "Most competitors are built with JavaScript (1 of 3).", got[1])
	assert.Equal(t, "A focused niche with real demand.", got[2])
	assert.Equal(t, "Challenge: Do hardware teams want yet another board?", got[3])
	assert.Equal(t, "The optimizer produced recommendations for 2 areas: business, technical.", got[4])
}

func TestInsights_Fallback(t *testing.T) {
	got := Insights(models.ResultBundle{}, nil)
	assert.Equal(t, fallbackInsights, got)

	// callers may mutate the result without touching the fallback
	got[0] = "changed"
	assert.NotEqual(t, "changed", fallbackInsights[0])
}

func TestPriorityActions(t *testing.T) {
	got := PriorityActions(sampleBundle(t))
	assert.Equal(t, []string{
		"Week 1: interview five teams.",
		"Price per seat.",
		"Use an event log for board history.",
	}, got)
}

func TestPriorityActions_ListMarkersAndCap(t *testing.T) {
	bundle := models.ResultBundle{
		models.AgentActionPlan: json.RawMessage(`{"status":"success","action_plan":{"plan":"Intro line\n- one\n* two\n1. three\n2) four\n+ five\n- six"}}`),
	}
	got := PriorityActions(bundle)
	assert.Equal(t, []string{"one", "two", "three", "four", "five"}, got)
}

func TestPriorityActions_Fallback(t *testing.T) {
	assert.Equal(t, fallbackActions, PriorityActions(models.ResultBundle{}))
}

func TestFirstSentence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"**Bold** start. Second sentence.", "Bold start."},
		{"## Heading\nbody", "Heading"},
		{"no terminator", "no terminator"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, firstSentence(tt.in))
	}

	long := ""
	for i := 0; i < 50; i++ {
		long += "word "
	}
	assert.Equal(t, 160, len([]rune(firstSentence(long))))
}
