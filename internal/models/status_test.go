package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_Terminal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"running", `{"status":"running","current_process":{"current_step":"parallel_analysis"}}`, ""},
		{"canonical completed", `{"status":"running","final_status":"completed"}`, JobCompleted},
		{"alias completed", `{"status":"completed"}`, JobCompleted},
		{"canonical error", `{"status":"running","final_status":"error"}`, JobError},
		{"alias error", `{"status":"error"}`, JobError},
		{"case and whitespace", `{"final_status":" Completed "}`, JobCompleted},
		{"idle", `{"status":"idle"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s JobStatus
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &s))
			assert.Equal(t, tt.want, s.Terminal())
		})
	}
}

func TestJobStatus_ErrorMessage(t *testing.T) {
	s := JobStatus{Status: JobError}
	assert.Equal(t, "", s.ErrorMessage())

	s.CurrentProcess = &ProcessProgress{Error: "indexing failed"}
	assert.Equal(t, "indexing failed", s.ErrorMessage())

	s.Error = "top level"
	assert.Equal(t, "top level", s.ErrorMessage())
}
