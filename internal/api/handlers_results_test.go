package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/project-optimizer/console/internal/models"
	"github.com/project-optimizer/console/internal/render"
	"github.com/project-optimizer/console/internal/testutil"
)

func TestResults_NoneYet(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/results", "/report", "/api/export/msgpack"} {
		rec := env.do(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "NOT_FOUND", decodeAPIError(t, rec).Code, path)
	}
}

func TestResults(t *testing.T) {
	env := newTestEnv(t)
	env.complete(t)

	rec := env.do(http.MethodGet, "/api/results", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sections, 8)
	assert.Equal(t, render.SectionOverview, resp.Sections[0].ID)
	assert.Equal(t, render.SectionDashboard, resp.Sections[7].ID)
	assert.Equal(t, models.DerivedMetrics{
		SuccessfulAgents: 7,
		TotalAgents:      8,
		CompetitorCount:  3,
		MarketScore:      6,
		RiskLevel:        models.RiskMedium,
	}, resp.Metrics)
	assert.Equal(t, "completed", resp.ProcessInfo.Status)
}

func TestReport(t *testing.T) {
	env := newTestEnv(t)
	env.complete(t)

	rec := env.do(http.MethodGet, "/report", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), render.PageTitle)
	assert.Contains(t, rec.Body.String(), "Market score 6/10")
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	env.complete(t)

	rec := env.do(http.MethodGet, "/api/export/json", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="project-optimizer-json.json"`)
	assert.JSONEq(t, testutil.SampleResultsJSON, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/export/SUMMARY", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "process_summary")

	rec = env.do(http.MethodGet, "/api/export/pdf", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Page-Count"))

	rec = env.do(http.MethodGet, "/api/export/msgpack", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var decoded map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Contains(t, decoded, "results")
	assert.Contains(t, decoded, "process_info")

	rec = env.do(http.MethodGet, "/api/export/xml", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeAPIError(t, rec).Code)
}

func TestExport_UnreadablePDF(t *testing.T) {
	env := newTestEnv(t)
	env.fake.SetPDF([]byte("%PDF-1.4 truncated"))

	rec := env.do(http.MethodGet, "/api/export/pdf", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Backend returned an unreadable PDF report", decodeAPIError(t, rec).Message)
}

func TestGetComponent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/results/synthesis", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res models.ComponentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "synthesis", res.Component)
	assert.True(t, json.Valid(res.Result))
	assert.Equal(t, 1, env.fake.Calls("/api/results/synthesis"))

	rec = env.do(http.MethodGet, "/api/results/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Contains(t, apiErr.Message, "unknown")
}

func TestGetAgents(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/agents", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var agents models.AgentInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	assert.Contains(t, agents, "orchestrator")
	assert.Contains(t, agents, "agents")

	env.fake.Close()
	rec = env.do(http.MethodGet, "/api/agents", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "BAD_GATEWAY", decodeAPIError(t, rec).Code)
}
