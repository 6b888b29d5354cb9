package render

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-optimizer/console/internal/analytics"
	"github.com/project-optimizer/console/internal/models"
	"github.com/project-optimizer/console/internal/testutil"
)

var fixedNow = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func sampleEnvelope(t *testing.T) *models.ResultsEnvelope {
	t.Helper()
	var env models.ResultsEnvelope
	require.NoError(t, json.Unmarshal([]byte(testutil.SampleResultsJSON), &env))
	return &env
}

func newTestRenderer(opts Options) *Renderer {
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return NewRenderer(opts, nil)
}

func sectionByID(t *testing.T, sections []Section, id string) Section {
	t.Helper()
	for _, s := range sections {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("section %q not found", id)
	return Section{}
}

func TestRender_OrderAndAvailability(t *testing.T) {
	r := newTestRenderer(Options{Markdown: NewGoldmark()})
	sections := r.Render(context.Background(), sampleEnvelope(t))

	var ids []string
	for _, s := range sections {
		ids = append(ids, s.ID)
		assert.True(t, s.Available, "section %s should render", s.ID)
		assert.Empty(t, s.Error, "section %s", s.ID)
		assert.NotEmpty(t, s.HTML, "section %s", s.ID)
	}
	assert.Equal(t, []string{
		SectionOverview, SectionBlueprint, SectionMarket, SectionOptimization,
		SectionEcho, SectionSynthesis, SectionActionPlan, SectionDashboard,
	}, ids)
}

func TestRender_FailedBlueprintKeepsSiblings(t *testing.T) {
	env := sampleEnvelope(t)
	env.Results[models.AgentBlueprint] = json.RawMessage(`{"status":"error","error":"llm timeout"}`)

	r := newTestRenderer(Options{})
	sections := r.Render(context.Background(), env)
	require.Len(t, sections, 8)

	bp := sectionByID(t, sections, SectionBlueprint)
	assert.False(t, bp.Available)
	assert.Contains(t, string(bp.HTML), "not available")

	for _, s := range sections {
		if s.ID == SectionBlueprint {
			continue
		}
		assert.True(t, s.Available, "sibling %s should still render", s.ID)
	}
}

func TestRender_MissingAgentsArePlaceholders(t *testing.T) {
	r := newTestRenderer(Options{})
	sections := r.Render(context.Background(), &models.ResultsEnvelope{})

	for _, s := range sections {
		switch s.ID {
		case SectionOverview, SectionDashboard:
			assert.True(t, s.Available, s.ID)
		default:
			assert.False(t, s.Available, s.ID)
			assert.Empty(t, s.Error, s.ID)
		}
	}

	// the dashboard never renders an empty insights panel
	dash := sectionByID(t, sections, SectionDashboard)
	assert.Contains(t, string(dash.HTML), "Validate the core problem")
}

func TestRender_SucceededWithoutPayloadIsRenderError(t *testing.T) {
	env := &models.ResultsEnvelope{Results: models.ResultBundle{
		models.AgentSynthesis: json.RawMessage(`{"status":"success"}`),
	}}
	sections := newTestRenderer(Options{}).Render(context.Background(), env)

	syn := sectionByID(t, sections, SectionSynthesis)
	assert.False(t, syn.Available)
	assert.Contains(t, syn.Error, "result has no payload")
}

func TestRender_Overview(t *testing.T) {
	sections := newTestRenderer(Options{}).Render(context.Background(), sampleEnvelope(t))
	html := string(sectionByID(t, sections, SectionOverview).HTML)

	assert.Contains(t, html, "completed")
	assert.Contains(t, html, "2025-03-01 10:00:00")
	assert.Contains(t, html, "4m30s")
	assert.Contains(t, html, "7 succeeded, 1 failed of 8")
	assert.NotContains(t, html, "<td>indexing</td>")
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		info models.ProcessInfo
		want string
	}{
		{"end minus start", models.ProcessInfo{StartTime: "2025-01-01T10:00:00", EndTime: "2025-01-01T10:01:05", TotalDuration: 999}, "1m5s"},
		{"falls back to total", models.ProcessInfo{StartTime: "2025-01-01T10:00:00", TotalDuration: 42.4}, "42s"},
		{"nothing", models.ProcessInfo{}, models.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, duration(tt.info))
		})
	}
}

func TestRender_BlueprintVariants(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		want    string
		notWant string
	}{
		{
			name:  "diagram",
			entry: `{"status":"success","blueprint":{"text":"plan","architecture_image":{"ascii_diagram":"[a] -> [b]","detailed_description":"ignored"}}}`,
			want:  `<pre class="diagram">[a] -&gt; [b]</pre>`, notWant: "ignored",
		},
		{
			name:  "image",
			entry: `{"status":"success","blueprint":{"architecture_image":{"image_base64":"iVBORw0KGgo="}}}`,
			want:  `src="data:image/png;base64,iVBORw0KGgo="`,
		},
		{
			name:  "description",
			entry: `{"status":"success","blueprint":{"architecture_image":{"detailed_description":"Layered **design**"}}}`,
			want:  "<strong>design</strong>",
		},
		{
			name:  "absent",
			entry: `{"status":"success","blueprint":{"text":"just text"}}`,
			want:  "No architecture representation was produced.",
		},
		{
			name:  "unsafe image url",
			entry: `{"status":"success","blueprint":{"architecture_image":{"image_url":"javascript:alert(1)"}}}`,
			want:  "could not be displayed", notWant: "javascript:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &models.ResultsEnvelope{Results: models.ResultBundle{models.AgentBlueprint: json.RawMessage(tt.entry)}}
			s := sectionByID(t, newTestRenderer(Options{}).Render(context.Background(), env), SectionBlueprint)
			require.True(t, s.Available)
			assert.Contains(t, string(s.HTML), tt.want)
			if tt.notWant != "" {
				assert.NotContains(t, string(s.HTML), tt.notWant)
			}
		})
	}
}

func TestRender_MarketCapsCards(t *testing.T) {
	var list []map[string]any
	for i := 0; i < 20; i++ {
		list = append(list, map[string]any{"name": "proj", "stargazers_count": 10})
	}
	entry, _ := json.Marshal(map[string]any{
		"status":   "success",
		"research": map[string]any{"github_projects": list},
	})
	env := &models.ResultsEnvelope{Results: models.ResultBundle{models.AgentCrawler: entry}}

	s := sectionByID(t, newTestRenderer(Options{}).Render(context.Background(), env), SectionMarket)
	html := string(s.HTML)
	assert.Equal(t, MaxProjectCards, strings.Count(html, `class="project-card"`))
	assert.Contains(t, html, "Showing 12 of 20 projects.")
	// missing optional fields render as unknown
	assert.Contains(t, html, "License: unknown")
	assert.Contains(t, html, "Updated: unknown")
}

func TestRender_MarketSample(t *testing.T) {
	s := sectionByID(t, newTestRenderer(Options{}).Render(context.Background(), sampleEnvelope(t)), SectionMarket)
	html := string(s.HTML)

	assert.Contains(t, html, `href="https://github.com/wekan/wekan"`)
	assert.Contains(t, html, "License: MIT License")
	assert.Contains(t, html, "Stars: 21000")
	assert.Contains(t, html, "Visual work management at scale")
	assert.Contains(t, html, "Keywords: kanban, hardware, project board")
}

func TestRender_ComponentsSections(t *testing.T) {
	sections := newTestRenderer(Options{}).Render(context.Background(), sampleEnvelope(t))

	opt := string(sectionByID(t, sections, SectionOptimization).HTML)
	assert.Contains(t, opt, "<h3>Business</h3>")
	assert.Contains(t, opt, "<h3>Technical</h3>")
	assert.Contains(t, opt, "Use an event log for board history.")
	assert.Less(t, strings.Index(opt, "Business"), strings.Index(opt, "Technical"))

	echo := string(sectionByID(t, sections, SectionEcho).HTML)
	assert.Contains(t, echo, "Assumption Challenges")
	assert.Contains(t, echo, "yet another board?")

	plan := string(sectionByID(t, sections, SectionActionPlan).HTML)
	assert.Contains(t, plan, "Timeline: 12 weeks")
	assert.Contains(t, plan, "<strong>five</strong>")

	syn := string(sectionByID(t, sections, SectionSynthesis).HTML)
	assert.Contains(t, syn, "<em>real</em>")
	assert.Contains(t, syn, "<li>Risks</li>")
}

type brokenAggregator struct{}

func (brokenAggregator) Aggregate(context.Context, []models.Project, time.Time) (*analytics.Aggregates, error) {
	return nil, errors.New("aggregation backend unavailable")
}

type panickingAggregator struct{}

func (panickingAggregator) Aggregate(context.Context, []models.Project, time.Time) (*analytics.Aggregates, error) {
	panic("unexpected nil map")
}

func TestRender_DashboardDiagnosticPanel(t *testing.T) {
	for name, agg := range map[string]Options{
		"error": {Charts: brokenAggregator{}},
		"panic": {Charts: panickingAggregator{}},
	} {
		t.Run(name, func(t *testing.T) {
			sections := newTestRenderer(agg).Render(context.Background(), sampleEnvelope(t))
			dash := sectionByID(t, sections, SectionDashboard)

			assert.True(t, dash.Available)
			assert.NotEmpty(t, dash.Error)
			html := string(dash.HTML)
			assert.Contains(t, html, "could not be generated")
			assert.Contains(t, html, "Raw payload")
			assert.Contains(t, html, "&#34;blueprint&#34;")

			// siblings are unaffected
			assert.True(t, sectionByID(t, sections, SectionMarket).Available)
		})
	}
}

func TestRender_Dashboard(t *testing.T) {
	store, err := analytics.NewProjectStore(analytics.Options{}, nil)
	require.NoError(t, err)
	defer store.Close()

	sections := newTestRenderer(Options{Charts: store}).Render(context.Background(), sampleEnvelope(t))
	html := string(sectionByID(t, sections, SectionDashboard).HTML)

	assert.Contains(t, html, "7/8")
	assert.Contains(t, html, "6/10")
	assert.Contains(t, html, "MEDIUM")
	assert.Contains(t, html, "Overall the project is viable.")
	assert.Contains(t, html, "data-charts=")
	assert.Equal(t, 5, strings.Count(html[strings.Index(html, "Key insights"):strings.Index(html, "Priority actions")], "<li>"))
}

func TestPage(t *testing.T) {
	env := sampleEnvelope(t)
	env.Results[models.AgentEcho] = json.RawMessage(`{"status":"error"}`)
	sections := newTestRenderer(Options{}).Render(context.Background(), env)
	metrics := models.DerivedMetrics{MarketScore: 6, RiskLevel: models.RiskMedium}

	page, err := Page(sections, &metrics)
	require.NoError(t, err)
	html := string(page)

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, `<section id="overview">`)
	assert.Contains(t, html, `<a href="#echo" class="unavailable">`)
	assert.Contains(t, html, "Market score 6/10")

	_, err = Page(nil, nil)
	assert.NoError(t, err)
}
