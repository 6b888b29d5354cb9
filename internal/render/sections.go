package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/project-optimizer/console/internal/apperr"
	"github.com/project-optimizer/console/internal/dashboard"
	"github.com/project-optimizer/console/internal/models"
)

// errUnavailable marks a failed or missing agent entry.
var errUnavailable = errors.New("not available")

// payload returns the agent payload when the agent succeeded.
func payload(bundle models.ResultBundle, agent string) (map[string]any, error) {
	if !bundle.Succeeded(agent) {
		return nil, errUnavailable
	}
	p, ok := bundle.Payload(agent)
	if !ok {
		return nil, apperr.New(apperr.Render, "render."+agent, "result has no payload")
	}
	return p, nil
}

type agentRow struct {
	Name    string
	Status  string
	Success bool
}

type overviewView struct {
	Status    string
	Start     string
	End       string
	Duration  string
	Succeeded int
	Failed    int
	Total     int
	Agents    []agentRow
	Error     string
}

func (r *Renderer) overview(_ context.Context, env *models.ResultsEnvelope) (template.HTML, error) {
	info := env.ProcessInfo
	v := overviewView{
		Status:   orUnknown(info.Status),
		Start:    displayTime(info.StartTime),
		End:      displayTime(info.EndTime),
		Duration: duration(info),
		Error:    info.Error,
	}

	if s := info.Summary; s != nil && s.TotalAgentsRun > 0 {
		v.Succeeded, v.Failed, v.Total = s.SuccessfulAgents, s.FailedAgents, s.TotalAgentsRun
	} else {
		v.Succeeded, v.Total = env.Results.AgentOutcome()
		v.Failed = v.Total - v.Succeeded
	}

	for _, name := range env.Results.Agents() {
		status := orUnknown(env.Results.AgentStatus(name))
		v.Agents = append(v.Agents, agentRow{Name: name, Status: status, Success: status == models.StatusSuccess})
	}

	return execute("overview", v)
}

// duration prefers end minus start and falls back to total_duration.
func duration(info models.ProcessInfo) string {
	start, okStart := models.ParseTimestamp(info.StartTime)
	end, okEnd := models.ParseTimestamp(info.EndTime)
	if okStart && okEnd && !end.Before(start) {
		return end.Sub(start).Round(time.Second).String()
	}
	if info.TotalDuration > 0 {
		return (time.Duration(info.TotalDuration * float64(time.Second))).Round(time.Second).String()
	}
	return models.Unknown
}

func displayTime(s string) string {
	if t, ok := models.ParseTimestamp(s); ok {
		return t.Format("2006-01-02 15:04:05")
	}
	return orUnknown(s)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return models.Unknown
	}
	return s
}

type blueprintView struct {
	Text        template.HTML
	Arch        models.Architecture
	Image       template.URL
	Description template.HTML
	Layers      []layerView
}

type layerView struct {
	Name  string
	Items []string
}

func (r *Renderer) blueprint(_ context.Context, env *models.ResultsEnvelope) (template.HTML, error) {
	p, err := payload(env.Results, models.AgentBlueprint)
	if err != nil {
		return "", err
	}

	arch := models.NormalizeArchitecture(p)
	v := blueprintView{
		Text: r.markdown(models.Str(p, "text", "content", "blueprint")),
		Arch: arch,
	}
	switch arch.Kind {
	case models.ArchitectureDescription:
		v.Description = r.markdown(arch.Description)
	case models.ArchitectureImage:
		// data URIs are produced by NormalizeArchitecture and limited to images
		if strings.HasPrefix(arch.ImageSrc, "data:image/") || safeURL(arch.ImageSrc) != "" {
			v.Image = template.URL(arch.ImageSrc)
		}
	}
	for _, layer := range arch.ComponentLayers() {
		v.Layers = append(v.Layers, layerView{Name: layer, Items: arch.Components[layer]})
	}

	return execute("blueprint", v)
}

type projectCard struct {
	models.Project
	LicenseLabel  string
	LanguageLabel string
	Updated       string
	Description   template.HTML
}

type paperView struct {
	Title string
	URL   string
	Meta  string
}

type marketView struct {
	Total       int
	Shown       int
	Languages   int
	AvgStars    int
	Cards       []projectCard
	Papers      []paperView
	Analysis    template.HTML
	Keywords    []string
	HasProjects bool
}

func (r *Renderer) market(_ context.Context, env *models.ResultsEnvelope) (template.HTML, error) {
	p, err := payload(env.Results, models.AgentCrawler)
	if err != nil {
		return "", err
	}

	projects := models.ProjectsFromResearch(p)
	v := marketView{
		Total:       len(projects),
		Analysis:    r.markdown(models.Str(p, "analysis", "summary")),
		HasProjects: len(projects) > 0,
	}
	if n, ok := models.Num(p, "total_projects_found"); ok && int(n) > v.Total {
		v.Total = int(n)
	}

	langs := make(map[string]struct{})
	stars := 0
	for _, proj := range projects {
		if proj.Language != "" {
			langs[proj.Language] = struct{}{}
		}
		stars += proj.Stars
	}
	v.Languages = len(langs)
	if len(projects) > 0 {
		v.AvgStars = stars / len(projects)
	}

	for i, proj := range projects {
		if i >= MaxProjectCards {
			break
		}
		card := projectCard{
			Project:       proj,
			LicenseLabel:  proj.LicenseOrUnknown(),
			LanguageLabel: proj.LanguageOrUnknown(),
			Updated:       models.Unknown,
			Description:   Fallback(proj.Description),
		}
		if proj.UpdatedAt != nil {
			card.Updated = proj.UpdatedAt.Format("2006-01-02")
		}
		v.Cards = append(v.Cards, card)
	}
	v.Shown = len(v.Cards)

	if list, ok := p["research_papers"].([]any); ok {
		for _, item := range list {
			switch it := item.(type) {
			case string:
				v.Papers = append(v.Papers, paperView{Title: it})
			case map[string]any:
				pv := paperView{Title: orUnknown(models.Str(it, "title", "name")), URL: safeURL(models.Str(it, "url", "link", "pdf_url"))}
				if authors, ok := it["authors"].([]any); ok {
					pv.Meta = strings.Join(models.Texts(authors), ", ")
				}
				v.Papers = append(v.Papers, pv)
			}
		}
	}

	if kw, ok := p["keywords_used"].([]any); ok {
		v.Keywords = models.Texts(kw)
	}

	return execute("market", v)
}

type componentView struct {
	Name string
	Body template.HTML
}

// components renders each component's text under field, in name order.
func (r *Renderer) components(p map[string]any, field string) []componentView {
	comps, ok := models.Obj(p, "components")
	if !ok {
		if text := strings.Join(models.Texts(p), "\n\n"); text != "" {
			return []componentView{{Name: "Summary", Body: r.markdown(text)}}
		}
		return nil
	}

	names := make([]string, 0, len(comps))
	for name := range comps {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []componentView
	for _, name := range names {
		var text string
		switch c := comps[name].(type) {
		case string:
			text = c
		case map[string]any:
			text = models.Str(c, field)
			if text == "" {
				text = strings.Join(models.Texts(c[field]), "\n\n")
			}
			if text == "" {
				text = strings.Join(models.Texts(c), "\n\n")
			}
		}
		if text == "" {
			continue
		}
		out = append(out, componentView{Name: humanize(name), Body: r.markdown(text)})
	}
	return out
}

func (r *Renderer) optimization(_ context.Context, env *models.ResultsEnvelope) (template.HTML, error) {
	p, err := payload(env.Results, models.AgentOptimizer)
	if err != nil {
		return "", err
	}
	return execute("components", map[string]any{
		"Heading":    "Recommendations",
		"Components": r.components(p, "recommendations"),
	})
}

func (r *Renderer) echo(_ context.Context, env *models.ResultsEnvelope) (template.HTML, error) {
	p, err := payload(env.Results, models.AgentEcho)
	if err != nil {
		return "", err
	}
	return execute("components", map[string]any{
		"Heading":    "Challenges",
		"Components": r.components(p, "challenges"),
	})
}

func (r *Renderer) synthesis(_ context.Context, env *models.ResultsEnvelope) (template.HTML, error) {
	p, err := payload(env.Results, models.AgentSynthesis)
	if err != nil {
		return "", err
	}

	var sections []string
	if list, ok := p["report_sections"].([]any); ok {
		for _, item := range list {
			switch it := item.(type) {
			case string:
				sections = append(sections, it)
			case map[string]any:
				if t := models.Str(it, "title", "name"); t != "" {
					sections = append(sections, t)
				}
			}
		}
	}

	return execute("synthesis", map[string]any{
		"Summary":  r.markdown(models.Str(p, "executive_summary")),
		"Report":   r.markdown(models.Str(p, "full_report", "report")),
		"Sections": sections,
	})
}

func (r *Renderer) actionPlan(_ context.Context, env *models.ResultsEnvelope) (template.HTML, error) {
	p, err := payload(env.Results, models.AgentActionPlan)
	if err != nil {
		return "", err
	}

	weeks := ""
	if n, ok := models.Num(p, "timeline_weeks"); ok && n > 0 {
		weeks = fmt.Sprintf("%d weeks", int(n))
	}
	return execute("action_plan", map[string]any{
		"Weeks": weeks,
		"Plan":  r.markdown(models.Str(p, "plan", "text")),
	})
}

type dashboardView struct {
	Metrics    models.DerivedMetrics
	Insights   []string
	Actions    []string
	ChartsJSON string
	Summary    template.HTML
}

// panelError carries a rendered diagnostic panel in place of section content.
type panelError struct {
	html  template.HTML
	cause error
}

func (e *panelError) Error() string { return e.cause.Error() }

// dashboard converts any error or panic while computing metrics into a
// diagnostic panel carrying the raw payload.
func (r *Renderer) dashboard(ctx context.Context, env *models.ResultsEnvelope) (out template.HTML, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("dashboard panicked", "panic", rec)
			out, err = "", r.diagnostic(apperr.New(apperr.Render, "render.dashboard", fmt.Sprintf("%v", rec)), env)
		}
	}()

	body, derr := r.dashboardBody(ctx, env)
	if derr != nil {
		r.logger.Warn("dashboard failed", "error", derr)
		return "", r.diagnostic(derr, env)
	}
	return body, nil
}

func (r *Renderer) dashboardBody(ctx context.Context, env *models.ResultsEnvelope) (template.HTML, error) {
	now := r.now()
	bundle := env.Results
	projects := models.ProjectsFromBundle(bundle)

	charts, err := dashboard.Charts(ctx, r.charts, bundle, projects, now)
	if err != nil {
		return "", apperr.Wrap(apperr.Render, "render.dashboard", "chart data could not be computed", err)
	}
	chartsJSON, err := json.Marshal(charts)
	if err != nil {
		return "", fmt.Errorf("encoding charts: %w", err)
	}

	v := dashboardView{
		Metrics:    dashboard.Derive(bundle, now),
		Insights:   dashboard.Insights(bundle, projects),
		Actions:    dashboard.PriorityActions(bundle),
		ChartsJSON: string(chartsJSON),
	}
	if p, ok := bundle.Payload(models.AgentDashboard); ok && bundle.Succeeded(models.AgentDashboard) {
		v.Summary = r.markdown(models.Str(p, "summary", "overview"))
	}

	return execute("dashboard", v)
}

func (r *Renderer) diagnostic(cause error, env *models.ResultsEnvelope) error {
	raw, err := json.MarshalIndent(env.Results, "", "  ")
	if err != nil {
		raw = []byte(fmt.Sprintf("payload could not be encoded: %v", err))
	}
	panel, err := execute("diagnostic", map[string]string{
		"Message": apperr.UserMessage(cause),
		"Payload": string(raw),
	})
	if err != nil {
		return err
	}
	return &panelError{html: panel, cause: cause}
}

func humanize(key string) string {
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(key))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// safeURL drops anything that is not an http(s) link.
func safeURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return ""
}
