// Package render turns a result bundle into independent, order-stable view
// sections and the HTML report page.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/project-optimizer/console/internal/dashboard"
	"github.com/project-optimizer/console/internal/models"
)

// Section IDs in display order.
const (
	SectionOverview     = "overview"
	SectionBlueprint    = "blueprint"
	SectionMarket       = "market"
	SectionOptimization = "optimization"
	SectionEcho         = "echo"
	SectionSynthesis    = "synthesis"
	SectionActionPlan   = "action_plan"
	SectionDashboard    = "dashboard"
)

// MaxProjectCards bounds the detailed market research cards.
const MaxProjectCards = 12

// Section is one rendered tab of the results view.
type Section struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Available bool          `json:"available"`
	HTML      template.HTML `json:"html"`
	Error     string        `json:"error,omitempty"`
}

type builder struct {
	id    string
	title string
	fn    func(ctx context.Context, env *models.ResultsEnvelope) (template.HTML, error)
}

// Options configures a Renderer.
type Options struct {
	// Markdown converts free text; nil selects Fallback.
	Markdown Markdown
	// Charts aggregates project distributions; nil computes them in process.
	Charts dashboard.Aggregator
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Renderer builds result sections.
type Renderer struct {
	md       Markdown
	charts   dashboard.Aggregator
	now      func() time.Time
	logger   *slog.Logger
	builders []builder
}

// NewRenderer creates a Renderer.
func NewRenderer(opts Options, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Renderer{
		md:     opts.Markdown,
		charts: opts.Charts,
		now:    opts.Now,
		logger: logger.With("component", "render"),
	}
	r.builders = []builder{
		{SectionOverview, "Overview", r.overview},
		{SectionBlueprint, "Blueprint", r.blueprint},
		{SectionMarket, "Market Research", r.market},
		{SectionOptimization, "Optimization", r.optimization},
		{SectionEcho, "Echo-Chamber Analysis", r.echo},
		{SectionSynthesis, "Synthesis", r.synthesis},
		{SectionActionPlan, "Action Plan", r.actionPlan},
		{SectionDashboard, "Dashboard", r.dashboard},
	}
	return r
}

// Render builds every section concurrently. The result always has one
// entry per section in display order; a failing section yields a local
// placeholder and never affects its siblings.
func (r *Renderer) Render(ctx context.Context, env *models.ResultsEnvelope) []Section {
	if env == nil {
		env = &models.ResultsEnvelope{}
	}
	if env.Results == nil {
		cp := *env
		cp.Results = models.ResultBundle{}
		env = &cp
	}

	sections := make([]Section, len(r.builders))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range r.builders {
		g.Go(func() error {
			sections[i] = r.build(gctx, b, env)
			return nil
		})
	}
	_ = g.Wait()

	return sections
}

func (r *Renderer) build(ctx context.Context, b builder, env *models.ResultsEnvelope) (s Section) {
	s = Section{ID: b.id, Title: b.title}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("section panicked", "section", b.id, "panic", rec, "stack", string(debug.Stack()))
			s = placeholder(b.id, b.title, fmt.Sprintf("%v", rec))
		}
	}()

	body, err := b.fn(ctx, env)
	var panel *panelError
	switch {
	case errors.Is(err, errUnavailable):
		return placeholder(b.id, b.title, "")
	case errors.As(err, &panel):
		s.Available = true
		s.HTML = panel.html
		s.Error = panel.cause.Error()
		return s
	case err != nil:
		r.logger.Warn("section failed", "section", b.id, "error", err)
		return placeholder(b.id, b.title, err.Error())
	}

	s.Available = true
	s.HTML = body
	return s
}

// markdown converts text, degrading to Fallback when no converter is
// configured or conversion fails.
func (r *Renderer) markdown(text string) template.HTML {
	if text == "" {
		return ""
	}
	if r.md == nil {
		return Fallback(text)
	}
	out, err := r.md.Convert(text)
	if err != nil {
		r.logger.Debug("markdown conversion failed", "error", err)
		return Fallback(text)
	}
	return out
}

func placeholder(id, title, errMsg string) Section {
	var buf bytes.Buffer
	_ = templates.ExecuteTemplate(&buf, "placeholder", map[string]string{"Title": title})
	return Section{
		ID:        id,
		Title:     title,
		Available: false,
		HTML:      template.HTML(buf.String()),
		Error:     errMsg,
	}
}

func execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("executing %s template: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}
