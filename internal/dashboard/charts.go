package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/project-optimizer/console/internal/analytics"
	"github.com/project-optimizer/console/internal/models"
)

// ChartSpec is a chart description handed to the browser's charting library.
type ChartSpec struct {
	ID     string   `json:"id"`
	Type   string   `json:"type"` // "doughnut", "bar", "pie"
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// Aggregator computes project distributions. analytics.ProjectStore is the
// production implementation.
type Aggregator interface {
	Aggregate(ctx context.Context, projects []models.Project, now time.Time) (*analytics.Aggregates, error)
}

// Charts builds the dashboard chart specs. With a nil aggregator the project
// distributions are computed in process.
func Charts(ctx context.Context, agg Aggregator, bundle models.ResultBundle, projects []models.Project, now time.Time) ([]ChartSpec, error) {
	succeeded, total := bundle.AgentOutcome()
	charts := []ChartSpec{{
		ID:     "agents",
		Type:   "doughnut",
		Title:  "Agent outcomes",
		Labels: []string{"Succeeded", "Failed"},
		Values: []int{succeeded, total - succeeded},
	}}

	if len(projects) == 0 {
		return charts, nil
	}

	var a *analytics.Aggregates
	if agg != nil {
		var err error
		if a, err = agg.Aggregate(ctx, projects, now); err != nil {
			return nil, fmt.Errorf("aggregating projects: %w", err)
		}
	} else {
		a = Aggregate(projects, now)
	}

	langs := ChartSpec{ID: "languages", Type: "pie", Title: "Competitor languages"}
	for _, b := range a.Languages {
		langs.Labels = append(langs.Labels, b.Label)
		langs.Values = append(langs.Values, b.Count)
	}

	stars := ChartSpec{ID: "stars", Type: "bar", Title: "Competitor popularity (stars)"}
	for _, b := range a.Stars {
		stars.Labels = append(stars.Labels, b.Label)
		stars.Values = append(stars.Values, b.Count)
	}

	activity := ChartSpec{
		ID:     "activity",
		Type:   "doughnut",
		Title:  "Competitor activity (last 6 months)",
		Labels: []string{"Active", "Stale"},
		Values: []int{a.Active, a.Stale},
	}

	return append(charts, langs, stars, activity), nil
}

// Aggregate computes the same distributions as analytics.ProjectStore
// without a database.
func Aggregate(projects []models.Project, now time.Time) *analytics.Aggregates {
	a := &analytics.Aggregates{Total: len(projects)}
	a.Active = activeCount(projects, now)
	a.Stale = a.Total - a.Active
	a.AvgStars = averageStars(projects)

	langCounts := make(map[string]int)
	starCounts := make(map[string]int)
	for _, p := range projects {
		langCounts[p.LanguageOrUnknown()]++
		starCounts[starBucket(p.Stars)]++
	}

	for lang, n := range langCounts {
		a.Languages = append(a.Languages, analytics.Bucket{Label: lang, Count: n})
	}
	sort.Slice(a.Languages, func(i, j int) bool {
		if a.Languages[i].Count != a.Languages[j].Count {
			return a.Languages[i].Count > a.Languages[j].Count
		}
		return a.Languages[i].Label < a.Languages[j].Label
	})
	if len(a.Languages) > analytics.MaxLanguages {
		other := 0
		for _, b := range a.Languages[analytics.MaxLanguages:] {
			other += b.Count
		}
		a.Languages = append(a.Languages[:analytics.MaxLanguages], analytics.Bucket{Label: "other", Count: other})
	}

	for _, label := range analytics.StarBuckets {
		a.Stars = append(a.Stars, analytics.Bucket{Label: label, Count: starCounts[label]})
	}
	return a
}

func starBucket(stars int) string {
	switch {
	case stars < 100:
		return analytics.StarBuckets[0]
	case stars < 1000:
		return analytics.StarBuckets[1]
	case stars < 10000:
		return analytics.StarBuckets[2]
	}
	return analytics.StarBuckets[3]
}
