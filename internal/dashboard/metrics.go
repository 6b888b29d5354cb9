// Package dashboard derives the summary metrics, insights and chart data
// shown on the dashboard tab. Every function is deterministic: the current
// time is always passed in.
package dashboard

import (
	"math"
	"strings"
	"time"

	"github.com/project-optimizer/console/internal/models"
)

// NeutralMarketScore is returned when no competitor projects are known.
const NeutralMarketScore = 5

// activityWindow is how recently a project must have been updated to count
// as active.
const activityWindow = 6 // months

// MarketScore rates market opportunity from 1 (crowded) to 10 (open).
func MarketScore(projects []models.Project, now time.Time) int {
	n := len(projects)
	if n == 0 {
		return NeutralMarketScore
	}

	score := float64(NeutralMarketScore)

	switch {
	case n > 20:
		score -= 2
	case n < 5:
		score += 2
	}

	ratio := float64(activeCount(projects, now)) / float64(n)
	switch {
	case ratio > 0.7:
		score++
	case ratio < 0.3:
		score--
	}

	avg := averageStars(projects)
	switch {
	case avg > 1000:
		score--
	case avg < 100:
		score++
	}

	return int(math.Round(math.Max(1, math.Min(10, score))))
}

// RiskScore scores competitive and qualitative risk. texts are the free-text
// fields of the optimization and echo-chamber components.
func RiskScore(projects []models.Project, texts []string) int {
	score := 0

	switch n := len(projects); {
	case n > 15:
		score += 2
	case n > 8:
		score++
	}

	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), "high risk") {
			score += 2
			break
		}
	}

	if len(projects) > 0 && averageStars(projects) > 2000 {
		score++
	}

	return score
}

// Level maps a risk score onto the closed set of risk levels.
func Level(score int) models.RiskLevel {
	switch {
	case score >= 4:
		return models.RiskHigh
	case score >= 2:
		return models.RiskMedium
	}
	return models.RiskLow
}

// RiskLevel classifies the bundle.
func RiskLevel(bundle models.ResultBundle) models.RiskLevel {
	return Level(RiskScore(models.ProjectsFromBundle(bundle), RiskTexts(bundle)))
}

// RiskTexts collects every free-text field under the optimizer and
// echo-analysis components.
func RiskTexts(bundle models.ResultBundle) []string {
	var texts []string
	for _, agent := range []string{models.AgentOptimizer, models.AgentEcho} {
		payload, ok := bundle.Payload(agent)
		if !ok {
			continue
		}
		if comps, ok := payload["components"]; ok {
			texts = append(texts, models.Texts(comps)...)
		} else {
			texts = append(texts, models.Texts(payload)...)
		}
	}
	return texts
}

// Derive computes the summary metrics for the dashboard tiles.
func Derive(bundle models.ResultBundle, now time.Time) models.DerivedMetrics {
	projects := models.ProjectsFromBundle(bundle)
	succeeded, total := bundle.AgentOutcome()

	return models.DerivedMetrics{
		SuccessfulAgents: succeeded,
		TotalAgents:      total,
		CompetitorCount:  len(projects),
		MarketScore:      MarketScore(projects, now),
		RiskLevel:        Level(RiskScore(projects, RiskTexts(bundle))),
	}
}

func activeCount(projects []models.Project, now time.Time) int {
	cutoff := now.AddDate(0, -activityWindow, 0)
	n := 0
	for _, p := range projects {
		if p.UpdatedAt != nil && !p.UpdatedAt.Before(cutoff) {
			n++
		}
	}
	return n
}

func averageStars(projects []models.Project) float64 {
	if len(projects) == 0 {
		return 0
	}
	total := 0
	for _, p := range projects {
		total += p.Stars
	}
	return float64(total) / float64(len(projects))
}
