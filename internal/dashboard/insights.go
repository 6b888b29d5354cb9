package dashboard

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/project-optimizer/console/internal/models"
)

// MaxItems caps the insight and priority action lists.
const MaxItems = 5

var fallbackInsights = []string{
	"Validate the core problem with a handful of target users before building further.",
	"Define one measurable success metric for the first release.",
	"Review the detailed agent reports in the other tabs for the full picture.",
}

var fallbackActions = []string{
	"Interview five prospective users about the problem you are solving.",
	"Scope a minimum viable release that can ship within four weeks.",
	"Identify the two closest competitors and list how you differ.",
}

var (
	listMarker = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])\s+`)
	emphasis   = regexp.MustCompile("[*#`]+")
)

// Insights extracts up to MaxItems observations. It never returns an empty
// list.
func Insights(bundle models.ResultBundle, projects []models.Project) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" && len(out) < MaxItems {
			out = append(out, s)
		}
	}

	if n := len(projects); n > 0 {
		add(fmt.Sprintf("Found %d comparable projects; market saturation looks %s.", n, saturation(n)))
		if lang, count := dominantLanguage(projects); lang != "" {
			add(fmt.Sprintf("Most competitors are built with %s (%d of %d).", lang, count, n))
		}
	}

	if p, ok := bundle.Payload(models.AgentSynthesis); ok {
		add(firstSentence(models.Str(p, "executive_summary")))
	}

	if p, ok := bundle.Payload(models.AgentEcho); ok {
		if s := firstSentence(firstText(p, "challenges")); s != "" {
			add("Challenge: " + s)
		}
	}

	if p, ok := bundle.Payload(models.AgentOptimizer); ok {
		if comps, ok := models.Obj(p, "components"); ok && len(comps) > 0 {
			add(fmt.Sprintf("The optimizer produced recommendations for %d areas: %s.",
				len(comps), strings.Join(sortedKeys(comps), ", ")))
		}
	}

	if p, ok := bundle.Payload(models.AgentCrawler); ok {
		add(firstSentence(models.Str(p, "analysis")))
	}

	if len(out) == 0 {
		return append([]string(nil), fallbackInsights...)
	}
	return out
}

// PriorityActions extracts up to MaxItems next steps from the action plan and
// the optimizer's recommendations. It never returns an empty list.
func PriorityActions(bundle models.ResultBundle) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" && len(out) < MaxItems {
			out = append(out, s)
		}
	}

	if p, ok := bundle.Payload(models.AgentActionPlan); ok {
		for _, item := range listItems(models.Str(p, "plan", "text")) {
			add(item)
		}
	}

	if p, ok := bundle.Payload(models.AgentOptimizer); ok {
		if comps, ok := models.Obj(p, "components"); ok {
			for _, name := range sortedKeys(comps) {
				c, _ := comps[name].(map[string]any)
				add(firstSentence(models.Str(c, "recommendations")))
			}
		}
	}

	if len(out) == 0 {
		return append([]string(nil), fallbackActions...)
	}
	return out
}

func saturation(n int) string {
	switch {
	case n > 20:
		return "high"
	case n < 5:
		return "low"
	}
	return "moderate"
}

func dominantLanguage(projects []models.Project) (string, int) {
	counts := make(map[string]int)
	for _, p := range projects {
		if p.Language != "" {
			counts[p.Language]++
		}
	}
	best, bestN := "", 0
	for lang, n := range counts {
		if n > bestN || (n == bestN && lang < best) {
			best, bestN = lang, n
		}
	}
	return best, bestN
}

// firstText returns the first string found under key anywhere in v.
func firstText(v any, key string) string {
	switch t := v.(type) {
	case map[string]any:
		if s, ok := t[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
		for _, k := range sortedKeys(t) {
			if s := firstText(t[k], key); s != "" {
				return s
			}
		}
	case []any:
		for _, item := range t {
			if s := firstText(item, key); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstSentence(s string) string {
	s = strings.TrimSpace(emphasis.ReplaceAllString(s, ""))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, ". "); i >= 0 {
		s = s[:i+1]
	}
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > 160 {
		s = string(r[:157]) + "..."
	}
	return s
}

// listItems returns the list entries of a markdown-ish block. When there
// are no list markers every non-empty line counts.
func listItems(text string) []string {
	var marked, plain []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if listMarker.MatchString(line) {
			marked = append(marked, firstSentence(listMarker.ReplaceAllString(line, "")))
		} else {
			plain = append(plain, firstSentence(line))
		}
	}
	if len(marked) > 0 {
		return marked
	}
	return plain
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
