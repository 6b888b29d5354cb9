package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// Agent keys of the result bundle.
const (
	AgentBlueprint  = "blueprint"
	AgentCrawler    = "crawler"
	AgentOptimizer  = "optimizer"
	AgentEcho       = "echo_analysis"
	AgentSynthesis  = "synthesis"
	AgentAnalysis   = "analysis"
	AgentDashboard  = "dashboard"
	AgentActionPlan = "action_plan"
	AgentIndexing   = "indexing"
)

// StatusSuccess marks a successful agent entry.
const StatusSuccess = "success"

// ResultBundle holds one raw entry per agent. Entries are decoded lazily so
// a malformed entry only affects its own section.
type ResultBundle map[string]json.RawMessage

// Has reports whether the bundle carries an entry for agent.
func (b ResultBundle) Has(agent string) bool {
	raw, ok := b[agent]
	return ok && len(raw) > 0 && string(raw) != "null"
}

// Entry decodes the entry for agent as a generic object. It returns false
// when the entry is absent or not an object.
func (b ResultBundle) Entry(agent string) (map[string]any, bool) {
	if !b.Has(agent) {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(b[agent], &m); err != nil {
		return nil, false
	}
	return m, true
}

// AgentStatus returns the status string of an entry ("" when absent).
func (b ResultBundle) AgentStatus(agent string) string {
	m, ok := b.Entry(agent)
	if !ok {
		return ""
	}
	return Str(m, "status")
}

// Succeeded reports whether the agent entry exists and reports success.
func (b ResultBundle) Succeeded(agent string) bool {
	return b.AgentStatus(agent) == StatusSuccess
}

// Payload returns the agent's payload object, stored under a key that
// usually matches the agent name (crawler uses "research", optimizer uses
// "optimization").
func (b ResultBundle) Payload(agent string) (map[string]any, bool) {
	m, ok := b.Entry(agent)
	if !ok {
		return nil, false
	}
	for _, key := range payloadKeys(agent) {
		if p, ok := m[key].(map[string]any); ok {
			return p, true
		}
	}
	return nil, false
}

func payloadKeys(agent string) []string {
	switch agent {
	case AgentCrawler:
		return []string{"research", "market_research"}
	case AgentOptimizer:
		return []string{"optimization"}
	case AgentEcho:
		return []string{"echo_analysis", "challenge"}
	case AgentAnalysis:
		return []string{"analysis"}
	}
	return []string{agent}
}

// Agents returns the agent names in the bundle, excluding indexing, sorted.
func (b ResultBundle) Agents() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		if name == AgentIndexing {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AgentOutcome counts successful and failed agent entries.
func (b ResultBundle) AgentOutcome() (succeeded, total int) {
	for _, name := range b.Agents() {
		total++
		if b.Succeeded(name) {
			succeeded++
		}
	}
	return succeeded, total
}

// ProcessSummary is process_info.summary.
type ProcessSummary struct {
	TotalAgentsRun   int               `json:"total_agents_run"`
	SuccessfulAgents int               `json:"successful_agents"`
	FailedAgents     int               `json:"failed_agents"`
	AgentResults     map[string]string `json:"agent_results,omitempty"`
}

// ProcessInfo is the process metadata block of GET /api/results.
type ProcessInfo struct {
	Status        string          `json:"status"`
	StartTime     string          `json:"start_time,omitempty"`
	EndTime       string          `json:"end_time,omitempty"`
	TotalDuration float64         `json:"total_duration,omitempty"`
	Error         string          `json:"error,omitempty"`
	Summary       *ProcessSummary `json:"summary,omitempty"`
}

// ResultsEnvelope is the body of GET /api/results.
type ResultsEnvelope struct {
	ProcessInfo ProcessInfo  `json:"process_info"`
	Results     ResultBundle `json:"results"`
}

// Str reads a string field, tolerating absent and non-string values.
func Str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	return ""
}

// Num reads a numeric field from the first key present.
func Num(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Obj reads a nested object field.
func Obj(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

// Texts collects every non-empty string found under v, depth first in key
// order. Used to scan free-text agent output.
func Texts(v any) []string {
	var out []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				out = append(out, t)
			}
		case []any:
			for _, e := range t {
				walk(e)
			}
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k])
			}
		}
	}
	walk(v)
	return out
}
