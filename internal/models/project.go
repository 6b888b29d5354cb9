package models

import (
	"strings"
	"time"
)

// Project is a comparable project discovered by market research, with every
// known upstream field spelling mapped onto one canonical field.
type Project struct {
	Name        string     `json:"name"`
	FullName    string     `json:"fullName,omitempty"`
	URL         string     `json:"url,omitempty"`
	Description string     `json:"description,omitempty"`
	Language    string     `json:"language,omitempty"`
	Stars       int        `json:"stars"`
	Forks       int        `json:"forks"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	License     string     `json:"license,omitempty"`
	Topics      []string   `json:"topics,omitempty"`
}

// Unknown is displayed for absent optional fields.
const Unknown = "unknown"

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NormalizeProject maps one raw project object onto Project.
func NormalizeProject(m map[string]any) Project {
	p := Project{
		Name:        Str(m, "name", "github_repo", "title", "full_name"),
		FullName:    Str(m, "full_name", "title"),
		URL:         Str(m, "html_url", "url", "homepage"),
		Description: Str(m, "description", "snippet"),
		Language:    Str(m, "language"),
	}
	if n, ok := Num(m, "stars", "stargazers_count", "stargazers", "star_count"); ok {
		p.Stars = int(n)
	}
	if n, ok := Num(m, "forks", "forks_count"); ok {
		p.Forks = int(n)
	}
	if ts := Str(m, "updated_at", "last_updated", "pushed_at"); ts != "" {
		p.UpdatedAt = parseTime(ts)
	}
	switch lic := m["license"].(type) {
	case string:
		p.License = strings.TrimSpace(lic)
	case map[string]any:
		p.License = Str(lic, "name", "spdx_id", "key")
	}
	if topics, ok := m["topics"].([]any); ok {
		for _, t := range topics {
			if s, ok := t.(string); ok && s != "" {
				p.Topics = append(p.Topics, s)
			}
		}
	}
	if p.Name == "" {
		p.Name = Unknown
	}
	return p
}

// NormalizeProjects normalizes every object in list, skipping non-objects.
func NormalizeProjects(list []any) []Project {
	out := make([]Project, 0, len(list))
	for _, it := range list {
		if m, ok := it.(map[string]any); ok {
			out = append(out, NormalizeProject(m))
		}
	}
	return out
}

// ProjectsFromResearch extracts the competitor list from the crawler
// payload, preferring detailed projects over the search listing.
func ProjectsFromResearch(research map[string]any) []Project {
	for _, key := range []string{"detailed_projects", "github_projects", "projects"} {
		if list, ok := research[key].([]any); ok && len(list) > 0 {
			return NormalizeProjects(list)
		}
	}
	return nil
}

// ProjectsFromBundle returns the normalized competitor list of a bundle.
// Failed or absent research yields no projects.
func ProjectsFromBundle(b ResultBundle) []Project {
	if !b.Succeeded(AgentCrawler) {
		return nil
	}
	research, ok := b.Payload(AgentCrawler)
	if !ok {
		return nil
	}
	return ProjectsFromResearch(research)
}

// LicenseOrUnknown returns the license or "unknown".
func (p Project) LicenseOrUnknown() string {
	if p.License == "" {
		return Unknown
	}
	return p.License
}

// LanguageOrUnknown returns the language or "unknown".
func (p Project) LanguageOrUnknown() string {
	if p.Language == "" {
		return Unknown
	}
	return p.Language
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ParseTimestamp parses the backend's ISO-8601 timestamps.
func ParseTimestamp(s string) (time.Time, bool) {
	t := parseTime(s)
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}
