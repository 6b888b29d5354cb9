package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/project-optimizer/console/internal/models"
)

// PageTitle is the heading of the report page.
const PageTitle = "Project Optimizer Report"

// Page wraps rendered sections into a standalone tabbed HTML document.
// metrics may be nil.
func Page(sections []Section, metrics *models.DerivedMetrics) (template.HTML, error) {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "page", map[string]any{
		"Title":    PageTitle,
		"Sections": sections,
		"Metrics":  metrics,
	})
	if err != nil {
		return "", fmt.Errorf("rendering page: %w", err)
	}
	return template.HTML(buf.String()), nil
}
