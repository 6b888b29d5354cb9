package render

import (
	"bytes"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Markdown converts free text to HTML.
type Markdown interface {
	Convert(src string) (template.HTML, error)
}

// Goldmark renders GitHub-flavoured markdown. Raw HTML in the source is
// escaped, never passed through.
type Goldmark struct {
	md goldmark.Markdown
}

// NewGoldmark creates the default markdown converter.
func NewGoldmark() *Goldmark {
	return &Goldmark{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// Convert implements Markdown.
func (g *Goldmark) Convert(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := g.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

var (
	boldPattern   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern = regexp.MustCompile(`\*(.+?)\*`)
)

// Fallback is the reduced-fidelity conversion used when no converter is
// available: HTML is escaped, newlines become <br> and **bold** / *italic*
// become strong and em.
func Fallback(src string) template.HTML {
	s := html.EscapeString(src)
	s = boldPattern.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicPattern.ReplaceAllString(s, "<em>$1</em>")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "<br>")
	return template.HTML(s)
}
