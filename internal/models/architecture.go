package models

import (
	"encoding/base64"
	"sort"
	"strings"
)

// ArchitectureKind tags the variant of an architecture representation.
type ArchitectureKind string

const (
	ArchitectureNone        ArchitectureKind = "none"
	ArchitectureDiagram     ArchitectureKind = "diagram"
	ArchitectureImage       ArchitectureKind = "image"
	ArchitectureDescription ArchitectureKind = "description"
)

// Architecture is the normalized architecture representation of a
// blueprint. Exactly one of Diagram, ImageSrc or Description is set,
// according to Kind.
type Architecture struct {
	Kind        ArchitectureKind    `json:"kind"`
	Diagram     string              `json:"diagram,omitempty"`
	ImageSrc    string              `json:"imageSrc,omitempty"`
	Description string              `json:"description,omitempty"`
	Components  map[string][]string `json:"components,omitempty"`
	Note        string              `json:"note,omitempty"`
}

// NormalizeArchitecture maps the blueprint's architecture payload onto a
// single variant. An explicit "format" tag wins; otherwise the variant is
// inferred from the keys present, preferring diagram, then image, then
// description.
func NormalizeArchitecture(blueprint map[string]any) Architecture {
	raw, ok := blueprint["architecture_image"]
	if !ok || raw == nil {
		raw, ok = blueprint["architecture"]
	}
	if !ok || raw == nil {
		return Architecture{Kind: ArchitectureNone}
	}

	switch v := raw.(type) {
	case string:
		if src := bareImageSource(v); src != "" {
			return Architecture{Kind: ArchitectureImage, ImageSrc: src}
		}
		if strings.TrimSpace(v) != "" {
			return Architecture{Kind: ArchitectureDescription, Description: v}
		}
		return Architecture{Kind: ArchitectureNone}
	case map[string]any:
		arch := Architecture{
			Components: components(v["components"]),
			Note:       Str(v, "note"),
		}
		diagram := Str(v, "ascii_diagram", "diagram", "mermaid")
		image := imageSource(Str(v, "image_base64", "image_data", "base64", "data"), Str(v, "mime_type", "mime"))
		if image == "" {
			image = Str(v, "image_url", "url")
		}
		desc := Str(v, "detailed_description", "description", "text")

		switch strings.ToLower(Str(v, "format", "kind")) {
		case "diagram", "ascii", "mermaid":
			if diagram != "" {
				arch.Kind, arch.Diagram = ArchitectureDiagram, diagram
				return arch
			}
		case "image", "png", "svg":
			if image != "" {
				arch.Kind, arch.ImageSrc = ArchitectureImage, image
				return arch
			}
		case "description", "text":
			if desc != "" {
				arch.Kind, arch.Description = ArchitectureDescription, desc
				return arch
			}
		}

		switch {
		case diagram != "":
			arch.Kind, arch.Diagram = ArchitectureDiagram, diagram
		case image != "":
			arch.Kind, arch.ImageSrc = ArchitectureImage, image
		case desc != "":
			arch.Kind, arch.Description = ArchitectureDescription, desc
		default:
			arch.Kind = ArchitectureNone
		}
		return arch
	}
	return Architecture{Kind: ArchitectureNone}
}

// imageSource turns base64 payloads into data URIs and passes URLs through.
func imageSource(v, mime string) string {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return ""
	case strings.HasPrefix(v, "data:image/"),
		strings.HasPrefix(v, "http://"),
		strings.HasPrefix(v, "https://"):
		return v
	}
	if strings.ContainsAny(v, " \n\t") {
		return ""
	}
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + v
}

// bareImageSource accepts an untagged string as an image only when it is a
// data URI, a URL, or a long valid base64 payload.
func bareImageSource(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "data:image/") || strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return v
	}
	if len(v) < 64 {
		return ""
	}
	if _, err := base64.StdEncoding.DecodeString(v); err != nil {
		return ""
	}
	return imageSource(v, "")
}

func components(v any) map[string][]string {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string][]string, len(m))
	for layer, items := range m {
		list, ok := items.([]any)
		if !ok {
			continue
		}
		for _, it := range list {
			if s, ok := it.(string); ok && s != "" {
				out[layer] = append(out[layer], s)
			}
		}
	}
	return out
}

// ComponentLayers returns the component layer names in stable order.
func (a Architecture) ComponentLayers() []string {
	layers := make([]string, 0, len(a.Components))
	for k := range a.Components {
		layers = append(layers, k)
	}
	sort.Strings(layers)
	return layers
}
