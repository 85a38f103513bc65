// Package template renders message templates into transport payloads.
// Everything here is pure: no store access, no I/O.
package template

import (
	"encoding/json"
	"regexp"
	"sort"

	"whatsapp-dispatch/internal/models"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render replaces every {{name}} occurrence with context[name]. Unknown
// names are left as literal {{name}} text.
func Render(content string, context map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(content, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		if value, ok := context[name]; ok {
			return value
		}
		return match
	})
}

// ExtractVariables returns the deduplicated, sorted placeholder names in a
// template body. Called at template save time.
func ExtractVariables(content string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range variablePattern.FindAllStringSubmatch(content, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	sort.Strings(names)
	return names
}

// VariablesJSON is ExtractVariables marshaled for Template.Variables.
func VariablesJSON(content string) string {
	names := ExtractVariables(content)
	if names == nil {
		names = []string{}
	}
	data, _ := json.Marshal(names)
	return string(data)
}

// Media references a hosted media file by URL.
type Media struct {
	URL string `json:"url"`
}

// Payload is the discriminated message envelope the transport accepts.
// Exactly one of Text/Image/Video/Audio/Document is populated; media types
// other than audio carry the rendered text as caption.
type Payload struct {
	Text     string `json:"text,omitempty"`
	Image    *Media `json:"image,omitempty"`
	Video    *Media `json:"video,omitempty"`
	Audio    *Media `json:"audio,omitempty"`
	Document *Media `json:"document,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// BuildMessage renders a template into the payload shape for its type.
func BuildMessage(tmpl *models.Template, context map[string]string) Payload {
	rendered := Render(tmpl.Content, context)

	switch tmpl.TemplateType {
	case models.TypeImage:
		return Payload{Image: &Media{URL: tmpl.MediaURL}, Caption: rendered}
	case models.TypeVideo:
		return Payload{Video: &Media{URL: tmpl.MediaURL}, Caption: rendered}
	case models.TypeAudio:
		// Audio carries no caption; the transport rejects one.
		return Payload{Audio: &Media{URL: tmpl.MediaURL}}
	case models.TypeDocument:
		return Payload{Document: &Media{URL: tmpl.MediaURL}, Caption: rendered}
	default:
		return Payload{Text: rendered}
	}
}

// TextMessage wraps plain text in a payload, for inline auto-replies and
// ad-hoc sends.
func TextMessage(text string) Payload {
	return Payload{Text: text}
}
