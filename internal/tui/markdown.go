package tui

import (
	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders content for the terminal, wrapped at width.
// It returns content unchanged if glamour fails.
func RenderMarkdown(content string, width int) string {
	if width < 20 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

// RenderPlainMarkdown renders content with the no-colour style, for output
// that is not a terminal.
func RenderPlainMarkdown(content string, width int) string {
	if width < 20 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}
