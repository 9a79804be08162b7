// Package render converts between the body representations the backends
// speak: HTML from the automation host, Markdown on disk, plain text from
// the user.
package render

import (
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// HTMLToMarkdown converts an automation-sourced note body to Markdown.
func HTMLToMarkdown(body string) (string, error) {
	converter := md.NewConverter("", true, nil)
	out, err := converter.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("convert note body to markdown: %w", err)
	}
	return out, nil
}

// NoteDocument assembles the on-disk Markdown document: a single h1 title
// followed by the body. The layout is stable so repeat exports produce
// identical bytes.
func NoteDocument(title, body string) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(strings.TrimSpace(title))
	b.WriteString("\n\n")
	body = strings.TrimRight(body, "\n")
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String()
}

// TextToHTML wraps user-supplied plain text for a write operation. Each
// line becomes a div, empty lines become breaks; everything is escaped so
// text can never be interpreted as markup.
func TextToHTML(text string) string {
	lines := strings.Split(normalize(text), "\n")
	var b strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			b.WriteString("<div><br></div>")
			continue
		}
		b.WriteString("<div>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</div>")
	}
	return b.String()
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
