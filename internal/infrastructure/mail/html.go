package mail

import (
	"html"
	"regexp"
	"strings"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// PlainTextToHTML renders a plain-text body as escaped HTML paragraphs.
// Blank lines separate paragraphs and single newlines become <br>.
func PlainTextToHTML(body string) string {
	body = strings.ReplaceAll(strings.TrimSpace(body), "\r\n", "\n")
	if body == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div style="font-family: Arial, sans-serif; font-size: 14px; line-height: 1.5;">`)
	for _, para := range paragraphBreak.Split(body, -1) {
		lines := strings.Split(strings.TrimSpace(para), "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(line)
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	b.WriteString("</div>")
	return b.String()
}
