package attachment

import (
	"html"
	"strings"
)

// RenderNotesView renders the .view companion of plain text notes. All text
// is escaped; the result is raw HTML, not JSON.
func RenderNotesView(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 96)
	b.WriteString("<html><head></head><body><pre class='plaintext'>")
	b.WriteString(html.EscapeString(text))
	b.WriteString("</pre></body></html>")
	return b.String()
}

// RenderTextPage turns shared plain text into an archivable HTML page, one
// paragraph per line. sourceURL, when set, is recorded in a meta tag.
func RenderTextPage(sourceURL, text string) string {
	var b strings.Builder
	b.WriteString("<html><head>")
	b.WriteString("<style>.content {width: 600px; margin: 10px;} p {text-align: justify}</style>")
	if sourceURL != "" {
		b.WriteString(`<meta name="savepage-url" content="`)
		b.WriteString(html.EscapeString(sourceURL))
		b.WriteString(`">`)
	}
	b.WriteString("</head><body><div class='content'>")
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	b.WriteString("</div></body></html>")
	return b.String()
}
