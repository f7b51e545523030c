// Package render turns generated markdown into HTML pages and terminal output.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	highlighting "github.com/yuin/goldmark-highlighting/v2"
)

//go:embed templates/*.html
var content embed.FS

var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
			highlighting.WithFormatOptions(
				chromahtml.WithClasses(false),
			),
		),
	),
	goldmark.WithRendererOptions(
		// status tags become raw spans before conversion
		gmhtml.WithUnsafe(),
	),
)

var pageTmpl = template.Must(template.New("page.html").ParseFS(content, "templates/*.html"))

// HTML converts markdown to an HTML fragment. Status tags are colored first.
func HTML(markdown string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(FormatStatusTags(markdown)), &buf); err != nil {
		return "", fmt.Errorf("goldmark convert: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // generated content is trusted
}

// NavItem is one sidebar link.
type NavItem struct {
	Label  string
	Icon   string
	Href   string
	Active bool
}

// Page is the data for a standalone report page.
type Page struct {
	Title string
	Icon  string
	// Markdown is the body; an empty body renders the "not generated" notice.
	Markdown string
	Nav      []NavItem
	// Notice is shown above the body, e.g. for a failed generation.
	Notice string
}

type pageData struct {
	Page
	Body template.HTML
}

// WritePage renders p as a complete HTML document.
func WritePage(w io.Writer, p Page) error {
	data := pageData{Page: p}
	if p.Markdown != "" {
		body, err := HTML(p.Markdown)
		if err != nil {
			return err
		}
		data.Body = body
	}
	return pageTmpl.Execute(w, data)
}
