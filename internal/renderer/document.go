// Package renderer wraps rendered page bodies in the HTML document shell
// shared by the static build and the dev server.
package renderer

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/site"
)

// Document is everything the shell needs to render one page.
type Document struct {
	Lang        string
	Title       string
	SiteTitle   string
	Description string
	BaseURL     string
	Head        []site.HeadTag
	// Hoisted holds raw tags lifted out of the page body.
	Hoisted []string
	// Body is trusted HTML.
	Body     string
	Route    string
	Type     page.Type
	Layout   string
	Scripts  []string
	PageData string
}

var voidTags = map[string]bool{
	"meta": true, "link": true, "base": true,
}

// FullTitle joins the page and site titles.
func (d Document) FullTitle() string {
	switch {
	case d.Title == "":
		return d.SiteTitle
	case d.SiteTitle == "" || d.SiteTitle == d.Title:
		return d.Title
	default:
		return d.Title + " | " + d.SiteTitle
	}
}

// Page returns the shell for doc as a templ component.
func Page(doc Document) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString("<!DOCTYPE html>\n")
		b.WriteString(`<html lang="` + templ.EscapeString(doc.Lang) + `">` + "\n<head>\n")
		b.WriteString("<title>" + templ.EscapeString(doc.FullTitle()) + "</title>\n")
		if doc.Description != "" {
			b.WriteString(`<meta name="description" content="` + templ.EscapeString(doc.Description) + `">` + "\n")
		}
		if doc.BaseURL != "" && doc.BaseURL != "/" {
			b.WriteString(`<base href="` + templ.EscapeString(doc.BaseURL) + `">` + "\n")
		}
		for _, tag := range doc.Head {
			writeHeadTag(&b, tag)
		}
		for _, raw := range doc.Hoisted {
			b.WriteString(raw + "\n")
		}
		b.WriteString("</head>\n")

		b.WriteString(`<body data-route="` + templ.EscapeString(doc.Route) + `" data-type="` + templ.EscapeString(string(doc.Type)) + `"`)
		if doc.Layout != "" {
			b.WriteString(` data-layout="` + templ.EscapeString(doc.Layout) + `"`)
		}
		b.WriteString(">\n")
		b.WriteString(`<div id="app">` + doc.Body + "</div>\n")
		if doc.PageData != "" {
			b.WriteString(`<script id="folio-page-data" type="application/json">` + escapeScript(doc.PageData) + "</script>\n")
		}
		for _, src := range doc.Scripts {
			b.WriteString(`<script type="module" src="` + templ.EscapeString(src) + `"></script>` + "\n")
		}
		b.WriteString("</body>\n</html>\n")

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Render writes the shell for doc to w.
func Render(ctx context.Context, w io.Writer, doc Document) error {
	return Page(doc).Render(ctx, w)
}

func writeHeadTag(b *strings.Builder, tag site.HeadTag) {
	name := strings.ToLower(strings.TrimSpace(tag.Tag))
	if name == "" {
		return
	}
	b.WriteString("<" + name)

	keys := make([]string, 0, len(tag.Attrs))
	for k := range tag.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" " + k + `="` + templ.EscapeString(tag.Attrs[k]) + `"`)
	}
	b.WriteString(">")

	if voidTags[name] {
		b.WriteString("\n")
		return
	}
	if name == "script" || name == "style" {
		b.WriteString(tag.Content)
	} else {
		b.WriteString(templ.EscapeString(tag.Content))
	}
	b.WriteString("</" + name + ">\n")
}

// escapeScript keeps JSON from closing the surrounding script element.
func escapeScript(s string) string {
	return strings.ReplaceAll(s, "</", `<\/`)
}
