package app

import (
	"context"
	"encoding/json"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/folio/internal/markdown"
	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/paths"
	"github.com/conneroisu/folio/internal/renderer"
)

// RenderRoute writes the full HTML document of the page at route. found is
// false when no page has that route.
func (a *App) RenderRoute(ctx context.Context, w io.Writer, route string) (bool, error) {
	if err := a.require(StateInitialized); err != nil {
		return false, err
	}
	p, ok := a.Page(route)
	if !ok {
		return false, nil
	}
	doc, err := a.document(p)
	if err != nil {
		return true, err
	}
	return true, renderer.Render(ctx, w, doc)
}

// document builds the shell input for p. Locale title and description
// override the site ones; frontmatter description overrides both.
func (a *App) document(p *page.Page) (renderer.Document, error) {
	a.mu.RLock()
	opts, locales := a.site, a.locales
	a.mu.RUnlock()

	doc := renderer.Document{
		Lang:        p.Lang,
		Title:       p.Title(),
		SiteTitle:   opts.Title,
		Description: opts.Description,
		BaseURL:     opts.BaseURL,
		Head:        opts.Head,
		Route:       p.Route,
		Type:        p.Type,
		Layout:      p.Layout,
		Scripts:     []string{paths.WithBase(opts.BaseURL, "/"+clientPrefix+"/"+ClientModule)},
	}
	if locales != nil {
		if _, locale, ok := locales.Lookup(p.Route); ok {
			if locale.Title != "" {
				doc.SiteTitle = locale.Title
			}
			if locale.Description != "" {
				doc.Description = locale.Description
			}
		}
	}

	switch {
	case p.Markdown != nil:
		doc.Body = p.Markdown.HTML
		doc.Hoisted = p.Markdown.HoistedTags
		if desc := markdown.FrontmatterString(p.Markdown.Frontmatter, "description"); desc != "" {
			doc.Description = desc
		}
	case p.Type == page.TypeNotFound:
		doc.Title = "404"
		doc.Body = `<h1>404</h1><p>Page not found.</p><p><a href="` + templ.EscapeString(opts.BaseURL) + `">Take me home</a></p>`
	default:
		doc.Body = "<h1>" + templ.EscapeString(p.Title()) + "</h1>"
	}

	data, err := json.Marshal(p)
	if err != nil {
		return doc, err
	}
	doc.PageData = string(data)
	return doc, nil
}
