package markdown

import (
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Transformer priorities. Lower runs first.
const (
	priorityEmoji   = 100
	priorityAnchor  = 200
	priorityTOC     = 300
	priorityHeaders = 400
	priorityTitle   = 500
)

type anchorExtension struct {
	opts AnchorOptions
}

func (e *anchorExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&anchorTransformer{opts: e.opts}, priorityAnchor),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&anchorRenderer{opts: e.opts}, 100),
	))
}

type anchorTransformer struct {
	opts AnchorOptions
}

// Transform gives every heading an id and, at the configured levels, a
// permalink as its first child.
func (t *anchorTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	src := reader.Source()
	slugs := newSlugger()
	hs := headings(doc)

	for _, h := range hs {
		if id := headingID(h); id != "" {
			slugs.reserve(id)
		}
	}

	for _, h := range hs {
		id := headingID(h)
		if id == "" {
			id = slugs.unique(plainText(h, src))
			h.SetAttributeString("id", []byte(id))
		}
		if t.opts.NoPermalink || !containsLevel(t.opts.Levels, h.Level) {
			continue
		}
		anchor := &anchorNode{Slug: id}
		if first := h.FirstChild(); first != nil {
			h.InsertBefore(h, first, anchor)
		} else {
			h.AppendChild(h, anchor)
		}
	}
}

type anchorRenderer struct {
	opts AnchorOptions
}

func (r *anchorRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindAnchor, r.render)
}

func (r *anchorRenderer) render(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*anchorNode)
	_, _ = w.WriteString(`<a class="` + html.EscapeString(r.opts.Class) + `" href="#` +
		html.EscapeString(n.Slug) + `" aria-hidden="true">` + html.EscapeString(r.opts.Symbol) + `</a> `)
	return ast.WalkSkipChildren, nil
}
