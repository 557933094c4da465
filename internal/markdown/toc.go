package markdown

import (
	"bytes"
	"html"
	"regexp"

	"github.com/conneroisu/folio/internal/page"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

type tocExtension struct {
	opts    TOCOptions
	pattern *regexp.Regexp
}

func newTOCExtension(opts TOCOptions) (*tocExtension, error) {
	re, err := regexp.Compile("(?i)" + opts.Pattern)
	if err != nil {
		return nil, err
	}
	return &tocExtension{opts: opts, pattern: re}, nil
}

func (e *tocExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&tocTransformer{ext: e}, priorityTOC),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&tocRenderer{opts: e.opts}, 100),
	))
}

type tocTransformer struct {
	ext *tocExtension
}

// Transform replaces every paragraph that consists of the placeholder alone
// with a table of contents built from the document's headings.
func (t *tocTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	src := reader.Source()

	var placeholders []*ast.Paragraph
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		p, ok := n.(*ast.Paragraph)
		if !ok {
			return ast.WalkContinue, nil
		}
		if t.ext.pattern.Match(bytes.TrimSpace(p.Lines().Value(src))) {
			placeholders = append(placeholders, p)
		}
		return ast.WalkSkipChildren, nil
	})
	if len(placeholders) == 0 {
		return
	}

	var flat []page.Header
	for _, h := range headings(doc) {
		if !containsLevel(t.ext.opts.Levels, h.Level) {
			continue
		}
		title := plainText(h, src)
		slug := headingID(h)
		if slug == "" {
			slug = Slugify(title)
		}
		flat = append(flat, page.Header{Level: h.Level, Title: title, Slug: slug})
	}
	nested := page.NestHeaders(flat)

	for _, p := range placeholders {
		p.Parent().ReplaceChild(p.Parent(), p, &tocNode{Headers: nested})
	}
}

type tocRenderer struct {
	opts TOCOptions
}

func (r *tocRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindTOC, r.render)
}

func (r *tocRenderer) render(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*tocNode)
	_, _ = w.WriteString(`<nav class="` + html.EscapeString(r.opts.ContainerClass) + `">`)
	writeTOCList(w, n.Headers)
	_, _ = w.WriteString("</nav>\n")
	return ast.WalkSkipChildren, nil
}

func writeTOCList(w util.BufWriter, headers []page.Header) {
	if len(headers) == 0 {
		return
	}
	_, _ = w.WriteString("<ul>")
	for _, h := range headers {
		_, _ = w.WriteString(`<li><a href="#` + html.EscapeString(h.Slug) + `">` + html.EscapeString(h.Title) + "</a>")
		writeTOCList(w, h.Children)
		_, _ = w.WriteString("</li>")
	}
	_, _ = w.WriteString("</ul>")
}
