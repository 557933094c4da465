package markdown

import (
	"github.com/conneroisu/folio/internal/page"
	"github.com/spf13/cast"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

type headersExtension struct {
	opts HeadersOptions
}

func (e *headersExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&headersTransformer{opts: e.opts}, priorityHeaders),
	))
}

type headersTransformer struct {
	opts HeadersOptions
}

// Transform records the headings at the configured levels in the Env.
func (t *headersTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	env := envFrom(pc)
	src := reader.Source()

	var flat []page.Header
	for _, h := range headings(doc) {
		if !containsLevel(t.opts.Levels, h.Level) {
			continue
		}
		title := plainText(h, src)
		slug := headingID(h)
		if slug == "" {
			slug = Slugify(title)
		}
		flat = append(flat, page.Header{Level: h.Level, Title: title, Slug: slug})
	}
	env.Headers = page.NestHeaders(flat)
}

type titleExtension struct{}

func (e *titleExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&titleTransformer{}, priorityTitle),
	))
}

type titleTransformer struct{}

// Transform sets Env.Title from the frontmatter title, falling back to the
// first level one heading.
func (t *titleTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	env := envFrom(pc)
	if title := cast.ToString(env.Frontmatter["title"]); title != "" {
		env.Title = title
		return
	}
	for _, h := range headings(doc) {
		if h.Level == 1 {
			env.Title = plainText(h, reader.Source())
			return
		}
	}
}
