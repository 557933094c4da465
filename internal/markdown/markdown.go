// Package markdown renders folio pages with goldmark.
//
// A Parser applies a fixed chain of steps. The first five are AST
// transformers and run in this order, each seeing the previous one's work:
//
//	emoji     :smile: shortcodes become emoji
//	anchor    headings get ids and permalinks
//	toc       a [[toc]] paragraph becomes a table of contents
//	headers   headings are recorded in the Env
//	title     the first h1, or the frontmatter title, goes to Env.Title
//
// The remaining six replace or add goldmark renderers and block parsers and
// do not depend on each other: custom component blocks, asset image URLs,
// hoisted script and style blocks, link rewriting, code fences and
// @import_code blocks.
//
// Renders are cached per Parser, keyed on the source and the Env inputs.
package markdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	folioerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/metrics"
	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// ErrParserFrozen is returned by Use once the parser has rendered.
var ErrParserFrozen = errors.New("markdown parser is frozen after the first render")

// Parser renders markdown. It is safe for concurrent use.
type Parser struct {
	opts      Options
	fs        afero.Fs
	logger    logging.Logger
	recorder  metrics.Recorder
	highlight Highlighter

	mu        sync.Mutex
	extenders []goldmark.Extender
	md        goldmark.Markdown
	cache     *renderCache
}

// Option configures a Parser.
type Option func(*Parser)

// WithFs sets the filesystem @import_code reads from.
func WithFs(fs afero.Fs) Option {
	return func(p *Parser) { p.fs = fs }
}

// WithLogger sets the logger; records carry component "markdown".
func WithLogger(l logging.Logger) Option {
	return func(p *Parser) { p.logger = l.WithComponent("markdown") }
}

// WithRecorder sets where render cache hits and misses are counted.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Parser) { p.recorder = r }
}

// WithHighlighter replaces the chroma highlighter.
func WithHighlighter(h Highlighter) Option {
	return func(p *Parser) { p.highlight = h }
}

// New creates a parser. Extensions can be added with Use until the first
// Render.
func New(opts Options, options ...Option) *Parser {
	opts = opts.withDefaults()
	p := &Parser{
		opts:     opts,
		fs:       afero.NewOsFs(),
		logger:   logging.NewNopLogger(),
		recorder: metrics.NoopRecorder{},
		cache:    newRenderCache(opts.CacheSize),
	}
	for _, o := range options {
		o(p)
	}
	if p.highlight == nil {
		p.highlight = ChromaHighlighter(opts.Code.Style)
	}
	return p
}

// Options returns the effective options.
func (p *Parser) Options() Options {
	return p.opts
}

// Use appends goldmark extensions after the built-in chain. AST
// transformers added this way should use priorities above 500 to run after
// the title step.
func (p *Parser) Use(exts ...goldmark.Extender) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.md != nil {
		return ErrParserFrozen
	}
	p.extenders = append(p.extenders, exts...)
	return nil
}

// Frozen reports whether the parser has been built.
func (p *Parser) Frozen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.md != nil
}

func (p *Parser) markdown() (goldmark.Markdown, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.md != nil {
		return p.md, nil
	}

	exts, err := p.chain()
	if err != nil {
		return nil, err
	}
	p.md = goldmark.New(
		goldmark.WithExtensions(append(exts, p.extenders...)...),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	return p.md, nil
}

// chain returns the built-in extensions whose options are not disabled.
func (p *Parser) chain() ([]goldmark.Extender, error) {
	o := p.opts
	exts := []goldmark.Extender{extension.GFM}

	if !o.Emoji.Disable {
		exts = append(exts, &emojiExtension{})
	}
	if !o.Anchor.Disable {
		exts = append(exts, &anchorExtension{opts: o.Anchor})
	}
	if !o.TOC.Disable {
		toc, err := newTOCExtension(o.TOC)
		if err != nil {
			return nil, folioerrors.NewConfigError(folioerrors.ErrCodeConfigInvalid, "invalid toc pattern: "+err.Error())
		}
		exts = append(exts, toc)
	}
	if !o.Headers.Disable {
		exts = append(exts, &headersExtension{opts: o.Headers})
	}
	if !o.Title.Disable {
		exts = append(exts, &titleExtension{})
	}
	if !o.Components.Disable {
		exts = append(exts, &componentExtension{})
	}
	if !o.Assets.Disable {
		exts = append(exts, &assetsExtension{opts: o.Assets})
	}
	if !o.Hoist.Disable {
		exts = append(exts, &hoistExtension{opts: o.Hoist})
	}
	if !o.Links.Disable {
		exts = append(exts, &linksExtension{opts: o.Links})
	}
	if !o.Code.Disable {
		exts = append(exts, &fenceExtension{opts: o.Code, highlight: p.highlight})
	}
	if !o.ImportCode.Disable {
		exts = append(exts, &importCodeExtension{opts: o.ImportCode, fs: p.fs})
	}
	return exts, nil
}

// Render converts source to HTML, filling env's output fields. The first
// call freezes the parser.
func (p *Parser) Render(source []byte, env *Env) (string, error) {
	if env == nil {
		env = &Env{}
	}
	md, err := p.markdown()
	if err != nil {
		return "", err
	}

	key := renderKey(source, env)
	if hit, ok := p.cache.get(key); ok {
		p.recorder.IncRenderCache(true)
		env.restore(hit.outputs)
		return hit.html, nil
	}
	p.recorder.IncRenderCache(false)

	html, err := convert(md, source, env)
	if err != nil {
		return "", err
	}
	p.cache.add(key, &cached{html: html, outputs: env.outputs(), filePath: env.FilePath})
	return html, nil
}

// convert parses and renders source. A panicking extension becomes a render
// error of the file.
func convert(md goldmark.Markdown, source []byte, env *Env) (html string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = folioerrors.NewMarkdownError(folioerrors.ErrCodeRender, env.FilePath, fmt.Errorf("panic: %v", r))
		}
	}()

	pc := parser.NewContext()
	pc.Set(envKey, env)
	doc := md.Parser().Parse(text.NewReader(source), parser.WithContext(pc))

	out := &renderContext{Buffer: &bytes.Buffer{}, env: env}
	if err := md.Renderer().Render(out, source, doc); err != nil {
		return "", folioerrors.NewMarkdownError(folioerrors.ErrCodeRender, env.FilePath, err)
	}
	return out.String(), nil
}

// Forget drops every cached render of filePath.
func (p *Parser) Forget(filePath string) {
	if n := p.cache.forget(filePath); n > 0 {
		p.logger.Debug(context.Background(), "Render cache evicted", "file", filePath, "entries", n)
	}
}

// CacheLen reports how many renders are cached.
func (p *Parser) CacheLen() int {
	return p.cache.len()
}
