package markdown

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html/atom"
)

var componentOpen = regexp.MustCompile(`^ {0,3}</?([A-Za-z][A-Za-z0-9\-_.:]*)(?:\s|/?>|$)`)

// IsCustomTag reports whether name is not a standard HTML element: it has
// a dash, starts upper case, or is simply unknown.
func IsCustomTag(name string) bool {
	if name == "" {
		return false
	}
	if strings.ContainsAny(name, "-.:") || (name[0] >= 'A' && name[0] <= 'Z') {
		return true
	}
	return atom.Lookup([]byte(name)) == 0
}

type componentExtension struct{}

func (e *componentExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithBlockParsers(
		util.Prioritized(&componentParser{}, 850),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&componentRenderer{}, 100),
	))
}

// componentParser claims lines that open with a custom component tag and
// keeps them verbatim up to the next blank line. Unlike a plain HTML block
// it may interrupt a paragraph.
type componentParser struct{}

func (p *componentParser) Trigger() []byte { return []byte{'<'} }

func (p *componentParser) Open(_ ast.Node, reader text.Reader, _ parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	m := componentOpen.FindSubmatch(line)
	if m == nil || !IsCustomTag(string(m[1])) {
		return nil, parser.NoChildren
	}
	node := &componentBlock{Tag: string(m[1])}
	node.Lines().Append(segment)
	reader.Advance(segment.Len() - 1)
	return node, parser.NoChildren
}

func (p *componentParser) Continue(node ast.Node, reader text.Reader, _ parser.Context) parser.State {
	line, segment := reader.PeekLine()
	if util.IsBlank(line) {
		return parser.Close
	}
	node.Lines().Append(segment)
	reader.Advance(segment.Len() - 1)
	return parser.Continue | parser.NoChildren
}

func (p *componentParser) Close(ast.Node, text.Reader, parser.Context) {}
func (p *componentParser) CanInterruptParagraph() bool                 { return true }
func (p *componentParser) CanAcceptIndentedLine() bool                 { return false }

type componentRenderer struct{}

func (r *componentRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindComponent, r.render)
}

func (r *componentRenderer) render(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		_, _ = w.Write(seg.Value(src))
	}
	return ast.WalkSkipChildren, nil
}
