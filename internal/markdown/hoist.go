package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
	xhtml "golang.org/x/net/html"
)

type hoistExtension struct {
	opts HoistOptions
}

func (e *hoistExtension) Extend(m goldmark.Markdown) {
	tags := make(map[string]struct{}, len(e.opts.Tags))
	for _, t := range e.opts.Tags {
		tags[strings.ToLower(t)] = struct{}{}
	}
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&hoistRenderer{tags: tags}, 100),
	))
}

// hoistRenderer renders HTML blocks verbatim, except blocks opened by one
// of the hoisted tags, which are moved out of the HTML into Env.HoistedTags.
type hoistRenderer struct {
	tags map[string]struct{}
}

func (r *hoistRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindHTMLBlock, r.renderHTMLBlock)
}

func (r *hoistRenderer) renderHTMLBlock(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.HTMLBlock)

	var raw bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		raw.Write(seg.Value(src))
	}
	if n.HasClosure() {
		raw.Write(n.ClosureLine.Value(src))
	}

	if env := envFromWriter(w); env != nil {
		if _, hoist := r.tags[firstTag(raw.Bytes())]; hoist {
			env.HoistedTags = append(env.HoistedTags, strings.TrimSpace(raw.String()))
			return ast.WalkSkipChildren, nil
		}
	}

	_, _ = w.Write(raw.Bytes())
	return ast.WalkSkipChildren, nil
}

// firstTag returns the lower-cased name of the first start tag in raw.
func firstTag(raw []byte) string {
	z := xhtml.NewTokenizer(bytes.NewReader(raw))
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return ""
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			return strings.ToLower(string(name))
		case xhtml.TextToken:
			if len(bytes.TrimSpace(z.Text())) > 0 {
				return ""
			}
		default:
			return ""
		}
	}
}
