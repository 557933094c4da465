package markdown

import (
	"regexp"
	"strings"

	"github.com/kyokomi/emoji/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var shortcodePattern = regexp.MustCompile(`:[a-z0-9_+\-]+:`)

type emojiExtension struct{}

func (e *emojiExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&emojiTransformer{codes: emoji.CodeMap()}, priorityEmoji),
	))
}

type emojiTransformer struct {
	codes map[string]string
}

func (t *emojiTransformer) replace(s string) (string, bool) {
	changed := false
	out := shortcodePattern.ReplaceAllStringFunc(s, func(code string) string {
		if e, ok := t.codes[code]; ok {
			changed = true
			return strings.TrimSpace(e)
		}
		return code
	})
	return out, changed
}

// Transform swaps shortcodes in text nodes for the emoji. The replacement is
// inserted as a string node ahead of the original text node, which is then
// emptied so that its line break flags survive.
func (t *emojiTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	src := reader.Source()
	var texts []*ast.Text
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindCodeSpan, ast.KindCodeBlock, ast.KindFencedCodeBlock, ast.KindHTMLBlock, ast.KindRawHTML:
			return ast.WalkSkipChildren, nil
		}
		if tn, ok := n.(*ast.Text); ok && !tn.IsRaw() {
			texts = append(texts, tn)
		}
		return ast.WalkContinue, nil
	})

	for _, tn := range texts {
		value := string(tn.Segment.Value(src))
		if !strings.Contains(value, ":") {
			continue
		}
		replaced, ok := t.replace(value)
		if !ok {
			continue
		}
		parent := tn.Parent()
		parent.InsertBefore(parent, tn, ast.NewString([]byte(replaced)))
		tn.Segment = text.NewSegment(tn.Segment.Stop, tn.Segment.Stop)
	}
}
