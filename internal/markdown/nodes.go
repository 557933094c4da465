package markdown

import (
	"bytes"

	"github.com/conneroisu/folio/internal/page"
	"github.com/yuin/goldmark/ast"
)

var (
	KindAnchor    = ast.NewNodeKind("FolioHeaderAnchor")
	KindTOC       = ast.NewNodeKind("FolioTableOfContents")
	KindComponent = ast.NewNodeKind("FolioComponent")
	KindImport    = ast.NewNodeKind("FolioImportCode")
)

// anchorNode is the permalink placed inside a heading.
type anchorNode struct {
	ast.BaseInline
	Slug string
}

func (n *anchorNode) Kind() ast.NodeKind { return KindAnchor }
func (n *anchorNode) Dump(src []byte, level int) {
	ast.DumpHelper(n, src, level, map[string]string{"Slug": n.Slug}, nil)
}

// tocNode replaces the table of contents placeholder paragraph.
type tocNode struct {
	ast.BaseBlock
	Headers []page.Header
}

func (n *tocNode) Kind() ast.NodeKind { return KindTOC }
func (n *tocNode) Dump(src []byte, level int) {
	ast.DumpHelper(n, src, level, nil, nil)
}

// componentBlock is raw markup opened by a custom component tag.
type componentBlock struct {
	ast.BaseBlock
	Tag string
}

func (n *componentBlock) Kind() ast.NodeKind { return KindComponent }
func (n *componentBlock) IsRaw() bool        { return true }
func (n *componentBlock) Dump(src []byte, level int) {
	ast.DumpHelper(n, src, level, map[string]string{"Tag": n.Tag}, nil)
}

// importBlock is a code block whose content comes from another file.
type importBlock struct {
	ast.BaseBlock
	Path    string
	Resolve string
	Info    string
	Code    []byte
	Missing bool
}

func (n *importBlock) Kind() ast.NodeKind { return KindImport }
func (n *importBlock) IsRaw() bool        { return true }
func (n *importBlock) Dump(src []byte, level int) {
	ast.DumpHelper(n, src, level, map[string]string{"Path": n.Path}, nil)
}

// plainText concatenates the visible text below n, skipping anchors.
func plainText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	writePlainText(&buf, n, src)
	return string(bytes.TrimSpace(buf.Bytes()))
}

func writePlainText(buf *bytes.Buffer, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *anchorNode:
			continue
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		case *ast.RawHTML:
			continue
		default:
			writePlainText(buf, c, src)
		}
	}
}

func headings(doc ast.Node) []*ast.Heading {
	var hs []*ast.Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			hs = append(hs, h)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return hs
}

func headingID(h *ast.Heading) string {
	if v, ok := h.AttributeString("id"); ok {
		switch id := v.(type) {
		case []byte:
			return string(id)
		case string:
			return id
		}
	}
	return ""
}
