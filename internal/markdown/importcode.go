package markdown

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var importCodeLine = regexp.MustCompile(`^ {0,3}@import_code\(\s*([^,)\s]+)\s*(?:,\s*(\d*)\s*-\s*(\d*)\s*)?\)\s*$`)

type importCodeExtension struct {
	opts ImportCodeOptions
	fs   afero.Fs
}

func (e *importCodeExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithBlockParsers(
		util.Prioritized(&importCodeParser{opts: e.opts, fs: e.fs}, 90),
	))
	// The fence renderer replaces this one when code fences are enabled.
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(importRenderer{}, 200),
	))
}

// importRenderer writes imported code as a plain escaped block.
type importRenderer struct{}

func (r importRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindImport, r.render)
}

func (importRenderer) render(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*importBlock)
	if n.Missing {
		writeImportMissing(w, n)
		return ast.WalkSkipChildren, nil
	}
	_, _ = w.WriteString("<pre><code")
	if n.Info != "" {
		_, _ = w.WriteString(` class="language-`)
		_, _ = w.Write(util.EscapeHTML([]byte(n.Info)))
		_, _ = w.WriteString(`"`)
	}
	_ = w.WriteByte('>')
	_, _ = w.Write(util.EscapeHTML(n.Code))
	_, _ = w.WriteString("</code></pre>\n")
	return ast.WalkSkipChildren, nil
}

func writeImportMissing(w util.BufWriter, n *importBlock) {
	_, _ = w.WriteString(`<p class="import-code-missing">File not found: `)
	_, _ = w.Write(util.EscapeHTML([]byte(n.Path)))
	_, _ = w.WriteString("</p>\n")
}

// importCodeParser turns a line like
//
//	@import_code(./snippets/main.go, 3-10)
//
// into a code block holding lines 3 to 10 of that file. Paths are relative
// to the current file; an "@/" prefix makes them relative to the source
// directory.
type importCodeParser struct {
	opts ImportCodeOptions
	fs   afero.Fs
}

func (p *importCodeParser) Trigger() []byte { return []byte{'@'} }

func (p *importCodeParser) Open(_ ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	m := importCodeLine.FindSubmatch(util.TrimRightSpace(line))
	if m == nil {
		return nil, parser.NoChildren
	}
	reader.Advance(segment.Len() - 1)

	env := envFrom(pc)
	node := &importBlock{Path: string(m[1])}
	node.Resolve = p.resolve(env, node.Path)
	node.Info = strings.TrimPrefix(filepath.Ext(node.Resolve), ".")
	env.ImportedFiles = append(env.ImportedFiles, node.Resolve)

	data, err := afero.ReadFile(p.fs, node.Resolve)
	if err != nil {
		node.Missing = true
		return node, parser.NoChildren
	}
	node.Code = []byte(SliceLines(string(data), atoi(m[2]), atoi(m[3])))
	return node, parser.NoChildren
}

func (p *importCodeParser) resolve(env *Env, importPath string) string {
	if rest, ok := strings.CutPrefix(importPath, "@/"); ok {
		return filepath.Join(p.opts.SrcDir, filepath.FromSlash(rest))
	}
	if filepath.IsAbs(importPath) {
		return filepath.Clean(importPath)
	}
	return filepath.Join(filepath.Dir(env.FilePath), filepath.FromSlash(importPath))
}

func (p *importCodeParser) Continue(ast.Node, text.Reader, parser.Context) parser.State {
	return parser.Close
}

func (p *importCodeParser) Close(ast.Node, text.Reader, parser.Context) {}
func (p *importCodeParser) CanInterruptParagraph() bool                 { return true }
func (p *importCodeParser) CanAcceptIndentedLine() bool                 { return false }

// SliceLines returns lines start through end of s, 1-based and inclusive.
// Zero means open ended on that side.
func SliceLines(s string, start, end int) string {
	if start <= 0 && end <= 0 {
		return s
	}
	lines := strings.SplitAfter(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if start <= 0 {
		start = 1
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	out := strings.Join(lines[start-1:end], "")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

func atoi(b []byte) int {
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0
	}
	return n
}
