package markdown

import (
	"bytes"
	"html"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// Highlighter turns code into the HTML placed inside <pre><code>. An error
// falls back to escaped plain text.
type Highlighter func(code, lang string) (string, error)

// ChromaHighlighter highlights with chroma using CSS classes, so the page
// stylesheet decides the colors. style names the chroma style whose
// stylesheet WriteChromaCSS emits.
func ChromaHighlighter(style string) Highlighter {
	formatter := chromahtml.New(chromahtml.WithClasses(true), chromahtml.PreventSurroundingPre(true))
	st := styles.Get(style)
	return func(code, lang string) (string, error) {
		lexer := lexers.Get(lang)
		if lexer == nil {
			return html.EscapeString(code), nil
		}
		iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
		if err != nil {
			return "", err
		}
		var buf bytes.Buffer
		if err := formatter.Format(&buf, st, iterator); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
}

// FenceInfo is the parsed info string of a code fence, such as
// "ts{1,3-5}:no-line-numbers".
type FenceInfo struct {
	Lang        string
	Highlight   [][2]int
	LineNumbers *bool
}

var (
	fenceLang   = regexp.MustCompile(`^[^{:\s]*`)
	fenceRanges = regexp.MustCompile(`\{([^}]*)\}`)
)

// ParseFenceInfo parses a fence info string.
func ParseFenceInfo(info string) FenceInfo {
	info = strings.TrimSpace(info)
	fi := FenceInfo{Lang: fenceLang.FindString(info)}
	if m := fenceRanges.FindStringSubmatch(info); m != nil {
		fi.Highlight = ParseHighlightLines(m[1])
	}
	switch {
	case strings.Contains(info, ":no-line-numbers"):
		off := false
		fi.LineNumbers = &off
	case strings.Contains(info, ":line-numbers"):
		on := true
		fi.LineNumbers = &on
	}
	return fi
}

// ParseHighlightLines parses "1,3-5" into inclusive 1-based ranges.
// Malformed parts are ignored.
func ParseHighlightLines(spec string) [][2]int {
	var ranges [][2]int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || start < 1 {
			continue
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start {
				continue
			}
		}
		ranges = append(ranges, [2]int{start, end})
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i][0] < ranges[j][0] })
	return ranges
}

// HighlightedLines returns, for a block of n lines, which 1-based lines fall
// in ranges.
func HighlightedLines(ranges [][2]int, n int) []int {
	var lines []int
	for line := 1; line <= n; line++ {
		if lineInRanges(ranges, line) {
			lines = append(lines, line)
		}
	}
	return lines
}

func lineInRanges(ranges [][2]int, line int) bool {
	for _, r := range ranges {
		if line >= r[0] && line <= r[1] {
			return true
		}
	}
	return false
}

type fenceExtension struct {
	opts      CodeOptions
	highlight Highlighter
}

func (e *fenceExtension) Extend(m goldmark.Markdown) {
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&fenceRenderer{opts: e.opts, highlight: e.highlight}, 100),
	))
}

type fenceRenderer struct {
	opts      CodeOptions
	highlight Highlighter
}

func (r *fenceRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFence)
	reg.Register(KindImport, r.renderImport)
}

func (r *fenceRenderer) renderFence(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var info string
	if n.Info != nil {
		info = string(n.Info.Segment.Value(src))
	}
	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(src))
	}

	r.write(w, ParseFenceInfo(info), code.String())
	return ast.WalkSkipChildren, nil
}

func (r *fenceRenderer) renderImport(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*importBlock)
	if n.Missing {
		writeImportMissing(w, n)
		return ast.WalkSkipChildren, nil
	}
	r.write(w, ParseFenceInfo(n.Info), string(n.Code))
	return ast.WalkSkipChildren, nil
}

// write renders a code block wrapper: the highlighted code, an overlay
// marking highlighted lines and an optional line number gutter.
func (r *fenceRenderer) write(w util.BufWriter, fi FenceInfo, code string) {
	lang := fi.Lang
	if lang == "" {
		lang = "text"
	}
	lineCount := strings.Count(code, "\n")
	if code != "" && !strings.HasSuffix(code, "\n") {
		lineCount++
	}

	showNumbers := r.opts.LineNumbers
	if fi.LineNumbers != nil {
		showNumbers = *fi.LineNumbers
	}

	body, err := r.highlight(code, lang)
	if err != nil {
		body = html.EscapeString(code)
	}

	class := "language-" + html.EscapeString(lang)
	if showNumbers {
		class += " line-numbers-mode"
	}
	_, _ = w.WriteString(`<div class="` + class + `" data-ext="` + html.EscapeString(lang) + `">`)
	_, _ = w.WriteString(`<pre class="` + "language-" + html.EscapeString(lang) + `"><code>`)
	_, _ = w.WriteString(body)
	_, _ = w.WriteString("</code></pre>")

	if len(fi.Highlight) > 0 {
		_, _ = w.WriteString(`<div class="highlight-lines">`)
		for line := 1; line <= lineCount; line++ {
			if lineInRanges(fi.Highlight, line) {
				_, _ = w.WriteString(`<div class="highlighted">&nbsp;</div>`)
			} else {
				_, _ = w.WriteString("<br>")
			}
		}
		_, _ = w.WriteString("</div>")
	}

	if showNumbers {
		_, _ = w.WriteString(`<div class="line-numbers" aria-hidden="true">`)
		for line := 1; line <= lineCount; line++ {
			_, _ = w.WriteString(`<div class="line-number"></div>`)
		}
		_, _ = w.WriteString("</div>")
	}
	_, _ = w.WriteString("</div>\n")
}

// WriteChromaCSS writes the stylesheet for the classes ChromaHighlighter
// emits.
func WriteChromaCSS(w io.Writer, style string) error {
	return chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(w, styles.Get(style))
}
