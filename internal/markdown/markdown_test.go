package markdown

import (
	"html"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark/extension"
)

func plainHighlighter(code, _ string) (string, error) {
	return html.EscapeString(code), nil
}

func newTestParser(t *testing.T, opts Options, extra ...Option) *Parser {
	t.Helper()
	return New(opts, append([]Option{WithHighlighter(plainHighlighter)}, extra...)...)
}

func render(t *testing.T, p *Parser, src string, env *Env) string {
	t.Helper()
	out, err := p.Render([]byte(src), env)
	require.NoError(t, err)
	return out
}

func TestTitleFromFirstHeading(t *testing.T) {
	p := newTestParser(t, DefaultOptions())

	env := &Env{FilePath: "/src/foo/bar.md", FilePathRelative: "foo/bar.md"}
	render(t, p, "# Hello\n\nSome text.\n", env)
	assert.Equal(t, "Hello", env.Title)

	env = &Env{
		FilePath:         "/src/foo/bar.md",
		FilePathRelative: "foo/bar.md",
		Frontmatter:      map[string]interface{}{"title": "Custom"},
	}
	render(t, p, "# Hello\n\nSome text.\n", env)
	assert.Equal(t, "Custom", env.Title)
}

func TestTitleIgnoresAnchorAndLowerHeadings(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	env := &Env{}
	render(t, p, "## Intro\n\n# Real *Title*\n", env)
	assert.Equal(t, "Real Title", env.Title)
}

func TestHeadingAnchorsAreUnique(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	env := &Env{}
	out := render(t, p, "## Hello World\n\n## Hello World\n\n### Déjà vu\n", env)

	assert.Contains(t, out, `id="hello-world"`)
	assert.Contains(t, out, `id="hello-world-1"`)
	assert.Contains(t, out, `<a class="header-anchor" href="#hello-world-1" aria-hidden="true">#</a>`)

	require.Len(t, env.Headers, 2)
	assert.Equal(t, "hello-world", env.Headers[0].Slug)
	assert.Equal(t, "Hello World", env.Headers[0].Title)
	assert.Equal(t, "hello-world-1", env.Headers[1].Slug)
	require.Len(t, env.Headers[1].Children, 1)
	assert.Equal(t, "deja-vu", env.Headers[1].Children[0].Slug)
}

func TestHeadersFollowConfiguredLevels(t *testing.T) {
	opts := DefaultOptions()
	opts.Headers.Levels = []int{2}
	p := newTestParser(t, opts)

	env := &Env{}
	render(t, p, "# T\n\n## A\n\n### B\n\n## C\n", env)
	require.Len(t, env.Headers, 2)
	assert.Equal(t, "A", env.Headers[0].Title)
	assert.Empty(t, env.Headers[0].Children)
	assert.Equal(t, "C", env.Headers[1].Title)
}

func TestTableOfContents(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	out := render(t, p, "[[toc]]\n\n## A\n\n### B\n\n## C\n", &Env{})

	assert.Contains(t, out,
		`<nav class="table-of-contents"><ul><li><a href="#a">A</a><ul><li><a href="#b">B</a></li></ul></li><li><a href="#c">C</a></li></ul></nav>`)
	assert.NotContains(t, out, "[[toc]]")
}

func TestEmojiShortcodes(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	out := render(t, p, "Shipped :tada: today, `:tada:` stays\n", &Env{})

	assert.Contains(t, out, "🎉")
	assert.Contains(t, out, "<code>:tada:</code>")

	opts := DefaultOptions()
	opts.Emoji.Disable = true
	out = render(t, newTestParser(t, opts), "Shipped :tada:\n", &Env{})
	assert.Contains(t, out, ":tada:")
}

func TestCodeFenceHighlightLines(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	src := "```js{2,4-5}\na\nb\nc\nd\ne\nf\n```\n"
	out := render(t, p, src, &Env{})

	assert.Contains(t, out, `<div class="language-js line-numbers-mode" data-ext="js">`)
	i := strings.Index(out, `<div class="highlight-lines">`)
	require.GreaterOrEqual(t, i, 0)
	overlay := out[i:]
	overlay = overlay[:strings.Index(overlay, "</div><div class=\"line-numbers\"")]
	assert.Equal(t, 3, strings.Count(overlay, `<div class="highlighted">&nbsp;</div>`))
	assert.Equal(t, 3, strings.Count(overlay, "<br>"))
	assert.Equal(t, 6, strings.Count(out, `<div class="line-number"></div>`))
}

func TestParseFenceInfo(t *testing.T) {
	fi := ParseFenceInfo("js{2,4-5}")
	assert.Equal(t, "js", fi.Lang)
	assert.Equal(t, []int{2, 4, 5}, HighlightedLines(fi.Highlight, 6))
	assert.Nil(t, fi.LineNumbers)

	fi = ParseFenceInfo("ts:no-line-numbers")
	assert.Equal(t, "ts", fi.Lang)
	require.NotNil(t, fi.LineNumbers)
	assert.False(t, *fi.LineNumbers)

	fi = ParseFenceInfo("go{3-1,x,7}:line-numbers")
	assert.Equal(t, [][2]int{{7, 7}}, fi.Highlight)
	require.NotNil(t, fi.LineNumbers)
	assert.True(t, *fi.LineNumbers)
}

func TestNoLineNumbersFence(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	out := render(t, p, "```sh:no-line-numbers\nls\n```\n", &Env{})
	assert.Contains(t, out, `<div class="language-sh" data-ext="sh">`)
	assert.NotContains(t, out, "line-number")
}

func TestLinkRewriting(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	env := &Env{FilePathRelative: "guide/intro.md", BaseURL: "/docs/"}
	out := render(t, p, strings.Join([]string{
		"[a](./other.md#setup)",
		"[b](../index.md)",
		"[c](/api/client.md)",
		"[d](https://example.com)",
		"[e](#local)",
		"",
	}, "\n\n"), env)

	assert.Contains(t, out, `<a href="./other.html#setup">a</a>`)
	assert.Contains(t, out, `<a href="../">b</a>`)
	assert.Contains(t, out, `<a href="/docs/api/client.html">c</a>`)
	assert.Contains(t, out, `<a href="https://example.com" rel="noopener noreferrer" target="_blank">d</a>`)
	assert.Contains(t, out, `<a href="#local">e</a>`)
	assert.Equal(t, []string{"/guide/other.html", "/", "/api/client.html"}, env.Links)
}

func TestRewriteLink(t *testing.T) {
	testCases := []struct {
		from, dest, href, route string
		ok                      bool
	}{
		{"a.md", "b.md", "b.html", "/b.html", true},
		{"a.md", "sub/README.md", "sub/", "/sub/", true},
		{"x/a.md", "./index.md?x=1", "./?x=1", "/x/", true},
		{"x/a.md", "../img.png", "../img.png", "/img.png", true},
		{"a.md", "https://go.dev", "https://go.dev", "", false},
		{"a.md", "#top", "#top", "", false},
		{"g/a.md", "../../../../a.md", "../../../../a.md", "", false},
		{"g/a.md", "../../img.png", "../../img.png", "", false},
		{"g/a.md", "../b.md", "../b.html", "/b.html", true},
	}
	for _, tc := range testCases {
		t.Run(tc.dest, func(t *testing.T) {
			href, route, ok := RewriteLink("/", tc.from, tc.dest)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.href, href)
			assert.Equal(t, tc.route, route)
		})
	}
}

func TestAssetRewriting(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	env := &Env{FilePathRelative: "guide/intro.md"}
	out := render(t, p, "![logo](./img/logo.png)\n\n![remote](https://cdn.example.com/x.png)\n", env)

	assert.Contains(t, out, `source/guide/img/logo.png" alt="logo">`)
	assert.Contains(t, out, `src="https://cdn.example.com/x.png"`)
	assert.Equal(t, []string{"guide/img/logo.png"}, env.Assets)

	_, _, ok := ResolveAsset("@source", "a.md", "../outside.png")
	assert.False(t, ok)
}

func TestHoistedTags(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	env := &Env{}
	out := render(t, p, "<script setup>\nconst a = 1\n</script>\n\n# Title\n\n<style>\nh1 { color: red }\n</style>\n\n<div>kept</div>\n", env)

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "<style")
	assert.Contains(t, out, "<div>kept</div>")
	assert.Equal(t, []string{
		"<script setup>\nconst a = 1\n</script>",
		"<style>\nh1 { color: red }\n</style>",
	}, env.HoistedTags)
}

func TestCustomComponentBlocks(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	out := render(t, p, "Text before\n<MyDemo title=\"x\">\n*not emphasis*\n</MyDemo>\n", &Env{})

	assert.Contains(t, out, "<p>Text before</p>")
	assert.Contains(t, out, "<MyDemo title=\"x\">\n*not emphasis*\n</MyDemo>")
	assert.NotContains(t, out, "<em>")
}

func TestIsCustomTag(t *testing.T) {
	assert.False(t, IsCustomTag("div"))
	assert.False(t, IsCustomTag(""))
	assert.True(t, IsCustomTag("my-widget"))
	assert.True(t, IsCustomTag("Button"))
	assert.True(t, IsCustomTag("story"))
}

func TestImportCode(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/snippets/a.go", []byte("one\ntwo\nthree\nfour\n"), 0o644))

	opts := DefaultOptions()
	opts.ImportCode.SrcDir = "/src"
	p := newTestParser(t, opts, WithFs(fs))

	env := &Env{FilePath: "/src/guide/page.md", FilePathRelative: "guide/page.md"}
	out := render(t, p, "@import_code(@/snippets/a.go, 2-3)\n\n@import_code(../snippets/a.go)\n\n@import_code(./missing.ts)\n", env)

	assert.Contains(t, out, `<div class="language-go line-numbers-mode" data-ext="go"><pre class="language-go"><code>two
three
</code></pre>`)
	assert.Contains(t, out, "<code>one\ntwo\nthree\nfour\n</code>")
	assert.Contains(t, out, "File not found: ./missing.ts")
	assert.Equal(t, []string{"/src/snippets/a.go", "/src/snippets/a.go", "/src/guide/missing.ts"}, env.ImportedFiles)
}

func TestImportCodeWithoutFences(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/snip.go", []byte("if a < b {}\n"), 0o644))

	opts := DefaultOptions()
	opts.Code.Disable = true
	p := newTestParser(t, opts, WithFs(fs))

	env := &Env{FilePath: "/src/page.md", FilePathRelative: "page.md"}
	out := render(t, p, "Before\n\n@import_code(./snip.go)\n\n@import_code(./gone.go)\n\nAfter\n", env)

	assert.Contains(t, out, "<p>Before</p>")
	assert.Contains(t, out, `<pre><code class="language-go">if a &lt; b {}`+"\n</code></pre>")
	assert.Contains(t, out, "File not found: ./gone.go")
	assert.Contains(t, out, "<p>After</p>")
	assert.NotContains(t, out, "line-numbers-mode")
}

func TestSliceLines(t *testing.T) {
	s := "1\n2\n3\n4\n5"
	assert.Equal(t, "2\n3\n", SliceLines(s, 2, 3))
	assert.Equal(t, "4\n5\n", SliceLines(s, 4, 0))
	assert.Equal(t, "1\n2\n", SliceLines(s, 0, 2))
	assert.Equal(t, s, SliceLines(s, 0, 0))
	assert.Equal(t, "", SliceLines(s, 4, 2))
}

func TestRenderCache(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	src := "# Cached\n"

	first := &Env{FilePath: "/src/a.md", FilePathRelative: "a.md"}
	out1 := render(t, p, src, first)
	second := &Env{FilePath: "/src/a.md", FilePathRelative: "a.md"}
	out2 := render(t, p, src, second)

	assert.Equal(t, out1, out2)
	assert.Equal(t, "Cached", second.Title)
	assert.Equal(t, 1, p.CacheLen())

	render(t, p, src, &Env{FilePath: "/src/b.md", FilePathRelative: "b.md"})
	render(t, p, src, &Env{FilePath: "/src/a.md", FilePathRelative: "a.md", Frontmatter: map[string]interface{}{"title": "X"}})
	assert.Equal(t, 3, p.CacheLen())

	p.Forget("/src/a.md")
	assert.Equal(t, 1, p.CacheLen())
}

func TestCacheSeparatesFiles(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	src := "[next](./next.md)\n"

	a := &Env{FilePathRelative: "a/page.md", FilePath: "/src/a/page.md"}
	b := &Env{FilePathRelative: "b/page.md", FilePath: "/src/b/page.md"}
	render(t, p, src, a)
	render(t, p, src, b)

	assert.Equal(t, []string{"/a/next.html"}, a.Links)
	assert.Equal(t, []string{"/b/next.html"}, b.Links)
}

func TestUseAfterRenderIsFrozen(t *testing.T) {
	p := newTestParser(t, DefaultOptions())
	require.NoError(t, p.Use(extension.Footnote))
	assert.False(t, p.Frozen())

	out := render(t, p, "Hi[^1]\n\n[^1]: note\n", &Env{})
	assert.Contains(t, out, "footnote")
	assert.True(t, p.Frozen())
	assert.ErrorIs(t, p.Use(extension.DefinitionList), ErrParserFrozen)
}

func TestInvalidTOCPattern(t *testing.T) {
	opts := DefaultOptions()
	opts.TOC.Pattern = "(["
	p := newTestParser(t, opts)
	_, err := p.Render([]byte("x"), &Env{})
	assert.Error(t, err)
}
