package markdown

import (
	"html"
	"path"
	"strings"

	"github.com/conneroisu/folio/internal/paths"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

type assetsExtension struct {
	opts AssetsOptions
}

func (e *assetsExtension) Extend(m goldmark.Markdown) {
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&assetsRenderer{opts: e.opts}, 100),
	))
}

// ResolveAsset rewrites a relative asset URL found in the file at rel
// (relative to the source directory) to alias + its source-relative path.
// ok is false when dest is left untouched.
func ResolveAsset(alias, rel, dest string) (resolved, sourcePath string, ok bool) {
	if !paths.IsRelative(dest) {
		return dest, "", false
	}
	clean, suffix := splitSuffix(dest)
	joined := path.Clean(path.Join(path.Dir(paths.ToSlash(rel)), clean))
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return dest, "", false
	}
	return strings.TrimSuffix(alias, "/") + "/" + joined + suffix, joined, true
}

// splitSuffix separates a trailing query or fragment from a URL path.
func splitSuffix(dest string) (string, string) {
	if i := strings.IndexAny(dest, "?#"); i >= 0 {
		return dest[:i], dest[i:]
	}
	return dest, ""
}

type assetsRenderer struct {
	opts AssetsOptions
}

func (r *assetsRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindImage, r.renderImage)
}

func (r *assetsRenderer) renderImage(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Image)
	dest := string(n.Destination)

	if env := envFromWriter(w); env != nil {
		if resolved, source, ok := ResolveAsset(r.opts.Alias, env.FilePathRelative, dest); ok {
			dest = resolved
			env.Assets = append(env.Assets, source)
		}
	}

	_, _ = w.WriteString(`<img src="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape([]byte(dest), true)))
	_, _ = w.WriteString(`" alt="`)
	_, _ = w.WriteString(html.EscapeString(plainText(n, src)))
	_ = w.WriteByte('"')
	if n.Title != nil {
		_, _ = w.WriteString(` title="`)
		_, _ = w.Write(util.EscapeHTML(n.Title))
		_ = w.WriteByte('"')
	}
	if n.Attributes() != nil {
		gmhtml.RenderAttributes(w, n, gmhtml.ImageAttributeFilter)
	}
	_ = w.WriteByte('>')
	return ast.WalkSkipChildren, nil
}
