package markdown

import (
	"path"
	"sort"
	"strings"

	"github.com/conneroisu/folio/internal/paths"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

type linksExtension struct {
	opts LinksOptions
}

func (e *linksExtension) Extend(m goldmark.Markdown) {
	keys := make([]string, 0, len(e.opts.ExternalAttrs))
	for k := range e.opts.ExternalAttrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&linkRenderer{opts: e.opts, keys: keys}, 100),
	))
}

// RewriteLink resolves an internal link found in the file at fromRel.
// Links to markdown files are rewritten to the page they become. route is
// the site-absolute route the link points at; ok is false for links that
// are external, only carry a fragment or query, or climb above the source
// directory.
func RewriteLink(base, fromRel, dest string) (href, route string, ok bool) {
	if paths.IsExternal(dest) || strings.HasPrefix(dest, "mailto:") {
		return dest, "", false
	}
	p, suffix := splitSuffix(dest)
	if p == "" {
		return dest, "", false
	}

	absolute := strings.HasPrefix(p, "/")
	target := path.Clean(p)
	if !absolute {
		joined := path.Join(path.Dir(paths.ToSlash(fromRel)), p)
		if joined == ".." || strings.HasPrefix(joined, "../") {
			return dest, "", false
		}
		target = "/" + joined
	}

	if !strings.HasSuffix(p, ".md") {
		return dest, paths.EncodeRoute(target), true
	}

	route, err := paths.RouteFromFile(strings.TrimPrefix(target, "/"))
	if err != nil {
		return dest, "", false
	}
	if absolute {
		return paths.WithBase(base, route) + suffix, route, true
	}
	return markdownToHTML(p) + suffix, route, true
}

func markdownToHTML(p string) string {
	dir, file := path.Split(p)
	name := strings.TrimSuffix(file, ".md")
	if name == "index" || name == "README" {
		if dir == "" {
			return "./"
		}
		return dir
	}
	return dir + name + ".html"
}

type linkRenderer struct {
	opts LinksOptions
	keys []string
}

func (r *linkRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindLink, r.renderLink)
}

func (r *linkRenderer) renderLink(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Link)
	dest := string(n.Destination)
	external := paths.IsExternal(dest)

	if env := envFromWriter(w); env != nil && !external {
		if href, route, ok := RewriteLink(env.base(), env.FilePathRelative, dest); ok {
			dest = href
			env.Links = append(env.Links, route)
		}
	}

	_, _ = w.WriteString(`<a href="`)
	if !gmhtml.IsDangerousURL([]byte(dest)) {
		_, _ = w.Write(util.EscapeHTML(util.URLEscape([]byte(dest), true)))
	}
	_ = w.WriteByte('"')
	if n.Title != nil {
		_, _ = w.WriteString(` title="`)
		_, _ = w.Write(util.EscapeHTML(n.Title))
		_ = w.WriteByte('"')
	}
	if n.Attributes() != nil {
		gmhtml.RenderAttributes(w, n, gmhtml.LinkAttributeFilter)
	}
	if external {
		for _, k := range r.keys {
			if _, set := n.AttributeString(k); set {
				continue
			}
			_, _ = w.WriteString(" " + k + `="`)
			_, _ = w.Write(util.EscapeHTML([]byte(r.opts.ExternalAttrs[k])))
			_ = w.WriteByte('"')
		}
	}
	_ = w.WriteByte('>')
	return ast.WalkContinue, nil
}
