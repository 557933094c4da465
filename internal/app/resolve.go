package app

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cast"

	folioerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/markdown"
	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/paths"
	"github.com/conneroisu/folio/internal/plugins"
)

// discover lists the files under the source directory matching the include
// globs and none of the exclude globs, sorted by relative path.
func (a *App) discover() ([]page.File, error) {
	matcher, err := paths.NewMatcher(a.cfg.Include, a.cfg.Exclude)
	if err != nil {
		return nil, folioerrors.NewConfigError(folioerrors.ErrCodeConfigInvalid, err.Error())
	}

	var files []page.File
	err = afero.Walk(a.fs, a.dirs.Src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == a.dirs.Src {
				return nil
			}
			return err
		}
		if info.IsDir() {
			if p != a.dirs.Src && skipDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := paths.Rel(a.dirs.Src, p)
		if err != nil {
			return nil
		}
		if matcher.Match(rel) {
			files = append(files, page.File{Path: p, Rel: rel})
		}
		return nil
	})
	if err != nil {
		return nil, folioerrors.NewIOError(folioerrors.ErrCodeFileNotFound, "failed to scan "+a.dirs.Src, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

func skipDir(name string) bool {
	return name == "node_modules" || (strings.HasPrefix(name, ".") && name != ".")
}

// resolveAll discovers and resolves every page. Files no plugin claims are
// dropped with a warning. When two pages share a route the later file wins.
func (a *App) resolveAll(ctx context.Context) ([]*page.Page, error) {
	files, err := a.discover()
	if err != nil {
		return nil, err
	}

	pages := make([]*page.Page, 0, len(files)+1)
	byRoute := make(map[string]int, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := a.resolveFile(ctx, file)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		if i, ok := byRoute[p.Route]; ok {
			a.logger.Debug(ctx, "Route collision", "route", p.Route, "dropped", pages[i].RelPath, "kept", p.RelPath)
			pages[i] = nil
		}
		byRoute[p.Route] = len(pages)
		pages = append(pages, p)
	}

	out := pages[:0]
	hasNotFound := false
	for _, p := range pages {
		if p == nil {
			continue
		}
		if page.IsNotFoundRoute(p.Route) {
			hasNotFound = true
		}
		out = append(out, p)
	}
	if !hasNotFound {
		out = append(out, page.NewNotFound(a.Site().Lang))
	}
	return out, nil
}

// resolveFile asks the resolvePage queue for the first plugin claiming file
// and builds the page from its descriptor. A nil page means nobody did.
func (a *App) resolveFile(ctx context.Context, file page.File) (*page.Page, error) {
	res, ok, err := plugins.First(ctx, a.manager, plugins.HookResolvePage, func(ctx context.Context, p plugins.Plugin) (*page.Descriptor, error) {
		return p.(plugins.PageResolver).ResolvePage(ctx, file, a.env)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		a.logger.Warn(ctx, nil, "No plugin resolved file, skipping", "file", file.Rel)
		return nil, nil
	}

	d := res.Value
	p := &page.Page{
		ID:       file.Path,
		FilePath: file.Path,
		RelPath:  file.Rel,
		Name:     d.Name,
		Type:     d.Type,
		Plugin:   res.Plugin,
		Context:  d.Context,
	}

	if d.Route != "" {
		p.Route = paths.NormalizeRoute(d.Route)
	} else {
		route, err := paths.RouteFromFile(file.Rel)
		if err != nil {
			return nil, folioerrors.NewConfigError(folioerrors.ErrCodeInvalidPagePath,
				fmt.Sprintf("%s: %v", file.Rel, err))
		}
		p.Route = route
	}

	if p.Type == page.TypeMarkdown || path.Ext(file.Rel) == ".md" {
		if err := a.augmentMarkdown(ctx, p); err != nil {
			return nil, err
		}
	}

	p.Lang = a.pageLang(p)
	p.Layout = pageLayout(p)
	return p, nil
}

// augmentMarkdown renders the page source and fills p.Markdown. Frontmatter
// route or permalink replaces the derived route.
func (a *App) augmentMarkdown(ctx context.Context, p *page.Page) error {
	content, err := afero.ReadFile(a.fs, p.FilePath)
	if err != nil {
		return folioerrors.NewIOError(folioerrors.ErrCodeFileNotFound, "failed to read "+p.RelPath, err)
	}
	fm, body, err := markdown.SplitFrontmatter(content)
	if err != nil {
		return folioerrors.NewMarkdownError(folioerrors.ErrCodeFrontmatter, p.FilePath, err)
	}

	base := a.Site().BaseURL
	parser := a.Markdown()
	env := &markdown.Env{
		FilePath:         p.FilePath,
		FilePathRelative: p.RelPath,
		Frontmatter:      fm,
		BaseURL:          base,
	}
	html, err := parser.Render(body, env)
	if err != nil {
		return err
	}

	data := &page.MarkdownData{
		Title:         env.Title,
		Headers:       env.Headers,
		Frontmatter:   fm,
		LastUpdated:   a.git.LastUpdated(ctx, p.FilePath),
		Links:         env.Links,
		HoistedTags:   env.HoistedTags,
		ImportedFiles: env.ImportedFiles,
		Assets:        env.Assets,
		HTML:          html,
	}
	if title := markdown.FrontmatterString(fm, "title"); title != "" {
		data.Title = title
	}

	if excerpt, ok := markdown.SplitExcerpt(body); ok {
		excerptEnv := &markdown.Env{
			FilePath:         p.FilePath,
			FilePathRelative: p.RelPath,
			Frontmatter:      fm,
			BaseURL:          base,
		}
		data.Excerpt, err = parser.Render(excerpt, excerptEnv)
		if err != nil {
			return err
		}
	}

	for _, key := range []string{"permalink", "route"} {
		if r := markdown.FrontmatterString(fm, key); r != "" {
			p.Route = paths.NormalizeRoute(r)
			break
		}
	}

	p.Markdown = data
	return nil
}

// pageLang picks frontmatter lang, then the locale owning the route, then
// the site lang.
func (a *App) pageLang(p *page.Page) string {
	if p.Markdown != nil {
		if lang := markdown.FrontmatterString(p.Markdown.Frontmatter, "lang"); lang != "" {
			return lang
		}
	}
	a.mu.RLock()
	locales, lang := a.locales, a.site.Lang
	a.mu.RUnlock()
	if locales != nil {
		if _, locale, ok := locales.Lookup(p.Route); ok && locale.Lang != "" {
			return locale.Lang
		}
	}
	return lang
}

func pageLayout(p *page.Page) string {
	if p.Markdown != nil {
		if layout := markdown.FrontmatterString(p.Markdown.Frontmatter, "layout"); layout != "" {
			return layout
		}
	}
	return strings.TrimSpace(cast.ToString(p.Context["layout"]))
}
