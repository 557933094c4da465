package app

import (
	"bytes"
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/config"
	folioerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/plugins"
	"github.com/conneroisu/folio/internal/site"
)

// txtPlugin claims .txt files and records pagesRemoved calls.
type txtPlugin struct {
	removed [][]*page.Page
}

func (p *txtPlugin) Name() string { return "test:txt" }

func (p *txtPlugin) ResolvePage(_ context.Context, file page.File, _ plugins.Env) (*page.Descriptor, error) {
	if path.Ext(file.Rel) != ".txt" {
		return nil, nil
	}
	return &page.Descriptor{Type: "txt", Context: map[string]interface{}{"rel": file.Rel}}, nil
}

func (p *txtPlugin) PagesRemoved(_ context.Context, pages []*page.Page) error {
	p.removed = append(p.removed, pages)
	return nil
}

type namedPlugin string

func (p namedPlugin) Name() string { return string(p) }

type siteDataPlugin struct {
	name  string
	patch *site.Options
	err   error
	seen  []string
}

func (p *siteDataPlugin) Name() string { return p.name }

func (p *siteDataPlugin) SiteData(_ context.Context, opts site.Options, _ plugins.Env) (*site.Options, error) {
	p.seen = append(p.seen, opts.Title)
	return p.patch, p.err
}

type testTheme struct {
	name    string
	parent  plugins.Theme
	plugins []plugins.Plugin
	layouts map[string]string
}

func (t *testTheme) Name() string { return t.name }
func (t *testTheme) Extends() plugins.Theme {
	if t.parent == nil {
		return nil
	}
	return t.parent
}
func (t *testTheme) Plugins() []plugins.Plugin  { return t.plugins }
func (t *testTheme) Layouts() map[string]string { return t.layouts }

func newTestApp(t *testing.T, cmd plugins.Command, files map[string]string, mutate func(*config.Config), opts ...Option) (*App, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join("/site", name), []byte(content), 0o644))
	}
	cfg := config.Default()
	cfg.Root = "/site"
	cfg.Plugins = []string{"folio:meta", "folio:markdown", "folio:story"}
	if mutate != nil {
		mutate(cfg)
	}
	a, err := New(cfg, cmd, append([]Option{WithFs(fs)}, opts...)...)
	require.NoError(t, err)
	return a, fs
}

func routes(pages []*page.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Route
	}
	return out
}

var docsFiles = map[string]string{
	"index.md":          "# Home\n\n![logo](./logo.png)\n",
	"guide/index.md":    "# Guide\n",
	"guide/intro.md":    "---\ntitle: Custom\n---\n# Hello\n\nIntro text.\n<!-- more -->\nRest.\n",
	"guide/plain.md":    "# Hello\n",
	"button.story.md":   "# Button\n",
	"logo.png":          "png",
	".folio/.temp/x.md": "# ignored\n",
	"node_modules/y.md": "# ignored\n",
}

func TestInitResolvesPages(t *testing.T) {
	a, _ := newTestApp(t, plugins.CommandBuild, docsFiles, nil)
	require.NoError(t, a.Init(context.Background()))
	assert.Equal(t, StateInitialized, a.State())

	pages := a.Pages()
	assert.Equal(t, []string{
		"/button.story.html",
		"/guide/",
		"/guide/intro.html",
		"/guide/plain.html",
		"/",
		page.NotFoundRoute,
	}, routes(pages))

	intro, ok := a.Page("/guide/intro.html")
	require.True(t, ok)
	assert.Equal(t, page.TypeMarkdown, intro.Type)
	assert.Equal(t, "folio:markdown", intro.Plugin)
	assert.Equal(t, "Custom", intro.Title())
	assert.Contains(t, intro.Markdown.Excerpt, "Intro text.")
	assert.NotContains(t, intro.Markdown.Excerpt, "Rest.")
	assert.False(t, intro.Markdown.LastUpdated.IsZero())

	plain, _ := a.Page("/guide/plain.html")
	assert.Equal(t, "Hello", plain.Title())

	story, _ := a.Page("/button.story.html")
	assert.Equal(t, page.TypeStory, story.Type)
	assert.Equal(t, "Button", story.Name)
	require.NotNil(t, story.Markdown)

	home, _ := a.Page("/")
	assert.Equal(t, []string{"logo.png"}, home.Markdown.Assets)
	assert.Contains(t, home.Markdown.HTML, `src="/_assets/logo.png"`)

	notFound, _ := a.Page(page.NotFoundRoute)
	assert.True(t, notFound.IsSynthetic())
	assert.Equal(t, "en-US", notFound.Lang)
}

func TestInitTwiceFails(t *testing.T) {
	a, _ := newTestApp(t, plugins.CommandBuild, docsFiles, nil)
	require.NoError(t, a.Init(context.Background()))
	err := a.Init(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, folioerrors.ErrClosed))
}

func TestExplicitNotFoundPage(t *testing.T) {
	a, _ := newTestApp(t, plugins.CommandBuild, map[string]string{
		"index.md": "# Home\n",
		"404.md":   "# Lost\n",
	}, nil)
	require.NoError(t, a.Init(context.Background()))

	assert.Equal(t, []string{"/404.html", "/"}, routes(a.Pages()))
	p, _ := a.Page(page.NotFoundRoute)
	assert.False(t, p.IsSynthetic())
}

func TestUnresolvedFileWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelWarn, Output: &buf})

	a, _ := newTestApp(t, plugins.CommandBuild, map[string]string{
		"index.md": "# Home\n",
		"data.csv": "a,b\n",
	}, func(cfg *config.Config) {
		cfg.Include = append(cfg.Include, "**/*.csv")
	}, WithLogger(logger))

	require.NoError(t, a.Init(context.Background()))
	assert.Equal(t, []string{"/", page.NotFoundRoute}, routes(a.Pages()))
	assert.Contains(t, buf.String(), "No plugin resolved file")
	assert.Contains(t, buf.String(), "data.csv")
}

func TestRouteOverridesAndCollisions(t *testing.T) {
	a, _ := newTestApp(t, plugins.CommandBuild, map[string]string{
		"a.md":     "---\npermalink: /b\n---\n# A\n",
		"b.md":     "# B\n",
		"c.md":     "---\nroute: /custom/\n---\n# C\n",
		"指南/介绍.md": "# 介绍\n",
	}, nil)
	require.NoError(t, a.Init(context.Background()))

	assert.Equal(t, []string{
		"/b.html",
		"/custom/",
		"/%E6%8C%87%E5%8D%97/%E4%BB%8B%E7%BB%8D.html",
		page.NotFoundRoute,
	}, routes(a.Pages()))

	kept, _ := a.Page("/b.html")
	assert.Equal(t, "b.md", kept.RelPath)
}

func TestPageLang(t *testing.T) {
	a, _ := newTestApp(t, plugins.CommandBuild, map[string]string{
		"index.md":    "# Home\n",
		"zh/index.md": "# 首页\n",
		"zh/fr.md":    "---\nlang: fr-FR\n---\n# Bonjour\n",
	}, func(cfg *config.Config) {
		cfg.Site.Locales = map[string]site.Locale{"/zh/": {Lang: "zh-CN", Title: "文档"}}
	})
	require.NoError(t, a.Init(context.Background()))

	home, _ := a.Page("/")
	zh, _ := a.Page("/zh/")
	fr, _ := a.Page("/zh/fr.html")
	assert.Equal(t, "en-US", home.Lang)
	assert.Equal(t, "zh-CN", zh.Lang)
	assert.Equal(t, "fr-FR", fr.Lang)
}

func TestResolutionIsIdempotent(t *testing.T) {
	a, _ := newTestApp(t, plugins.CommandBuild, docsFiles, nil)
	ctx := context.Background()
	require.NoError(t, a.Init(ctx))

	type view struct {
		Route   string
		Type    page.Type
		Context map[string]interface{}
	}
	snapshot := func() []view {
		var out []view
		for _, p := range a.Pages() {
			out = append(out, view{p.Route, p.Type, p.Context})
		}
		return out
	}

	first := snapshot()
	_, err := a.HandleChanges(ctx, nil)
	require.NoError(t, err)
	second := snapshot()
	_, err = a.HandleChanges(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, second, snapshot())
}

func TestPagesRemovedOncePerPlugin(t *testing.T) {
	txt := &txtPlugin{}
	a, fs := newTestApp(t, plugins.CommandBuild, map[string]string{
		"index.md": "# Home\n",
		"gone.md":  "# Gone\n",
		"a.txt":    "a",
		"b.txt":    "b",
		"c.txt":    "c",
	}, func(cfg *config.Config) {
		cfg.Include = append(cfg.Include, "**/*.txt")
	}, WithPlugins(txt))
	ctx := context.Background()
	require.NoError(t, a.Init(ctx))

	for _, name := range []string{"gone.md", "a.txt", "b.txt"} {
		require.NoError(t, fs.Remove(filepath.Join("/site", name)))
	}
	res, err := a.HandleChanges(ctx, []string{"/site/gone.md", "/site/a.txt", "/site/b.txt"})
	require.NoError(t, err)

	require.Len(t, txt.removed, 1)
	assert.Equal(t, []string{"/a.html", "/b.html"}, routes(txt.removed[0]))
	assert.ElementsMatch(t, []string{"/gone.html", "/a.html", "/b.html"}, res.Removed)
	assert.Equal(t, []string{"/c.html", "/", page.NotFoundRoute}, routes(a.Pages()))
}

func TestHandleChangesReportsAddedAndUpdated(t *testing.T) {
	a, fs := newTestApp(t, plugins.CommandBuild, map[string]string{
		"index.md": "# Home\n",
	}, nil)
	ctx := context.Background()
	require.NoError(t, a.Init(ctx))

	require.NoError(t, afero.WriteFile(fs, "/site/index.md", []byte("# New Home\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/site/new.md", []byte("# New\n"), 0o644))

	res, err := a.HandleChanges(ctx, []string{"/site/index.md", "/site/new.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/new.html"}, res.Added)
	assert.Equal(t, []string{"/"}, res.Updated)
	assert.Empty(t, res.Removed)

	home, _ := a.Page("/")
	assert.Equal(t, "New Home", home.Title())
}

func TestImportedFileChangeRerenders(t *testing.T) {
	a, fs := newTestApp(t, plugins.CommandBuild, map[string]string{
		"index.md":      "# Home\n\n@import_code(./snippets/a.go)\n",
		"snippets/a.go": "package a\n",
	}, nil)
	ctx := context.Background()
	require.NoError(t, a.Init(ctx))

	home, _ := a.Page("/")
	require.Contains(t, home.Markdown.ImportedFiles, "/site/snippets/a.go")
	assert.True(t, a.isDependency("/site/snippets/a.go"))

	require.NoError(t, afero.WriteFile(fs, "/site/snippets/a.go", []byte("package changed\n"), 0o644))
	res, err := a.HandleChanges(ctx, []string{"/site/snippets/a.go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/"}, res.Updated)

	home, _ = a.Page("/")
	assert.Contains(t, home.Markdown.HTML, "changed")
}

func TestHandleChangesSkipsWhileResolving(t *testing.T) {
	a, _ := newTestApp(t, plugins.CommandBuild, docsFiles, nil)
	ctx := context.Background()
	require.NoError(t, a.Init(ctx))

	a.resolving.Store(true)
	res, err := a.HandleChanges(ctx, []string{"/site/index.md"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	a.resolving.Store(false)

	res, err = a.HandleChanges(ctx, nil)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
}

func TestHandleChangesBeforeInit(t *testing.T) {
	a, _ := newTestApp(t, plugins.CommandBuild, docsFiles, nil)
	_, err := a.HandleChanges(context.Background(), nil)
	require.Error(t, err)
}

func TestSiteDataMergedInOrder(t *testing.T) {
	first := &siteDataPlugin{name: "test:first", patch: &site.Options{Title: "First", Description: "kept"}}
	second := &siteDataPlugin{name: "test:second", patch: &site.Options{Title: "Second"}}
	none := &siteDataPlugin{name: "test:none"}

	a, _ := newTestApp(t, plugins.CommandBuild, docsFiles, func(cfg *config.Config) {
		cfg.Site.Title = "Configured"
	}, WithPlugins(first, second, none))
	require.NoError(t, a.Init(context.Background()))

	assert.Equal(t, []string{"Configured"}, first.seen)
	assert.Equal(t, []string{"First"}, second.seen)
	assert.Equal(t, []string{"Second"}, none.seen)

	opts := a.Site()
	assert.Equal(t, "Second", opts.Title)
	assert.Equal(t, "kept", opts.Description)
	require.NotEmpty(t, opts.Head)
	assert.Equal(t, "meta", opts.Head[0].Tag)
}

func TestHookErrorIsFatalToInit(t *testing.T) {
	broken := &siteDataPlugin{name: "test:broken", err: errors.New("boom")}
	a, _ := newTestApp(t, plugins.CommandBuild, docsFiles, nil, WithPlugins(broken))

	err := a.Init(context.Background())
	require.Error(t, err)
	assert.True(t, folioerrors.IsHookError(err))
	assert.Contains(t, err.Error(), "test:broken")
}

func TestUnknownPlugin(t *testing.T) {
	cfg := config.Default()
	cfg.Plugins = []string{"folio:nope"}
	_, err := New(cfg, plugins.CommandBuild, WithFs(afero.NewMemMapFs()))
	require.Error(t, err)
	assert.True(t, folioerrors.IsFatal(err))
}

func TestThemeOrdering(t *testing.T) {
	parent := &testTheme{
		name:    "parent",
		plugins: []plugins.Plugin{namedPlugin("parent:plugin")},
		layouts: map[string]string{"default": "layouts/parent.js", "home": "layouts/home.js"},
	}
	child := &testTheme{
		name:    "child",
		parent:  parent,
		plugins: []plugins.Plugin{namedPlugin("child:plugin")},
		layouts: map[string]string{"default": "layouts/child.js"},
	}

	a, _ := newTestApp(t, plugins.CommandBuild, nil, func(cfg *config.Config) {
		cfg.Plugins = []string{"folio:markdown"}
		cfg.Site.Layouts = map[string]string{"home": "layouts/mine.js"}
	}, WithTheme(child), WithPlugins(namedPlugin("user:plugin")))

	var names []string
	for _, p := range a.Manager().Plugins() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"parent:plugin", "child:plugin", "folio:markdown", "user:plugin"}, names)

	layouts := a.Site().Layouts
	assert.Equal(t, "layouts/child.js", layouts["default"])
	assert.Equal(t, "layouts/mine.js", layouts["home"])
}

func TestPrepareWritesModules(t *testing.T) {
	a, fs := newTestApp(t, plugins.CommandDev, docsFiles, func(cfg *config.Config) {
		cfg.Plugins = append(cfg.Plugins, "folio:reload")
		cfg.Site.Layouts = map[string]string{"default": "layouts/default.js"}
	})
	ctx := context.Background()
	require.NoError(t, a.Init(ctx))
	require.NoError(t, a.Prepare(ctx))
	assert.Equal(t, StatePrepared, a.State())

	pagesJS, err := afero.ReadFile(fs, "/site/.folio/.temp/pages.js")
	require.NoError(t, err)
	assert.Contains(t, string(pagesJS), `"/guide/intro.html": () => import("./page-data/`)

	entries, err := afero.ReadDir(fs, "/site/.folio/.temp/page-data")
	require.NoError(t, err)
	assert.Len(t, entries, len(a.Pages()))

	client, err := afero.ReadFile(fs, "/site/.folio/.temp/client.js")
	require.NoError(t, err)
	assert.Contains(t, string(client), `import "/_folio/client/reload.js"`)

	layouts, err := afero.ReadFile(fs, "/site/.folio/.temp/layouts.js")
	require.NoError(t, err)
	assert.Contains(t, string(layouts), `"default": () => import("/_assets/layouts/default.js")`)

	siteData, err := afero.ReadFile(fs, "/site/.folio/.temp/site-data.js")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(siteData), generatedHeader+"export const siteData = {"))

	require.NoError(t, fs.Remove("/site/guide/plain.md"))
	_, err = a.HandleChanges(ctx, []string{"/site/guide/plain.md"})
	require.NoError(t, err)

	entries, err = afero.ReadDir(fs, "/site/.folio/.temp/page-data")
	require.NoError(t, err)
	assert.Len(t, entries, len(a.Pages()))
}

func TestRenderRoute(t *testing.T) {
	a, _ := newTestApp(t, plugins.CommandDev, docsFiles, func(cfg *config.Config) {
		cfg.Site.Title = "Docs"
	})
	ctx := context.Background()
	require.NoError(t, a.Init(ctx))

	var buf bytes.Buffer
	found, err := a.RenderRoute(ctx, &buf, "/guide/intro.html")
	require.NoError(t, err)
	require.True(t, found)
	html := buf.String()
	assert.Contains(t, html, "<title>Custom | Docs</title>")
	assert.Contains(t, html, `<script type="module" src="/_folio/client.js"></script>`)
	assert.Contains(t, html, "Intro text.")

	buf.Reset()
	found, err = a.RenderRoute(ctx, &buf, "/missing.html")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = a.RenderRoute(ctx, &buf, page.NotFoundRoute)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Contains(t, buf.String(), "Page not found.")
}

func TestBuild(t *testing.T) {
	a, fs := newTestApp(t, plugins.CommandBuild, docsFiles, func(cfg *config.Config) {
		cfg.Hostname = "https://example.com"
	})
	ctx := context.Background()
	require.NoError(t, a.Init(ctx))

	manifest, err := a.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateBuilding, a.State())
	assert.Contains(t, manifest.Routes, "/guide/intro.html")

	for _, file := range []string{
		"index.html",
		"guide/index.html",
		"guide/intro.html",
		"button.story.html",
		"404.html",
		"sitemap.xml",
		"robots.txt",
		"_assets/logo.png",
		"_folio/client.js",
		"_folio/pages.js",
	} {
		ok, err := afero.Exists(fs, filepath.Join("/site/.folio/dist", file))
		require.NoError(t, err)
		assert.True(t, ok, file)
	}

	intro, err := afero.ReadFile(fs, "/site/.folio/dist/guide/intro.html")
	require.NoError(t, err)
	assert.Contains(t, string(intro), "Intro text.")
}

func TestBuildRefusesToClearSources(t *testing.T) {
	files := map[string]string{
		"index.md":   "# Home\n",
		"guide/a.md": "# A\n",
	}
	for _, out := range []string{".", "/", "guide/.."} {
		t.Run(out, func(t *testing.T) {
			a, fs := newTestApp(t, plugins.CommandBuild, files, func(cfg *config.Config) {
				cfg.OutDir = out
			})
			ctx := context.Background()
			require.NoError(t, a.Init(ctx))

			_, err := a.Build(ctx)
			require.Error(t, err)
			assert.True(t, folioerrors.IsFatal(err))

			ok, err := afero.Exists(fs, "/site/guide/a.md")
			require.NoError(t, err)
			assert.True(t, ok, "source file survives")
		})
	}
}

func TestClosedAppRejectsOperations(t *testing.T) {
	a, _ := newTestApp(t, plugins.CommandBuild, docsFiles, nil)
	ctx := context.Background()
	require.NoError(t, a.Init(ctx))
	require.NoError(t, a.Close(ctx))

	assert.ErrorIs(t, a.Close(ctx), folioerrors.ErrClosed)
	assert.ErrorIs(t, a.Init(ctx), folioerrors.ErrClosed)
	assert.ErrorIs(t, a.Prepare(ctx), folioerrors.ErrClosed)
	_, err := a.HandleChanges(ctx, nil)
	assert.ErrorIs(t, err, folioerrors.ErrClosed)
	_, err = a.Build(ctx)
	assert.ErrorIs(t, err, folioerrors.ErrClosed)
	_, err = a.RenderRoute(ctx, &bytes.Buffer{}, "/")
	assert.ErrorIs(t, err, folioerrors.ErrClosed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "siteDataResolving", StateSiteDataResolving.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
