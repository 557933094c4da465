package build

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/renderer"
)

func testPages() []Page {
	updated := time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)
	return []Page{
		{Route: "/", Document: renderer.Document{Title: "Home", Body: "<h1>Home</h1>", Type: page.TypeMarkdown}, LastUpdated: updated},
		{Route: "/guide/intro.html", Document: renderer.Document{Title: "Intro", Body: "<p>intro</p>", Type: page.TypeMarkdown}},
		{Route: "/%E6%8C%87%E5%8D%97/", Document: renderer.Document{Title: "Guide", Type: page.TypeMarkdown}},
		{Route: page.NotFoundRoute, Document: renderer.Document{Title: "404", Type: page.TypeNotFound}},
	}
}

func TestGenerateWritesPages(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/site/public/favicon.ico", []byte("ico"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/out/stale.html", []byte("old"), 0o644))

	g := NewGenerator(fs, nil, nil)
	manifest, err := g.Generate(context.Background(), testPages(), Options{
		OutDir:    "/out",
		PublicDir: "/site/public",
		Hostname:  "https://example.com",
		BaseURL:   "/docs/",
	})
	require.NoError(t, err)

	for _, f := range []string{"index.html", "guide/intro.html", "指南/index.html", "404.html", "favicon.ico", "sitemap.xml", "robots.txt", ManifestFile} {
		exists, err := afero.Exists(fs, filepath.Join("/out", filepath.FromSlash(f)))
		require.NoError(t, err)
		assert.True(t, exists, f)
	}
	exists, _ := afero.Exists(fs, "/out/stale.html")
	assert.False(t, exists)

	index, err := afero.ReadFile(fs, "/out/index.html")
	require.NoError(t, err)
	assert.Contains(t, string(index), "<h1>Home</h1>")

	sitemap, err := afero.ReadFile(fs, "/out/sitemap.xml")
	require.NoError(t, err)
	assert.Contains(t, string(sitemap), "<loc>https://example.com/docs/guide/intro.html</loc>")
	assert.Contains(t, string(sitemap), "<lastmod>2024-05-04</lastmod>")
	assert.NotContains(t, string(sitemap), "404.html")

	robots, err := afero.ReadFile(fs, "/out/robots.txt")
	require.NoError(t, err)
	assert.Contains(t, string(robots), "Sitemap: https://example.com/docs/sitemap.xml")

	assert.NotEmpty(t, manifest.BuildID)
	assert.Len(t, manifest.Routes, 4)

	read, err := ReadManifest(fs, "/out")
	require.NoError(t, err)
	assert.Equal(t, manifest.BuildID, read.BuildID)
	assert.Equal(t, manifest.Files, read.Files)
}

func TestGenerateMinifies(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := NewGenerator(fs, nil, nil)

	_, err := g.Generate(context.Background(), testPages()[:1], Options{OutDir: "/out", Minify: true})
	require.NoError(t, err)

	index, err := afero.ReadFile(fs, "/out/index.html")
	require.NoError(t, err)
	assert.NotContains(t, string(index), "\n<head>\n")
	assert.Contains(t, string(index), "<h1>Home</h1>")
}

func TestGenerateWithoutHostnameSkipsSitemap(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := NewGenerator(fs, nil, nil).Generate(context.Background(), testPages(), Options{OutDir: "/out"})
	require.NoError(t, err)

	exists, _ := afero.Exists(fs, "/out/sitemap.xml")
	assert.False(t, exists)
	robots, err := afero.ReadFile(fs, "/out/robots.txt")
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(robots), "Sitemap"))
}

func TestGenerateRequiresOutDir(t *testing.T) {
	_, err := NewGenerator(afero.NewMemMapFs(), nil, nil).Generate(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestGenerateHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGenerator(afero.NewMemMapFs(), nil, nil).Generate(ctx, testPages(), Options{OutDir: "/out"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMinifierUnknownType(t *testing.T) {
	out, err := NewMinifier().Bytes("text/plain", []byte("  keep  "))
	require.NoError(t, err)
	assert.Equal(t, "  keep  ", string(out))
}
