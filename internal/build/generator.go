// Package build writes the static site: one HTML file per page, the
// not-found page, sitemap, robots.txt, the public directory and a build
// manifest.
package build

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	folioerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/metrics"
	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/paths"
	"github.com/conneroisu/folio/internal/renderer"
)

// ManifestFile is written at the root of the output directory.
const ManifestFile = "folio-manifest.json"

// Page is one output page.
type Page struct {
	Route       string
	Document    renderer.Document
	LastUpdated time.Time
}

// Options configures a single Generate call.
type Options struct {
	OutDir    string
	PublicDir string
	// Minify output; set for production builds.
	Minify bool
	// Hostname, e.g. https://example.com, enables sitemap.xml and the
	// Sitemap line of robots.txt.
	Hostname string
	BaseURL  string
	// Concurrency bounds parallel page writes. Zero means 8.
	Concurrency int
	// Now stamps the manifest; zero means time.Now.
	Now time.Time
}

// Manifest describes a finished build.
type Manifest struct {
	BuildID string    `json:"buildId"`
	BuiltAt time.Time `json:"builtAt"`
	Routes  []string  `json:"routes"`
	Files   []string  `json:"files"`
}

// Generator writes build output to a filesystem.
type Generator struct {
	fs       afero.Fs
	logger   logging.Logger
	recorder metrics.Recorder
	minifier *Minifier
}

// NewGenerator returns a generator writing to fs.
func NewGenerator(fs afero.Fs, logger logging.Logger, recorder metrics.Recorder) *Generator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Generator{
		fs:       fs,
		logger:   logger.WithComponent("build"),
		recorder: recorder,
		minifier: NewMinifier(),
	}
}

// Generate renders pages into opts.OutDir. The output directory is cleared
// first.
func (g *Generator) Generate(ctx context.Context, pages []Page, opts Options) (*Manifest, error) {
	start := time.Now()
	if opts.OutDir == "" {
		return nil, folioerrors.NewConfigError(folioerrors.ErrCodeConfigInvalid, "output directory is not set")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	if err := g.fs.RemoveAll(opts.OutDir); err != nil {
		return nil, folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to clear output directory", err)
	}
	if err := g.fs.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to create output directory", err)
	}

	files, err := g.copyPublic(opts)
	if err != nil {
		return nil, err
	}

	pageFiles, err := g.writePages(ctx, pages, opts)
	if err != nil {
		return nil, err
	}
	files = append(files, pageFiles...)

	routes := make([]string, 0, len(pages))
	for _, p := range pages {
		routes = append(routes, p.Route)
	}

	if opts.Hostname != "" {
		sitemap, err := g.writeSitemap(pages, opts)
		if err != nil {
			return nil, err
		}
		files = append(files, sitemap)
	}
	robots, err := g.writeRobots(opts)
	if err != nil {
		return nil, err
	}
	files = append(files, robots)

	sort.Strings(files)
	manifest := &Manifest{
		BuildID: uuid.NewString(),
		BuiltAt: opts.Now.UTC(),
		Routes:  routes,
		Files:   files,
	}
	if err := g.writeManifest(manifest, opts); err != nil {
		return nil, err
	}

	g.recorder.ObserveBuild(time.Since(start), len(pages))
	g.logger.Info(ctx, "Build complete",
		"pages", len(pages), "files", len(files), "out", opts.OutDir, "duration", time.Since(start).String())
	return manifest, nil
}

func (g *Generator) writePages(ctx context.Context, pages []Page, opts Options) ([]string, error) {
	files := make([]string, len(pages))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Concurrency)
	for i, p := range pages {
		i, p := i, p
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			rel := filepath.ToSlash(paths.OutputFile(p.Route))
			var buf bytes.Buffer
			if err := renderer.Render(egctx, &buf, p.Document); err != nil {
				return fmt.Errorf("rendering %s: %w", p.Route, err)
			}
			if err := g.write(opts, rel, "text/html", buf.Bytes()); err != nil {
				return err
			}
			files[i] = rel
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (g *Generator) write(opts Options, rel, mediatype string, content []byte) error {
	if opts.Minify {
		minified, err := g.minifier.Bytes(mediatype, content)
		if err != nil {
			g.logger.Warn(context.Background(), err, "minification failed, writing original", "file", rel)
		} else {
			content = minified
		}
	}

	target := filepath.Join(opts.OutDir, filepath.FromSlash(rel))
	if err := g.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to create page directory", err)
	}
	if err := afero.WriteFile(g.fs, target, content, 0o644); err != nil {
		return folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to write "+rel, err)
	}
	return nil
}

// copyPublic copies the public directory verbatim into the output root.
func (g *Generator) copyPublic(opts Options) ([]string, error) {
	if opts.PublicDir == "" {
		return nil, nil
	}
	if ok, _ := afero.DirExists(g.fs, opts.PublicDir); !ok {
		return nil, nil
	}

	var files []string
	err := afero.Walk(g.fs, opts.PublicDir, func(p string, info fs.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := paths.Rel(opts.PublicDir, p)
		if err != nil {
			return err
		}
		content, err := afero.ReadFile(g.fs, p)
		if err != nil {
			return err
		}
		target := filepath.Join(opts.OutDir, filepath.FromSlash(rel))
		if err := g.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := afero.WriteFile(g.fs, target, content, info.Mode().Perm()); err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to copy public directory", err)
	}
	return files, nil
}

// CopyFile copies a single source file to rel under the output directory.
func (g *Generator) CopyFile(opts Options, src, rel string) error {
	content, err := afero.ReadFile(g.fs, src)
	if err != nil {
		return folioerrors.NewIOError(folioerrors.ErrCodeFileNotFound, "failed to read "+src, err)
	}
	target := filepath.Join(opts.OutDir, filepath.FromSlash(rel))
	if err := g.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to create asset directory", err)
	}
	if err := afero.WriteFile(g.fs, target, content, 0o644); err != nil {
		return folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to write "+rel, err)
	}
	return nil
}

func (g *Generator) writeSitemap(pages []Page, opts Options) (string, error) {
	host := strings.TrimSuffix(opts.Hostname, "/")

	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, p := range pages {
		if p.Document.Type == page.TypeNotFound {
			continue
		}
		sitemap.WriteString("  <url>\n")
		sitemap.WriteString(fmt.Sprintf("    <loc>%s%s</loc>\n", host, paths.WithBase(opts.BaseURL, p.Route)))
		if !p.LastUpdated.IsZero() {
			sitemap.WriteString(fmt.Sprintf("    <lastmod>%s</lastmod>\n", p.LastUpdated.UTC().Format("2006-01-02")))
		}
		sitemap.WriteString("  </url>\n")
	}
	sitemap.WriteString("</urlset>\n")

	if err := g.write(opts, "sitemap.xml", "text/xml", []byte(sitemap.String())); err != nil {
		return "", err
	}
	return "sitemap.xml", nil
}

func (g *Generator) writeRobots(opts Options) (string, error) {
	robots := "User-agent: *\nAllow: /\n"
	if opts.Hostname != "" {
		robots += fmt.Sprintf("Sitemap: %s%ssitemap.xml\n",
			strings.TrimSuffix(opts.Hostname, "/"), paths.NormalizeBase(opts.BaseURL))
	}
	if err := g.write(Options{OutDir: opts.OutDir}, "robots.txt", "text/plain", []byte(robots)); err != nil {
		return "", err
	}
	return "robots.txt", nil
}

func (g *Generator) writeManifest(m *Manifest, opts Options) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return g.write(Options{OutDir: opts.OutDir}, ManifestFile, "application/json", append(data, '\n'))
}

// ReadManifest loads the manifest of a previous build in outDir.
func ReadManifest(fsys afero.Fs, outDir string) (*Manifest, error) {
	data, err := afero.ReadFile(fsys, filepath.Join(outDir, ManifestFile))
	if err != nil {
		return nil, folioerrors.NewIOError(folioerrors.ErrCodeFileNotFound, "no build manifest in "+outDir, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}
