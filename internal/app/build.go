package app

import (
	"context"
	"os"
	"path"

	"github.com/spf13/afero"

	"github.com/conneroisu/folio/internal/build"
	"github.com/conneroisu/folio/internal/config"
	folioerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/paths"
)

// Build writes the static site to the output directory: one HTML file per
// page, the not-found page, the public directory, referenced assets and the
// client modules. Output is minified in production mode.
func (a *App) Build(ctx context.Context) (*build.Manifest, error) {
	if err := a.require(StateInitialized); err != nil {
		return nil, err
	}
	if err := config.ValidateOutDir(a.dirs); err != nil {
		return nil, err
	}
	if a.State() == StateInitialized {
		if err := a.Prepare(ctx); err != nil {
			return nil, err
		}
	}
	a.setState(StateBuilding)

	pages := a.Pages()
	out := make([]build.Page, 0, len(pages))
	for _, p := range pages {
		doc, err := a.document(p)
		if err != nil {
			return nil, folioerrors.NewIOError(folioerrors.ErrCodeRender, "failed to prepare "+p.Route, err)
		}
		bp := build.Page{Route: p.Route, Document: doc}
		if p.Markdown != nil {
			bp.LastUpdated = p.Markdown.LastUpdated
		}
		out = append(out, bp)
	}

	opts := build.Options{
		OutDir:    a.dirs.Out,
		PublicDir: a.dirs.Public,
		Minify:    a.env.IsProduction(),
		Hostname:  a.cfg.Hostname,
		BaseURL:   a.Site().BaseURL,
	}
	gen := build.NewGenerator(a.fs, a.logger, a.recorder)
	manifest, err := gen.Generate(ctx, out, opts)
	if err != nil {
		return nil, err
	}

	if err := a.copyAssets(ctx, gen, opts); err != nil {
		return nil, err
	}
	if err := a.copyClient(gen, opts); err != nil {
		return nil, err
	}
	return manifest, nil
}

// copyAssets copies every source file a markdown page references to
// _assets/ in the output directory.
func (a *App) copyAssets(ctx context.Context, gen *build.Generator, opts build.Options) error {
	seen := map[string]bool{}
	for _, p := range a.Pages() {
		if p.Markdown == nil {
			continue
		}
		for _, rel := range p.Markdown.Assets {
			if seen[rel] {
				continue
			}
			seen[rel] = true
			src := a.dirs.SrcPath(rel)
			if ok, _ := afero.Exists(a.fs, src); !ok {
				a.logger.Warn(ctx, nil, "Referenced asset does not exist", "asset", rel, "page", p.RelPath)
				continue
			}
			if err := gen.CopyFile(opts, src, path.Join(assetsPrefix, rel)); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyClient copies the temp directory to _folio/ in the output directory.
func (a *App) copyClient(gen *build.Generator, opts build.Options) error {
	err := afero.Walk(a.fs, a.dirs.Temp, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == a.dirs.Temp {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := paths.Rel(a.dirs.Temp, p)
		if err != nil {
			return err
		}
		return gen.CopyFile(opts, p, path.Join(clientPrefix, rel))
	})
	if err != nil {
		return folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to copy client modules", err)
	}
	return nil
}
