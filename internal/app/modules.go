package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	folioerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/paths"
	"github.com/conneroisu/folio/internal/plugins"
)

// URL prefixes, under the base URL, of files served from the source and
// temp directories.
const (
	assetsPrefix = "_assets"
	clientPrefix = "_folio"
)

// Client module files written to the temp directory.
const (
	PagesModule    = "pages.js"
	SiteDataModule = "site-data.js"
	LayoutsModule  = "layouts.js"
	ClientModule   = "client.js"
	PageDataDir    = "page-data"
)

// ClientFiles are the files plugins contribute to the client app, in hook
// order.
type ClientFiles struct {
	Enhance []string
	Setup   []string
	Root    []string
}

// Prepare writes the client modules to the temp directory.
func (a *App) Prepare(ctx context.Context) error {
	if err := a.require(StateInitialized); err != nil {
		return err
	}
	if err := a.writeModules(ctx); err != nil {
		return err
	}
	if a.State() == StateInitialized {
		a.setState(StatePrepared)
	}
	return nil
}

// clientFiles collects the three client file hooks.
func (a *App) clientFiles(ctx context.Context) (ClientFiles, error) {
	var files ClientFiles
	collect := func(hook plugins.HookName, call func(context.Context, plugins.Plugin) ([]string, error)) ([]string, error) {
		results, err := plugins.Process(ctx, a.manager, hook, call)
		if err != nil {
			return nil, err
		}
		var out []string
		for _, r := range results {
			out = append(out, r.Value...)
		}
		return out, nil
	}

	var err error
	files.Enhance, err = collect(plugins.HookClientAppEnhanceFiles, func(ctx context.Context, p plugins.Plugin) ([]string, error) {
		return p.(plugins.ClientEnhancer).ClientAppEnhanceFiles(ctx, a)
	})
	if err != nil {
		return files, err
	}
	files.Setup, err = collect(plugins.HookClientAppSetupFiles, func(ctx context.Context, p plugins.Plugin) ([]string, error) {
		return p.(plugins.ClientSetup).ClientAppSetupFiles(ctx, a)
	})
	if err != nil {
		return files, err
	}
	files.Root, err = collect(plugins.HookClientAppRootComponentFiles, func(ctx context.Context, p plugins.Plugin) ([]string, error) {
		return p.(plugins.ClientRootComponents).ClientAppRootComponentFiles(ctx, a)
	})
	return files, err
}

// writeModules generates every client module. Files are only rewritten
// when their content changed; page data of vanished pages is removed.
func (a *App) writeModules(ctx context.Context) error {
	files, err := a.clientFiles(ctx)
	if err != nil {
		return err
	}

	pages := a.Pages()
	site := a.Site()

	var pagesJS bytes.Buffer
	pagesJS.WriteString(generatedHeader)
	pagesJS.WriteString("export const pages = {\n")
	keep := make(map[string]bool, len(pages))
	for _, p := range pages {
		name := pageDataFile(p)
		keep[name] = true
		fmt.Fprintf(&pagesJS, "  %s: () => import(%s),\n", strconv.Quote(p.Route), strconv.Quote("./"+PageDataDir+"/"+name))

		data, err := json.Marshal(p)
		if err != nil {
			return folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to encode page data of "+p.Route, err)
		}
		if err := a.writeModule(filepath.Join(PageDataDir, name), generatedHeader+"export const data = "+string(data)+"\n"); err != nil {
			return err
		}
	}
	pagesJS.WriteString("}\n")
	if err := a.writeModule(PagesModule, pagesJS.String()); err != nil {
		return err
	}
	if err := a.removeStalePageData(keep); err != nil {
		return err
	}

	siteData, err := json.Marshal(site)
	if err != nil {
		return folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to encode site data", err)
	}
	if err := a.writeModule(SiteDataModule, generatedHeader+"export const siteData = "+string(siteData)+"\n"); err != nil {
		return err
	}

	var layouts bytes.Buffer
	layouts.WriteString(generatedHeader)
	layouts.WriteString("export const layouts = {\n")
	names := make([]string, 0, len(site.Layouts))
	for name := range site.Layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		url, ok := a.clientURL(paths.Resolve(a.dirs.Src, site.Layouts[name]))
		if !ok {
			a.logger.Warn(ctx, nil, "Layout is outside the source and temp directories, skipping", "layout", name)
			continue
		}
		fmt.Fprintf(&layouts, "  %s: () => import(%s),\n", strconv.Quote(name), strconv.Quote(url))
	}
	layouts.WriteString("}\n")
	if err := a.writeModule(LayoutsModule, layouts.String()); err != nil {
		return err
	}

	var client bytes.Buffer
	client.WriteString(generatedHeader)
	for _, f := range append(append([]string{}, files.Enhance...), files.Setup...) {
		url, ok := a.clientURL(f)
		if !ok {
			a.logger.Warn(ctx, nil, "Client file is outside the source and temp directories, skipping", "file", f)
			continue
		}
		fmt.Fprintf(&client, "import %s\n", strconv.Quote(url))
	}
	client.WriteString("export const rootComponents = [\n")
	for _, f := range files.Root {
		url, ok := a.clientURL(f)
		if !ok {
			a.logger.Warn(ctx, nil, "Root component is outside the source and temp directories, skipping", "file", f)
			continue
		}
		fmt.Fprintf(&client, "  () => import(%s),\n", strconv.Quote(url))
	}
	client.WriteString("]\n")
	if err := a.writeModule(ClientModule, client.String()); err != nil {
		return err
	}

	a.logger.Debug(ctx, "Client modules written", "dir", a.dirs.Temp, "pages", len(pages))
	return nil
}

const generatedHeader = "// generated by folio\n"

// pageDataFile names the data module of p after a hash of its identity.
func pageDataFile(p *page.Page) string {
	return strconv.FormatUint(xxhash.Sum64String(p.ID), 16) + ".js"
}

func (a *App) writeModule(rel, content string) error {
	target := a.dirs.TempPath(rel)
	if existing, err := afero.ReadFile(a.fs, target); err == nil && string(existing) == content {
		return nil
	}
	if err := a.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to create "+filepath.Dir(target), err)
	}
	if err := afero.WriteFile(a.fs, target, []byte(content), 0o644); err != nil {
		return folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to write "+rel, err)
	}
	return nil
}

func (a *App) removeStalePageData(keep map[string]bool) error {
	dir := a.dirs.TempPath(PageDataDir)
	entries, err := afero.ReadDir(a.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return folioerrors.NewIOError(folioerrors.ErrCodeFileNotFound, "failed to list "+dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || keep[e.Name()] {
			continue
		}
		if err := a.fs.Remove(filepath.Join(dir, e.Name())); err != nil {
			return folioerrors.NewIOError(folioerrors.ErrCodeWriteFailed, "failed to remove "+e.Name(), err)
		}
	}
	return nil
}

// clientURL maps a file in the temp or source directory to the URL it is
// served at. Files elsewhere cannot be served.
func (a *App) clientURL(file string) (string, bool) {
	base := a.Site().BaseURL
	if rel, err := paths.Rel(a.dirs.Temp, file); err == nil {
		return paths.WithBase(base, "/"+clientPrefix+"/"+rel), true
	}
	if rel, err := paths.Rel(a.dirs.Src, file); err == nil && !strings.HasPrefix(rel, ".") {
		return paths.WithBase(base, "/"+assetsPrefix+"/"+rel), true
	}
	return "", false
}
