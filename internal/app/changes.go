package app

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/folio/internal/metrics"
	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/plugins"
)

// ChangeResult describes one HandleChanges pass.
type ChangeResult struct {
	// Skipped is set when another resolution was already running. The
	// changes were dropped.
	Skipped bool
	Added   []string
	Removed []string
	Updated []string
}

// Routes returns every route the pass touched.
func (r ChangeResult) Routes() []string {
	out := make([]string, 0, len(r.Added)+len(r.Removed)+len(r.Updated))
	out = append(out, r.Added...)
	out = append(out, r.Removed...)
	return append(out, r.Updated...)
}

// HandleChanges re-resolves pages after the given source files changed.
// Only one resolution runs at a time; a call made while one is in flight
// returns immediately with Skipped set. Plugins that owned removed pages
// get one pagesRemoved call each. When the client modules were already
// written they are rewritten.
func (a *App) HandleChanges(ctx context.Context, changed []string) (ChangeResult, error) {
	var result ChangeResult
	if err := a.require(StateInitialized); err != nil {
		return result, err
	}
	if !a.resolving.CompareAndSwap(false, true) {
		a.logger.Debug(ctx, "Resolution in progress, dropping changes", "files", len(changed))
		a.recorder.IncReload(metrics.ReloadSkipped)
		result.Skipped = true
		return result, nil
	}
	defer a.resolving.Store(false)

	before := a.Pages()
	a.forget(before, changed)

	after, err := a.resolveAll(ctx)
	if err != nil {
		a.recorder.IncReload(metrics.ReloadFailed)
		return result, err
	}
	a.setPages(after)

	removed := diffPages(before, after, changed, &result)
	if err := a.notifyRemoved(ctx, removed); err != nil {
		a.recorder.IncReload(metrics.ReloadFailed)
		return result, err
	}

	if s := a.State(); s >= StatePrepared {
		if err := a.writeModules(ctx); err != nil {
			a.recorder.IncReload(metrics.ReloadFailed)
			return result, err
		}
	}

	a.recorder.IncReload(metrics.ReloadOK)
	a.logger.Info(ctx, "Pages updated",
		"added", len(result.Added), "removed", len(result.Removed), "updated", len(result.Updated))
	return result, nil
}

// forget evicts cached renders and git dates of the changed files and of
// every page importing one of them.
func (a *App) forget(pages []*page.Page, changed []string) {
	parser := a.Markdown()
	set := make(map[string]bool, len(changed))
	for _, f := range changed {
		f = filepath.Clean(f)
		set[f] = true
		if parser != nil {
			parser.Forget(f)
		}
	}
	a.git.Forget(changed...)

	if parser == nil {
		return
	}
	for _, p := range pages {
		if p.Markdown == nil {
			continue
		}
		for _, imported := range p.Markdown.ImportedFiles {
			if set[filepath.Clean(imported)] {
				parser.Forget(p.FilePath)
				break
			}
		}
	}
}

// diffPages fills result and returns the pages of before whose identity is
// gone from after.
func diffPages(before, after []*page.Page, changed []string, result *ChangeResult) []*page.Page {
	oldByID := make(map[string]*page.Page, len(before))
	for _, p := range before {
		oldByID[p.ID] = p
	}
	newByID := make(map[string]*page.Page, len(after))
	for _, p := range after {
		newByID[p.ID] = p
	}
	touched := make(map[string]bool, len(changed))
	for _, f := range changed {
		touched[filepath.Clean(f)] = true
	}

	var removed []*page.Page
	for _, p := range before {
		if _, ok := newByID[p.ID]; !ok {
			removed = append(removed, p)
			result.Removed = append(result.Removed, p.Route)
		}
	}
	for _, p := range after {
		old, ok := oldByID[p.ID]
		switch {
		case !ok:
			result.Added = append(result.Added, p.Route)
		case touched[p.FilePath] || old.Route != p.Route || importsAny(p, touched):
			result.Updated = append(result.Updated, p.Route)
		}
	}
	return removed
}

func importsAny(p *page.Page, files map[string]bool) bool {
	if p.Markdown == nil {
		return false
	}
	for _, f := range p.Markdown.ImportedFiles {
		if files[filepath.Clean(f)] {
			return true
		}
	}
	return false
}

// notifyRemoved groups removed pages by owning plugin and calls each
// owner's pagesRemoved hook once.
func (a *App) notifyRemoved(ctx context.Context, removed []*page.Page) error {
	if len(removed) == 0 {
		return nil
	}
	byPlugin := make(map[string][]*page.Page)
	for _, p := range removed {
		if p.Plugin == "" {
			continue
		}
		byPlugin[p.Plugin] = append(byPlugin[p.Plugin], p)
	}

	return plugins.Run(ctx, a.manager, plugins.HookPagesRemoved, func(ctx context.Context, p plugins.Plugin) error {
		owned := byPlugin[p.Name()]
		if len(owned) == 0 {
			return nil
		}
		return p.(plugins.PagesRemovedListener).PagesRemoved(ctx, owned)
	})
}
