package app

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/conneroisu/folio/internal/paths"
	"github.com/conneroisu/folio/internal/plugins/builtin"
	"github.com/conneroisu/folio/internal/server"
	"github.com/conneroisu/folio/internal/watcher"
	"github.com/conneroisu/folio/internal/websocket"
)

// DevOptions configures the dev server.
type DevOptions struct {
	Addr string
	Open bool
	// Metrics is served at server.MetricsPath when set.
	Metrics http.Handler
	// Debounce delays re-resolution after the last file event. Zero means
	// 100ms.
	Debounce time.Duration
}

// Dev serves the site until ctx is canceled. Pages are rendered on request;
// source changes re-resolve pages and tell connected browsers to reload, or
// show the error when resolution failed.
func (a *App) Dev(ctx context.Context, opts DevOptions) error {
	if a.State() == StateCreated {
		if err := a.Init(ctx); err != nil {
			return err
		}
	}
	if err := a.Prepare(ctx); err != nil {
		return err
	}
	a.setState(StateServing)

	hub := websocket.NewHub(a.logger)
	srv := a.DevServer(opts, hub)

	if opts.Debounce <= 0 {
		opts.Debounce = 100 * time.Millisecond
	}
	fw, err := watcher.NewFileWatcher(a.dirs.Src, opts.Debounce, a.logger)
	if err != nil {
		return err
	}
	matches, err := watcher.GlobFilter(a.cfg.Include, a.cfg.Exclude)
	if err != nil {
		return err
	}
	fw.AddFilter(func(rel string) bool {
		return matches(rel) || a.isDependency(a.dirs.SrcPath(filepath.FromSlash(rel)))
	})
	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		a.onChange(ctx, hub, events)
		return nil
	})
	if err := fw.AddRecursive(a.dirs.Src); err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}
	defer fw.Stop()

	return srv.ListenAndServe(ctx)
}

// DevServer returns the HTTP server used by Dev: rendered pages, the public
// directory, source assets under _assets/ and client modules under _folio/.
func (a *App) DevServer(opts DevOptions, hub *websocket.Hub) *server.Server {
	endpoint := builtin.DefaultReloadEndpoint
	if p, ok := a.manager.Plugin(builtin.ReloadName); ok {
		if r, ok := p.(*builtin.Reload); ok {
			endpoint = r.Endpoint()
		}
	}
	return server.New(server.Options{
		Addr:    opts.Addr,
		BaseURL: a.Site().BaseURL,
		Fs:      a.fs,
		Pages:   a,
		Static:  a.dirs.Public,
		Mounts: []server.Mount{
			{Prefix: "/" + assetsPrefix + "/", Dir: a.dirs.Src},
			{Prefix: "/" + clientPrefix + "/", Dir: a.dirs.Temp},
		},
		Hub:     hub,
		HubPath: endpoint,
		Metrics: opts.Metrics,
		Open:    opts.Open,
		Logger:  a.logger,
	})
}

func (a *App) onChange(ctx context.Context, hub *websocket.Hub, events []watcher.ChangeEvent) {
	changed := make([]string, 0, len(events))
	for _, e := range events {
		changed = append(changed, e.Path)
	}
	res, err := a.HandleChanges(ctx, changed)
	if err != nil {
		a.logger.Error(ctx, err, "Failed to update pages")
		hub.Error(err)
		return
	}
	if res.Skipped {
		return
	}
	hub.Reload(res.Routes()...)
}

// isDependency reports whether some page imports file.
func (a *App) isDependency(file string) bool {
	file = filepath.Clean(file)
	for _, p := range a.Pages() {
		if p.Markdown == nil {
			continue
		}
		for _, imported := range p.Markdown.ImportedFiles {
			if filepath.Clean(imported) == file {
				return true
			}
		}
	}
	return false
}

// ServeOptions configures Serve.
type ServeOptions struct {
	Addr string
	Open bool
	// Dir overrides the output directory.
	Dir string
}

// Serve previews a finished build.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	if err := a.require(StateCreated); err != nil {
		return err
	}
	dir := a.dirs.Out
	if opts.Dir != "" {
		dir = paths.Resolve(a.dirs.Root, opts.Dir)
	}
	a.setState(StateServing)
	srv := server.New(server.Options{
		Addr:    opts.Addr,
		BaseURL: a.Site().BaseURL,
		Fs:      a.fs,
		Static:  dir,
		Open:    opts.Open,
		Logger:  a.logger,
	})
	return srv.ListenAndServe(ctx)
}
