// Package app orchestrates a folio run: it registers plugins, resolves site
// data, discovers and resolves pages, writes the client modules and either
// builds the static site or serves it in dev mode.
//
// An App moves through these states:
//
//	Created -> Configuring -> SiteDataResolving -> Initialized -> Prepared -> Serving | Building
//
// Page resolution re-runs on every source change without leaving the
// current state. Close is terminal.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/conneroisu/folio/internal/config"
	folioerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/gitinfo"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/markdown"
	"github.com/conneroisu/folio/internal/metrics"
	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/paths"
	"github.com/conneroisu/folio/internal/plugins"
	"github.com/conneroisu/folio/internal/plugins/builtin"
	"github.com/conneroisu/folio/internal/site"
)

// State is a step of the App lifecycle.
type State int

const (
	StateCreated State = iota
	StateConfiguring
	StateSiteDataResolving
	StateInitialized
	StatePrepared
	StateServing
	StateBuilding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfiguring:
		return "configuring"
	case StateSiteDataResolving:
		return "siteDataResolving"
	case StateInitialized:
		return "initialized"
	case StatePrepared:
		return "prepared"
	case StateServing:
		return "serving"
	case StateBuilding:
		return "building"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// App is a single folio run.
type App struct {
	cfg      *config.Config
	dirs     config.Dirs
	env      plugins.Env
	fs       afero.Fs
	logger   logging.Logger
	recorder metrics.Recorder
	manager  *plugins.Manager
	git      *gitinfo.Resolver
	theme    plugins.Theme
	extra    []plugins.Plugin

	mu      sync.RWMutex
	state   State
	site    site.Options
	locales *site.LocaleIndex
	parser  *markdown.Parser
	pages   []*page.Page
	routes  map[string]*page.Page

	resolving atomic.Bool
}

var _ plugins.App = (*App)(nil)

// Option configures an App.
type Option func(*App)

// WithFs replaces the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithLogger sets the logger of the App and the components it creates.
func WithLogger(l logging.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l.WithComponent("app")
		}
	}
}

// WithRecorder sets the metrics recorder shared by the App, its plugin
// manager, markdown parser and build.
func WithRecorder(r metrics.Recorder) Option {
	return func(a *App) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithTheme registers t and every theme it extends. Theme plugins come
// before configured plugins, ancestors first.
func WithTheme(t plugins.Theme) Option {
	return func(a *App) { a.theme = t }
}

// WithPlugins registers plugins after the ones named in the config.
func WithPlugins(ps ...plugins.Plugin) Option {
	return func(a *App) { a.extra = append(a.extra, ps...) }
}

// New creates an App for cmd. Plugins named in cfg are built from the
// builtin registry; an unknown name is a config error.
func New(cfg *config.Config, cmd plugins.Command, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{
		cfg:      cfg,
		dirs:     cfg.Dirs(),
		env:      plugins.NewEnv(cmd),
		fs:       afero.NewOsFs(),
		logger:   logging.NewNopLogger().WithComponent("app"),
		recorder: metrics.NoopRecorder{},
		routes:   map[string]*page.Page{},
		site:     cfg.Site.Normalize(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.manager = plugins.NewManager(a.logger, plugins.WithRecorder(a.recorder))
	themeLayouts := map[string]string{}
	for _, t := range themeChain(a.theme) {
		a.manager.Use(t.Plugins()...)
		themeLayouts = underlay(t.Layouts(), themeLayouts)
	}
	a.site.Layouts = underlay(a.site.Layouts, themeLayouts)

	named, err := builtin.Load(cfg.Plugins, cfg.PluginOptions)
	if err != nil {
		return nil, err
	}
	a.manager.Use(named...)
	a.manager.Use(a.extra...)

	a.git = gitinfo.NewResolver(a.dirs.Src, a.fs, a.logger)

	a.logger.Debug(context.Background(), "App created",
		"command", string(cmd), "mode", string(a.env.Mode), "src", a.dirs.Src, "plugins", len(a.manager.Plugins()))
	return a, nil
}

// themeChain returns t and its ancestors, root ancestor first.
func themeChain(t plugins.Theme) []plugins.Theme {
	var chain []plugins.Theme
	seen := map[string]bool{}
	for ; t != nil && !seen[t.Name()]; t = t.Extends() {
		seen[t.Name()] = true
		chain = append([]plugins.Theme{t}, chain...)
	}
	return chain
}

// underlay adds the entries of lower that top does not define.
func underlay(top, lower map[string]string) map[string]string {
	out := make(map[string]string, len(top)+len(lower))
	for k, v := range lower {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}

func (a *App) Fs() afero.Fs              { return a.fs }
func (a *App) Dirs() config.Dirs         { return a.dirs }
func (a *App) Env() plugins.Env          { return a.env }
func (a *App) Config() *config.Config    { return a.cfg }
func (a *App) Manager() *plugins.Manager { return a.manager }

// Site returns a copy of the resolved site options.
func (a *App) Site() site.Options {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.site.Clone()
}

// Pages returns the resolved pages in file order, with the synthesized
// not-found page last when there is one.
func (a *App) Pages() []*page.Page {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*page.Page, len(a.pages))
	copy(out, a.pages)
	return out
}

// Page looks a page up by route.
func (a *App) Page(route string) (*page.Page, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.routes[route]
	return p, ok
}

// Markdown returns the shared parser. It is nil until site data is
// resolved.
func (a *App) Markdown() *markdown.Parser {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.parser
}

// State reports the current lifecycle state.
func (a *App) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *App) setState(s State) {
	a.mu.Lock()
	if a.state != StateClosed {
		a.state = s
	}
	a.mu.Unlock()
}

// require fails unless the App is open and at least in state want.
func (a *App) require(want State) error {
	s := a.State()
	if s == StateClosed {
		return folioerrors.ErrClosed
	}
	if s < want {
		return folioerrors.NewStateError(folioerrors.ErrCodeInvalidState,
			fmt.Sprintf("app is %s, needs to be %s", s, want))
	}
	return nil
}

// Init configures plugins, resolves site data and resolves every page.
func (a *App) Init(ctx context.Context) error {
	if s := a.State(); s != StateCreated {
		if s == StateClosed {
			return folioerrors.ErrClosed
		}
		return folioerrors.NewStateError(folioerrors.ErrCodeInvalidState, "app is already initialized")
	}
	perf := logging.StartOperation(a.logger, "init")
	defer perf.End(ctx)

	a.manager.RegisterHooks()

	a.setState(StateConfiguring)
	err := plugins.Run(ctx, a.manager, plugins.HookConfigureApp, func(ctx context.Context, p plugins.Plugin) error {
		return p.(plugins.AppConfigurer).ConfigureApp(ctx, a, a.env)
	})
	if err != nil {
		return err
	}

	a.setState(StateSiteDataResolving)
	if err := a.resolveSiteData(ctx); err != nil {
		return err
	}

	resolved := a.Site()
	err = plugins.Run(ctx, a.manager, plugins.HookSiteDataResolved, func(ctx context.Context, p plugins.Plugin) error {
		return p.(plugins.SiteDataListener).SiteDataResolved(ctx, resolved.Clone())
	})
	if err != nil {
		return err
	}

	parser := a.Markdown()
	err = plugins.Run(ctx, a.manager, plugins.HookConfigureMarkdownParser, func(ctx context.Context, p plugins.Plugin) error {
		return p.(plugins.MarkdownConfigurer).ConfigureMarkdownParser(ctx, parser)
	})
	if err != nil {
		return err
	}

	pages, err := a.resolveAll(ctx)
	if err != nil {
		return err
	}
	a.setPages(pages)
	a.setState(StateInitialized)

	a.logger.Info(ctx, "App initialized", "pages", len(pages))
	return nil
}

// resolveSiteData folds every siteData patch over the configured options in
// registration order, then builds the locale index and markdown parser.
func (a *App) resolveSiteData(ctx context.Context) error {
	opts := a.Site()
	err := plugins.Run(ctx, a.manager, plugins.HookSiteData, func(ctx context.Context, p plugins.Plugin) error {
		patch, err := p.(plugins.SiteDataProvider).SiteData(ctx, opts.Clone(), a.env)
		if err != nil {
			return err
		}
		merged, err := site.Merge(opts, patch)
		if err != nil {
			return err
		}
		opts = merged
		return nil
	})
	if err != nil {
		return err
	}

	opts = opts.Normalize()
	if err := opts.Validate(); err != nil {
		return folioerrors.NewConfigError(folioerrors.ErrCodeInvalidBaseURL, err.Error())
	}

	mdOpts := a.cfg.Markdown
	if mdOpts.Assets.Alias == "" || mdOpts.Assets.Alias == markdown.DefaultOptions().Assets.Alias {
		mdOpts.Assets.Alias = paths.WithBase(opts.BaseURL, "/"+assetsPrefix)
	}
	if mdOpts.ImportCode.SrcDir == "" {
		mdOpts.ImportCode.SrcDir = a.dirs.Src
	}
	parser := markdown.New(mdOpts,
		markdown.WithFs(a.fs),
		markdown.WithLogger(a.logger),
		markdown.WithRecorder(a.recorder),
	)

	a.mu.Lock()
	a.site = opts
	a.locales = site.NewLocaleIndex(opts.Locales)
	a.parser = parser
	a.mu.Unlock()
	return nil
}

func (a *App) setPages(pages []*page.Page) {
	routes := make(map[string]*page.Page, len(pages))
	for _, p := range pages {
		routes[p.Route] = p
	}
	a.mu.Lock()
	a.pages = pages
	a.routes = routes
	a.mu.Unlock()
	a.recorder.SetPages(len(pages))
}

// Close runs the close hooks and makes later operations fail with
// errors.ErrClosed.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateClosed {
		a.mu.Unlock()
		return folioerrors.ErrClosed
	}
	a.state = StateClosed
	a.mu.Unlock()

	if !a.manager.Registered() {
		return nil
	}

	err := plugins.Run(context.WithoutCancel(ctx), a.manager, plugins.HookClose, func(ctx context.Context, p plugins.Plugin) error {
		return p.(plugins.Closer).Close(ctx)
	})
	a.logger.Debug(ctx, "App closed")
	return err
}
