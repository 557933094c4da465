package plugins

import (
	"context"

	"github.com/spf13/afero"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/markdown"
	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/site"
)

// HookName identifies one entry of the plugin hook surface.
type HookName string

const (
	HookConfigureApp                HookName = "configureApp"
	HookSiteData                    HookName = "siteData"
	HookSiteDataResolved            HookName = "siteDataResolved"
	HookConfigureMarkdownParser     HookName = "configureMarkdownParser"
	HookResolvePage                 HookName = "resolvePage"
	HookPagesRemoved                HookName = "pagesRemoved"
	HookClientAppEnhanceFiles       HookName = "clientAppEnhanceFiles"
	HookClientAppSetupFiles         HookName = "clientAppSetupFiles"
	HookClientAppRootComponentFiles HookName = "clientAppRootComponentFiles"
	HookClose                       HookName = "close"
)

// AllHooks lists every hook in the order the App first reaches it.
var AllHooks = []HookName{
	HookConfigureApp,
	HookSiteData,
	HookSiteDataResolved,
	HookConfigureMarkdownParser,
	HookResolvePage,
	HookPagesRemoved,
	HookClientAppEnhanceFiles,
	HookClientAppSetupFiles,
	HookClientAppRootComponentFiles,
	HookClose,
}

// Command is the CLI entry point that created the App.
type Command string

const (
	CommandDev   Command = "dev"
	CommandBuild Command = "build"
	CommandServe Command = "serve"
)

// Mode selects development or production behavior.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Env describes how the App is being run.
type Env struct {
	Command Command `json:"command"`
	Mode    Mode    `json:"mode"`
	IsDev   bool    `json:"isDev"`
}

// NewEnv returns the Env for a command. dev runs in development mode, every
// other command in production mode.
func NewEnv(cmd Command) Env {
	if cmd == CommandDev {
		return Env{Command: cmd, Mode: ModeDevelopment, IsDev: true}
	}
	return Env{Command: cmd, Mode: ModeProduction}
}

// IsProduction reports whether output should be optimized.
func (e Env) IsProduction() bool {
	return e.Mode == ModeProduction
}

// App is the view of the running App that hooks receive.
type App interface {
	Fs() afero.Fs
	Dirs() config.Dirs
	Site() site.Options
	Env() Env
	Pages() []*page.Page
	Markdown() *markdown.Parser
}

// Plugin is anything with a unique name. What a plugin can do is decided by
// which of the hook interfaces below it also implements.
type Plugin interface {
	Name() string
}

// AppConfigurer runs first, before site data is resolved.
type AppConfigurer interface {
	Plugin
	ConfigureApp(ctx context.Context, app App, env Env) error
}

// SiteDataProvider returns a patch merged over the accumulated site options.
// A nil patch leaves them unchanged.
type SiteDataProvider interface {
	Plugin
	SiteData(ctx context.Context, opts site.Options, env Env) (*site.Options, error)
}

// SiteDataListener is told the final site options.
type SiteDataListener interface {
	Plugin
	SiteDataResolved(ctx context.Context, opts site.Options) error
}

// MarkdownConfigurer may add extensions to the shared markdown parser.
type MarkdownConfigurer interface {
	Plugin
	ConfigureMarkdownParser(ctx context.Context, p *markdown.Parser) error
}

// PageResolver claims a discovered file. Returning a nil descriptor means the
// file belongs to somebody else.
type PageResolver interface {
	Plugin
	ResolvePage(ctx context.Context, file page.File, env Env) (*page.Descriptor, error)
}

// PagesRemovedListener is told which of its pages disappeared.
type PagesRemovedListener interface {
	Plugin
	PagesRemoved(ctx context.Context, pages []*page.Page) error
}

// ClientEnhancer contributes client enhance modules.
type ClientEnhancer interface {
	Plugin
	ClientAppEnhanceFiles(ctx context.Context, app App) ([]string, error)
}

// ClientSetup contributes client setup modules.
type ClientSetup interface {
	Plugin
	ClientAppSetupFiles(ctx context.Context, app App) ([]string, error)
}

// ClientRootComponents contributes components mounted at the client root.
type ClientRootComponents interface {
	Plugin
	ClientAppRootComponentFiles(ctx context.Context, app App) ([]string, error)
}

// Closer releases plugin resources when the App closes.
type Closer interface {
	Plugin
	Close(ctx context.Context) error
}

// Hooks reports which hooks p implements, in AllHooks order.
func Hooks(p Plugin) []HookName {
	var hooks []HookName
	for _, h := range AllHooks {
		if implements(p, h) {
			hooks = append(hooks, h)
		}
	}
	return hooks
}

func implements(p Plugin, h HookName) bool {
	var ok bool
	switch h {
	case HookConfigureApp:
		_, ok = p.(AppConfigurer)
	case HookSiteData:
		_, ok = p.(SiteDataProvider)
	case HookSiteDataResolved:
		_, ok = p.(SiteDataListener)
	case HookConfigureMarkdownParser:
		_, ok = p.(MarkdownConfigurer)
	case HookResolvePage:
		_, ok = p.(PageResolver)
	case HookPagesRemoved:
		_, ok = p.(PagesRemovedListener)
	case HookClientAppEnhanceFiles:
		_, ok = p.(ClientEnhancer)
	case HookClientAppSetupFiles:
		_, ok = p.(ClientSetup)
	case HookClientAppRootComponentFiles:
		_, ok = p.(ClientRootComponents)
	case HookClose:
		_, ok = p.(Closer)
	}
	return ok
}

// Theme bundles plugins and layouts. Extends names the parent theme, whose
// plugins are registered before this theme's.
type Theme interface {
	Name() string
	Extends() Theme
	Plugins() []Plugin
	Layouts() map[string]string
}
