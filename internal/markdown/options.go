package markdown

// Options configures the parser. Every step of the chain is on unless its
// Disable field is set.
type Options struct {
	Emoji      EmojiOptions      `mapstructure:"emoji" json:"emoji" yaml:"emoji"`
	Anchor     AnchorOptions     `mapstructure:"anchor" json:"anchor" yaml:"anchor"`
	TOC        TOCOptions        `mapstructure:"toc" json:"toc" yaml:"toc"`
	Headers    HeadersOptions    `mapstructure:"headers" json:"headers" yaml:"headers"`
	Title      TitleOptions      `mapstructure:"title" json:"title" yaml:"title"`
	Components ComponentOptions  `mapstructure:"components" json:"components" yaml:"components"`
	Assets     AssetsOptions     `mapstructure:"assets" json:"assets" yaml:"assets"`
	Hoist      HoistOptions      `mapstructure:"hoist" json:"hoist" yaml:"hoist"`
	Links      LinksOptions      `mapstructure:"links" json:"links" yaml:"links"`
	Code       CodeOptions       `mapstructure:"code" json:"code" yaml:"code"`
	ImportCode ImportCodeOptions `mapstructure:"importCode" json:"importCode" yaml:"importCode"`

	// CacheSize bounds the render cache. Negative disables caching.
	CacheSize int `mapstructure:"cacheSize" json:"cacheSize" yaml:"cacheSize"`
}

type EmojiOptions struct {
	Disable bool `mapstructure:"disable" json:"disable" yaml:"disable"`
}

type AnchorOptions struct {
	Disable bool   `mapstructure:"disable" json:"disable" yaml:"disable"`
	Levels  []int  `mapstructure:"levels" json:"levels" yaml:"levels"`
	Symbol  string `mapstructure:"symbol" json:"symbol" yaml:"symbol"`
	Class   string `mapstructure:"class" json:"class" yaml:"class"`
	// NoPermalink sets heading ids without adding the anchor link.
	NoPermalink bool `mapstructure:"noPermalink" json:"noPermalink" yaml:"noPermalink"`
}

type TOCOptions struct {
	Disable        bool   `mapstructure:"disable" json:"disable" yaml:"disable"`
	Pattern        string `mapstructure:"pattern" json:"pattern" yaml:"pattern"`
	Levels         []int  `mapstructure:"levels" json:"levels" yaml:"levels"`
	ContainerClass string `mapstructure:"containerClass" json:"containerClass" yaml:"containerClass"`
}

type HeadersOptions struct {
	Disable bool  `mapstructure:"disable" json:"disable" yaml:"disable"`
	Levels  []int `mapstructure:"levels" json:"levels" yaml:"levels"`
}

type TitleOptions struct {
	Disable bool `mapstructure:"disable" json:"disable" yaml:"disable"`
}

type ComponentOptions struct {
	Disable bool `mapstructure:"disable" json:"disable" yaml:"disable"`
}

type AssetsOptions struct {
	Disable bool `mapstructure:"disable" json:"disable" yaml:"disable"`
	// Alias prefixes rewritten relative asset URLs.
	Alias string `mapstructure:"alias" json:"alias" yaml:"alias"`
}

type HoistOptions struct {
	Disable bool     `mapstructure:"disable" json:"disable" yaml:"disable"`
	Tags    []string `mapstructure:"tags" json:"tags" yaml:"tags"`
}

type LinksOptions struct {
	Disable       bool              `mapstructure:"disable" json:"disable" yaml:"disable"`
	ExternalAttrs map[string]string `mapstructure:"externalAttrs" json:"externalAttrs" yaml:"externalAttrs"`
}

type CodeOptions struct {
	Disable     bool   `mapstructure:"disable" json:"disable" yaml:"disable"`
	Style       string `mapstructure:"style" json:"style" yaml:"style"`
	LineNumbers bool   `mapstructure:"lineNumbers" json:"lineNumbers" yaml:"lineNumbers"`
}

type ImportCodeOptions struct {
	Disable bool `mapstructure:"disable" json:"disable" yaml:"disable"`
	// SrcDir is what an "@/" import path prefix resolves to.
	SrcDir string `mapstructure:"srcDir" json:"srcDir" yaml:"srcDir"`
}

const (
	defaultCacheSize = 256
	defaultTOC       = `^\[\[toc\]\]$`
)

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Anchor: AnchorOptions{
			Levels: []int{1, 2, 3, 4, 5, 6},
			Symbol: "#",
			Class:  "header-anchor",
		},
		TOC: TOCOptions{
			Pattern:        defaultTOC,
			Levels:         []int{2, 3},
			ContainerClass: "table-of-contents",
		},
		Headers: HeadersOptions{Levels: []int{2, 3}},
		Assets:  AssetsOptions{Alias: "@source"},
		Hoist:   HoistOptions{Tags: []string{"script", "style"}},
		Links: LinksOptions{ExternalAttrs: map[string]string{
			"target": "_blank",
			"rel":    "noopener noreferrer",
		}},
		Code:      CodeOptions{Style: "github", LineNumbers: true},
		CacheSize: defaultCacheSize,
	}
}

// withDefaults fills fields left empty by configuration.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.Anchor.Levels) == 0 {
		o.Anchor.Levels = d.Anchor.Levels
	}
	if o.Anchor.Symbol == "" {
		o.Anchor.Symbol = d.Anchor.Symbol
	}
	if o.Anchor.Class == "" {
		o.Anchor.Class = d.Anchor.Class
	}
	if o.TOC.Pattern == "" {
		o.TOC.Pattern = d.TOC.Pattern
	}
	if len(o.TOC.Levels) == 0 {
		o.TOC.Levels = d.TOC.Levels
	}
	if o.TOC.ContainerClass == "" {
		o.TOC.ContainerClass = d.TOC.ContainerClass
	}
	if len(o.Headers.Levels) == 0 {
		o.Headers.Levels = d.Headers.Levels
	}
	if o.Assets.Alias == "" {
		o.Assets.Alias = d.Assets.Alias
	}
	if len(o.Hoist.Tags) == 0 {
		o.Hoist.Tags = d.Hoist.Tags
	}
	if o.Links.ExternalAttrs == nil {
		o.Links.ExternalAttrs = d.Links.ExternalAttrs
	}
	if o.Code.Style == "" {
		o.Code.Style = d.Code.Style
	}
	if o.CacheSize == 0 {
		o.CacheSize = d.CacheSize
	}
	return o
}

func containsLevel(levels []int, level int) bool {
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}
