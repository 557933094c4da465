// Package config loads folio's configuration using Viper, from a YAML file,
// FOLIO_ environment variables and command-line flags.
//
// Directory settings are relative to Root unless absolute. Dirs resolves
// them into the absolute paths the rest of folio works with.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/folio/internal/markdown"
	"github.com/conneroisu/folio/internal/site"
	"github.com/spf13/viper"
)

// Config is the effective configuration of one folio run.
type Config struct {
	Root      string `mapstructure:"root" yaml:"root"`
	SrcDir    string `mapstructure:"srcDir" yaml:"srcDir"`
	OutDir    string `mapstructure:"outDir" yaml:"outDir"`
	CacheDir  string `mapstructure:"cacheDir" yaml:"cacheDir"`
	TmpDir    string `mapstructure:"tmpDir" yaml:"tmpDir"`
	PublicDir string `mapstructure:"publicDir" yaml:"publicDir"`
	ConfigDir string `mapstructure:"configDir" yaml:"configDir"`

	Include []string `mapstructure:"include" yaml:"include"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`

	// Plugins lists builtin plugin names in registration order.
	Plugins       []string                          `mapstructure:"plugins" yaml:"plugins"`
	PluginOptions map[string]map[string]interface{} `mapstructure:"pluginOptions" yaml:"pluginOptions,omitempty"`

	Site     site.Options     `mapstructure:"site" yaml:"site"`
	Markdown markdown.Options `mapstructure:"markdown" yaml:"markdown"`
	Server   ServerConfig     `mapstructure:"server" yaml:"server"`

	// Hostname, e.g. https://example.com, enables sitemap.xml in builds.
	Hostname string `mapstructure:"hostname" yaml:"hostname,omitempty"`

	Debug    bool   `mapstructure:"debug" yaml:"debug"`
	LogLevel string `mapstructure:"logLevel" yaml:"logLevel"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	Open bool   `mapstructure:"open" yaml:"open"`
}

// DefaultPlugins are registered when the config names none.
var DefaultPlugins = []string{"folio:meta", "folio:markdown", "folio:story", "folio:components", "folio:reload"}

// Default include and exclude globs, relative to the source directory.
var (
	DefaultInclude = []string{"**/*.md", "**/*.story.*"}
	DefaultExclude = []string{"node_modules/**", ".folio/**", ".git/**"}
)

// Default returns the configuration used when no file, env or flag sets
// anything.
func Default() *Config {
	return &Config{
		Root:      ".",
		SrcDir:    ".",
		ConfigDir: ".folio",
		CacheDir:  ".folio/.cache",
		TmpDir:    ".folio/.temp",
		OutDir:    ".folio/dist",
		PublicDir: ".folio/public",
		Include:   append([]string(nil), DefaultInclude...),
		Exclude:   append([]string(nil), DefaultExclude...),
		Plugins:   append([]string(nil), DefaultPlugins...),
		Site:      site.Defaults().Normalize(),
		Markdown:  markdown.DefaultOptions(),
		Server:    ServerConfig{Host: "localhost", Port: 5173},
		LogLevel:  "info",
	}
}

// SetDefaults registers folio's defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("srcDir", ".")
	v.SetDefault("configDir", ".folio")
	v.SetDefault("cacheDir", ".folio/.cache")
	v.SetDefault("tmpDir", ".folio/.temp")
	v.SetDefault("outDir", ".folio/dist")
	v.SetDefault("publicDir", ".folio/public")
	v.SetDefault("include", DefaultInclude)
	v.SetDefault("exclude", DefaultExclude)
	v.SetDefault("plugins", DefaultPlugins)

	d := site.Defaults()
	v.SetDefault("site.baseUrl", d.BaseURL)
	v.SetDefault("site.lang", d.Lang)
	v.SetDefault("site.title", d.Title)

	md := markdown.DefaultOptions()
	v.SetDefault("markdown.code.lineNumbers", md.Code.LineNumbers)
	v.SetDefault("markdown.code.style", md.Code.Style)
	v.SetDefault("markdown.cacheSize", md.CacheSize)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 5173)
	v.SetDefault("logLevel", "info")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// Viper reports string slices set through env or flags as one string.
	for _, key := range []string{"include", "exclude", "plugins"} {
		if raw, ok := v.Get(key).(string); ok {
			set := splitList(raw)
			switch key {
			case "include":
				cfg.Include = set
			case "exclude":
				cfg.Exclude = set
			case "plugins":
				cfg.Plugins = set
			}
		}
	}

	cfg.Site = cfg.Site.Normalize()
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Dirs are the absolute directories of a run.
type Dirs struct {
	Root   string
	Src    string
	Out    string
	Cache  string
	Temp   string
	Public string
	Config string
}

// Dirs resolves the configured directories against Root.
func (c *Config) Dirs() Dirs {
	root := c.Root
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	resolve := func(p, def string) string {
		if p == "" {
			p = def
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(root, p)
	}
	return Dirs{
		Root:   root,
		Src:    resolve(c.SrcDir, "."),
		Out:    resolve(c.OutDir, ".folio/dist"),
		Cache:  resolve(c.CacheDir, ".folio/.cache"),
		Temp:   resolve(c.TmpDir, ".folio/.temp"),
		Public: resolve(c.PublicDir, ".folio/public"),
		Config: resolve(c.ConfigDir, ".folio"),
	}
}

// SrcPath joins elem onto the source directory.
func (d Dirs) SrcPath(elem ...string) string {
	return filepath.Join(append([]string{d.Src}, elem...)...)
}

// OutPath joins elem onto the output directory.
func (d Dirs) OutPath(elem ...string) string {
	return filepath.Join(append([]string{d.Out}, elem...)...)
}

// TempPath joins elem onto the temp directory.
func (d Dirs) TempPath(elem ...string) string {
	return filepath.Join(append([]string{d.Temp}, elem...)...)
}

// Addr is the listen address of the dev and preview servers.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
