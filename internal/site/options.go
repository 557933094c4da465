// Package site holds the site-wide options shared by every page and the
// merge rules plugins use to contribute to them.
package site

import (
	"fmt"
	"sort"
	"strings"

	"dario.cat/mergo"
	radix "github.com/armon/go-radix"

	"github.com/conneroisu/folio/internal/paths"
)

// HeadTag is a single element injected into the document <head>.
type HeadTag struct {
	Tag     string            `mapstructure:"tag" json:"tag" yaml:"tag"`
	Attrs   map[string]string `mapstructure:"attrs" json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Content string            `mapstructure:"content" json:"content,omitempty" yaml:"content,omitempty"`
}

// Locale configures a locale-path prefix such as "/zh/".
type Locale struct {
	Lang        string `mapstructure:"lang" json:"lang" yaml:"lang"`
	Title       string `mapstructure:"title" json:"title,omitempty" yaml:"title,omitempty"`
	Description string `mapstructure:"description" json:"description,omitempty" yaml:"description,omitempty"`
}

// Options is the site-wide configuration exposed to plugins and written to
// the site-data virtual module.
type Options struct {
	BaseURL     string                 `mapstructure:"baseUrl" json:"baseUrl" yaml:"baseUrl"`
	Lang        string                 `mapstructure:"lang" json:"lang" yaml:"lang"`
	Title       string                 `mapstructure:"title" json:"title" yaml:"title"`
	Description string                 `mapstructure:"description" json:"description" yaml:"description"`
	Head        []HeadTag              `mapstructure:"head" json:"head" yaml:"head"`
	Locales     map[string]Locale      `mapstructure:"locales" json:"locales" yaml:"locales"`
	Theme       map[string]interface{} `mapstructure:"theme" json:"theme" yaml:"theme"`
	Layouts     map[string]string      `mapstructure:"layouts" json:"-" yaml:"layouts"`
}

// Defaults returns the compiled-in defaults.
func Defaults() Options {
	return Options{
		BaseURL:     "/",
		Lang:        "en-US",
		Title:       "Folio",
		Description: "",
		Head:        []HeadTag{},
		Locales:     map[string]Locale{},
		Theme:       map[string]interface{}{},
		Layouts:     map[string]string{},
	}
}

// Clone returns a deep copy so that callers can never alias each other's
// maps or slices.
func (o Options) Clone() Options {
	out := o

	out.Head = make([]HeadTag, 0, len(o.Head))
	for _, tag := range o.Head {
		attrs := make(map[string]string, len(tag.Attrs))
		for k, v := range tag.Attrs {
			attrs[k] = v
		}
		tag.Attrs = attrs
		out.Head = append(out.Head, tag)
	}

	out.Locales = make(map[string]Locale, len(o.Locales))
	for k, v := range o.Locales {
		out.Locales[k] = v
	}

	out.Theme = cloneMap(o.Theme)

	out.Layouts = make(map[string]string, len(o.Layouts))
	for k, v := range o.Layouts {
		out.Layouts[k] = v
	}

	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// Merge returns a new Options with patch applied on top of base. Non-zero
// fields in patch win; maps are merged key by key; slices are replaced.
// Neither argument is modified.
func Merge(base Options, patch *Options) (Options, error) {
	merged := base.Clone()
	if patch == nil {
		return merged, nil
	}

	src := patch.Clone()
	if err := mergo.Merge(&merged, src, mergo.WithOverride); err != nil {
		return base, fmt.Errorf("merge site options: %w", err)
	}

	return merged.Normalize(), nil
}

// Normalize enforces the invariants of Options: the base URL always starts
// and ends with "/", locale keys are normalized the same way, and nil maps
// are replaced with empty ones.
func (o Options) Normalize() Options {
	o.BaseURL = paths.NormalizeBase(o.BaseURL)

	locales := make(map[string]Locale, len(o.Locales))
	for prefix, locale := range o.Locales {
		locales[paths.NormalizeBase(prefix)] = locale
	}
	o.Locales = locales

	if o.Head == nil {
		o.Head = []HeadTag{}
	}
	if o.Theme == nil {
		o.Theme = map[string]interface{}{}
	}
	if o.Layouts == nil {
		o.Layouts = map[string]string{}
	}

	return o
}

// Validate checks Options for values that cannot be served.
func (o Options) Validate() error {
	if strings.ContainsAny(o.BaseURL, "?#") {
		return fmt.Errorf("baseUrl %q must not contain a query or fragment", o.BaseURL)
	}
	for prefix, locale := range o.Locales {
		if locale.Lang == "" {
			return fmt.Errorf("locale %q has no lang", prefix)
		}
	}
	return nil
}

// LocaleIndex resolves the locale of a route by longest locale-path prefix.
type LocaleIndex struct {
	tree *radix.Tree
}

// NewLocaleIndex builds an index over the configured locales.
func NewLocaleIndex(locales map[string]Locale) *LocaleIndex {
	tree := radix.New()
	for prefix, locale := range locales {
		tree.Insert(paths.NormalizeBase(prefix), locale)
	}
	return &LocaleIndex{tree: tree}
}

// Lookup returns the locale prefix and locale matching route, if any.
func (idx *LocaleIndex) Lookup(route string) (string, Locale, bool) {
	prefix, value, ok := idx.tree.LongestPrefix(paths.DecodeRoute(route))
	if !ok {
		return "", Locale{}, false
	}
	return prefix, value.(Locale), true
}

// Prefixes lists the configured locale prefixes in sorted order.
func (idx *LocaleIndex) Prefixes() []string {
	var out []string
	idx.tree.Walk(func(s string, _ interface{}) bool {
		out = append(out, s)
		return false
	})
	sort.Strings(out)
	return out
}
