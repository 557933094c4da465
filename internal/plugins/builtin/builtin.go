// Package builtin provides the plugins that ship with folio.
package builtin

import (
	"fmt"
	"sort"

	folioerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/plugins"
)

// Constructor builds a plugin from its options map.
type Constructor func(options map[string]interface{}) (plugins.Plugin, error)

var registry = map[string]Constructor{
	MarkdownName:   func(map[string]interface{}) (plugins.Plugin, error) { return NewMarkdown(), nil },
	StoryName:      func(map[string]interface{}) (plugins.Plugin, error) { return NewStory(), nil },
	ComponentsName: newComponentsFromOptions,
	MetaName:       newMetaFromOptions,
	ReloadName:     newReloadFromOptions,
}

// Names lists the builtin plugin names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the builtin plugin called name.
func New(name string, options map[string]interface{}) (plugins.Plugin, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, folioerrors.NewConfigError(folioerrors.ErrCodeUnknownPlugin,
			fmt.Sprintf("unknown plugin %q (available: %v)", name, Names()))
	}
	p, err := ctor(options)
	if err != nil {
		return nil, folioerrors.NewConfigError(folioerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("plugin %q: %v", name, err))
	}
	return p, nil
}

// Load builds every named plugin in order, passing each its entry from
// options.
func Load(names []string, options map[string]map[string]interface{}) ([]plugins.Plugin, error) {
	out := make([]plugins.Plugin, 0, len(names))
	for _, name := range names {
		p, err := New(name, options[name])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
