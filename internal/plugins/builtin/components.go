package builtin

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/plugins"
)

// ComponentsName is the name of the component page plugin.
const ComponentsName = "folio:components"

// Components claims component files by extension.
type Components struct {
	types map[string]page.Type
}

// DefaultComponentTypes maps extensions to page types.
var DefaultComponentTypes = map[string]page.Type{
	".templ": "templ",
	".html":  "html",
}

// NewComponents returns the component plugin for the given extension map.
// A nil map selects DefaultComponentTypes.
func NewComponents(types map[string]page.Type) *Components {
	if types == nil {
		types = DefaultComponentTypes
	}
	normalized := make(map[string]page.Type, len(types))
	for ext, t := range types {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[strings.ToLower(ext)] = t
	}
	return &Components{types: normalized}
}

func newComponentsFromOptions(options map[string]interface{}) (plugins.Plugin, error) {
	raw, ok := options["extensions"]
	if !ok {
		return NewComponents(nil), nil
	}
	exts, err := cast.ToStringMapStringE(raw)
	if err != nil {
		return nil, fmt.Errorf("extensions: %w", err)
	}
	types := make(map[string]page.Type, len(exts))
	for ext, t := range exts {
		if t == "" {
			return nil, fmt.Errorf("extension %q has no page type", ext)
		}
		types[ext] = page.Type(t)
	}
	return NewComponents(types), nil
}

func (c *Components) Name() string { return ComponentsName }

// Extensions lists the claimed extensions in sorted order.
func (c *Components) Extensions() []string {
	out := make([]string, 0, len(c.types))
	for ext := range c.types {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (c *Components) ResolvePage(_ context.Context, file page.File, _ plugins.Env) (*page.Descriptor, error) {
	t, ok := c.types[strings.ToLower(path.Ext(file.Rel))]
	if !ok {
		return nil, nil
	}
	return &page.Descriptor{Type: t}, nil
}
