package builtin

import (
	"context"

	"github.com/spf13/cast"

	"github.com/conneroisu/folio/internal/plugins"
	"github.com/conneroisu/folio/internal/site"
)

// MetaName is the name of the head meta plugin.
const MetaName = "folio:meta"

// Meta contributes default <meta> tags. Tags already present in the site
// head are left alone.
type Meta struct {
	generator string
	viewport  string
}

// NewMeta returns the meta plugin.
func NewMeta() *Meta {
	return &Meta{
		generator: "folio",
		viewport:  "width=device-width,initial-scale=1",
	}
}

func newMetaFromOptions(options map[string]interface{}) (plugins.Plugin, error) {
	m := NewMeta()
	if v, ok := options["generator"]; ok {
		m.generator = cast.ToString(v)
	}
	if v, ok := options["viewport"]; ok {
		m.viewport = cast.ToString(v)
	}
	return m, nil
}

func (m *Meta) Name() string { return MetaName }

func (m *Meta) SiteData(_ context.Context, opts site.Options, _ plugins.Env) (*site.Options, error) {
	defaults := []site.HeadTag{
		{Tag: "meta", Attrs: map[string]string{"charset": "utf-8"}},
	}
	if m.viewport != "" {
		defaults = append(defaults, site.HeadTag{Tag: "meta", Attrs: map[string]string{"name": "viewport", "content": m.viewport}})
	}
	if m.generator != "" {
		defaults = append(defaults, site.HeadTag{Tag: "meta", Attrs: map[string]string{"name": "generator", "content": m.generator}})
	}

	var missing []site.HeadTag
	for _, tag := range defaults {
		if !hasMeta(opts.Head, tag) {
			missing = append(missing, tag)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	head := make([]site.HeadTag, 0, len(missing)+len(opts.Head))
	head = append(head, missing...)
	head = append(head, opts.Head...)
	return &site.Options{Head: head}, nil
}

func hasMeta(head []site.HeadTag, want site.HeadTag) bool {
	for _, tag := range head {
		if tag.Tag != "meta" {
			continue
		}
		if _, ok := want.Attrs["charset"]; ok {
			if _, has := tag.Attrs["charset"]; has {
				return true
			}
			continue
		}
		if tag.Attrs["name"] == want.Attrs["name"] {
			return true
		}
	}
	return false
}
