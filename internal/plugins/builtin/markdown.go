package builtin

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/plugins"
)

// MarkdownName is the name of the markdown page plugin.
const MarkdownName = "folio:markdown"

// Markdown claims plain markdown pages and evicts their renders from the
// parser cache when they are removed.
type Markdown struct {
	mu  sync.Mutex
	app plugins.App
}

// NewMarkdown returns the markdown page plugin.
func NewMarkdown() *Markdown {
	return &Markdown{}
}

func (m *Markdown) Name() string { return MarkdownName }

func (m *Markdown) ConfigureApp(_ context.Context, app plugins.App, _ plugins.Env) error {
	m.mu.Lock()
	m.app = app
	m.mu.Unlock()
	return nil
}

func (m *Markdown) ResolvePage(_ context.Context, file page.File, _ plugins.Env) (*page.Descriptor, error) {
	if path.Ext(file.Rel) != ".md" || IsStory(file.Rel) {
		return nil, nil
	}
	return &page.Descriptor{Type: page.TypeMarkdown}, nil
}

func (m *Markdown) PagesRemoved(_ context.Context, pages []*page.Page) error {
	m.mu.Lock()
	app := m.app
	m.mu.Unlock()
	if app == nil || app.Markdown() == nil {
		return nil
	}
	for _, p := range pages {
		app.Markdown().Forget(p.FilePath)
	}
	return nil
}

// IsStory reports whether rel names a story file such as button.story.templ.
func IsStory(rel string) bool {
	base := path.Base(rel)
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.HasSuffix(base, ".story")
}
