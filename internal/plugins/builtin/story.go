package builtin

import (
	"context"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/folio/internal/page"
	"github.com/conneroisu/folio/internal/plugins"
)

// StoryName is the name of the story plugin.
const StoryName = "folio:story"

// Story claims *.story.* files.
type Story struct {
	title cases.Caser
}

// NewStory returns the story plugin.
func NewStory() *Story {
	return &Story{title: cases.Title(language.English)}
}

func (s *Story) Name() string { return StoryName }

func (s *Story) ResolvePage(_ context.Context, file page.File, _ plugins.Env) (*page.Descriptor, error) {
	if !IsStory(file.Rel) {
		return nil, nil
	}
	return &page.Descriptor{
		Type: page.TypeStory,
		Name: s.displayName(file.Rel),
		Context: map[string]interface{}{
			"source": path.Ext(file.Rel)[1:],
		},
	}, nil
}

// displayName turns "forms/date-picker.story.templ" into "Date Picker".
func (s *Story) displayName(rel string) string {
	base := path.Base(rel)
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.TrimSuffix(base, ".story")
	base = strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(base)
	return s.title.String(strings.Join(strings.Fields(base), " "))
}
