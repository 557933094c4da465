package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher(t *testing.T) {
	m, err := NewMatcher(
		[]string{"**/*.md", "**/*.story.*"},
		[]string{"node_modules/**", ".folio/**"},
	)
	require.NoError(t, err)

	testCases := map[string]bool{
		"index.md":                 true,
		"guide/intro.md":           true,
		"a/b/c/deep.md":            true,
		"button.story.templ":       true,
		"components/x.story.html":  true,
		"main.go":                  false,
		"node_modules/pkg/READ.md": false,
		".folio/tmp/pages.md":      false,
		"./guide/dot-prefixed.md":  true,
	}
	for rel, want := range testCases {
		assert.Equal(t, want, m.Match(rel), rel)
	}
}

func TestMatcherInvalidPattern(t *testing.T) {
	_, err := NewMatcher([]string{"[unterminated"}, nil)
	assert.Error(t, err)
}
