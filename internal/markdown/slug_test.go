package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	testCases := map[string]string{
		"Hello World":        "hello-world",
		"  Héllo,  Wörld!  ": "hello-world",
		"A -- B":             "a-b",
		"snake_case name":    "snake-case-name",
		"Go 1.22":            "go-122",
		"指南":                 "指南",
		"???":                "",
	}
	for in, want := range testCases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Slugify(in))
		})
	}
}

func TestSluggerDeduplicates(t *testing.T) {
	s := newSlugger()
	s.reserve("intro")
	assert.Equal(t, "intro-1", s.unique("Intro"))
	assert.Equal(t, "intro-2", s.unique("Intro"))
	assert.Equal(t, "heading", s.unique("!!!"))
}

func TestSplitFrontmatter(t *testing.T) {
	fm, body, err := SplitFrontmatter([]byte("---\ntitle: Custom\nlang: fr\ntags:\n  - a\n---\n# Hello\n"))
	assert.NoError(t, err)
	assert.Equal(t, "Custom", fm["title"])
	assert.Equal(t, "fr", FrontmatterString(fm, "lang"))
	assert.Equal(t, []interface{}{"a"}, fm["tags"])
	assert.Contains(t, string(body), "# Hello")
	assert.NotContains(t, string(body), "title:")

	fm, body, err = SplitFrontmatter([]byte("# Plain\n"))
	assert.NoError(t, err)
	assert.Empty(t, fm)
	assert.Equal(t, "# Plain\n", string(body))

	_, _, err = SplitFrontmatter([]byte("---\ntitle: [unclosed\n---\nbody\n"))
	assert.Error(t, err)
}

func TestSplitExcerpt(t *testing.T) {
	excerpt, ok := SplitExcerpt([]byte("Intro text.\n\n<!-- more -->\n\nRest.\n"))
	assert.True(t, ok)
	assert.Equal(t, "Intro text.", string(excerpt))

	_, ok = SplitExcerpt([]byte("No marker.\n"))
	assert.False(t, ok)
}
