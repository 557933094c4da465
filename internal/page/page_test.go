package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNestHeaders(t *testing.T) {
	flat := []Header{
		{Level: 2, Title: "Install", Slug: "install"},
		{Level: 3, Title: "npm", Slug: "npm"},
		{Level: 3, Title: "pnpm", Slug: "pnpm"},
		{Level: 2, Title: "Usage", Slug: "usage"},
		{Level: 4, Title: "Deep", Slug: "deep"},
		{Level: 3, Title: "CLI", Slug: "cli"},
	}

	tree := NestHeaders(flat)

	require.Len(t, tree, 2)
	assert.Equal(t, "install", tree[0].Slug)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "npm", tree[0].Children[0].Slug)
	assert.Equal(t, "pnpm", tree[0].Children[1].Slug)

	assert.Equal(t, "usage", tree[1].Slug)
	require.Len(t, tree[1].Children, 2)
	assert.Equal(t, "deep", tree[1].Children[0].Slug)
	assert.Equal(t, "cli", tree[1].Children[1].Slug)
}

func TestNestHeadersEmpty(t *testing.T) {
	assert.Empty(t, NestHeaders(nil))
}

func TestPageTitle(t *testing.T) {
	p := &Page{Name: "Button"}
	assert.Equal(t, "Button", p.Title())

	p.Markdown = &MarkdownData{Title: "Buttons"}
	assert.Equal(t, "Buttons", p.Title())

	p = &Page{Context: map[string]interface{}{"title": "From context"}}
	assert.Equal(t, "From context", p.Title())
}

func TestNotFound(t *testing.T) {
	p := NewNotFound("en-US")
	assert.True(t, p.IsSynthetic())
	assert.Equal(t, NotFoundRoute, p.Route)
	assert.True(t, IsNotFoundRoute(p.Route))
	assert.True(t, IsNotFoundRoute("/not-found.html"))
	assert.False(t, IsNotFoundRoute("/404/"))
}
