// Package page defines the records produced by page resolution.
package page

import (
	"time"
)

// Type discriminates the payload carried by a Page.
type Type string

const (
	TypeMarkdown Type = "md"
	TypeStory    Type = "story"
	TypeNotFound Type = "404"
)

// NotFoundRoute is the route of the synthesized not-found page.
const NotFoundRoute = "/404.html"

// File is a discovered source file handed to resolvePage hooks.
type File struct {
	// Path is the absolute system path.
	Path string
	// Rel is Path relative to the source directory, with forward slashes.
	Rel string
}

// Descriptor is what a plugin returns when it claims a file. Route and Name
// are optional; the App derives them when empty.
type Descriptor struct {
	Type    Type
	Route   string
	Name    string
	Context map[string]interface{}
}

// Header is one heading of a markdown page, nested by level.
type Header struct {
	Level    int      `json:"level"`
	Title    string   `json:"title"`
	Slug     string   `json:"slug"`
	Children []Header `json:"children,omitempty"`
}

// MarkdownData is the payload of pages of TypeMarkdown.
type MarkdownData struct {
	Title         string                 `json:"title"`
	Excerpt       string                 `json:"excerpt"`
	Headers       []Header               `json:"headers"`
	Frontmatter   map[string]interface{} `json:"frontmatter"`
	LastUpdated   time.Time              `json:"lastUpdated"`
	Links         []string               `json:"-"`
	HoistedTags   []string               `json:"-"`
	ImportedFiles []string               `json:"-"`
	Assets        []string               `json:"-"`
	HTML          string                 `json:"-"`
}

// Page is a resolved, routable page.
type Page struct {
	// ID is the owning identity of the page: the absolute file path, or a
	// fixed id for synthesized pages.
	ID       string                 `json:"id"`
	FilePath string                 `json:"filePath"`
	RelPath  string                 `json:"relPath"`
	Route    string                 `json:"route"`
	Name     string                 `json:"name,omitempty"`
	Type     Type                   `json:"type"`
	Lang     string                 `json:"lang"`
	Layout   string                 `json:"layout,omitempty"`
	Plugin   string                 `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
	Markdown *MarkdownData          `json:"markdown,omitempty"`
}

// Title returns the best display title for the page.
func (p *Page) Title() string {
	if p.Markdown != nil && p.Markdown.Title != "" {
		return p.Markdown.Title
	}
	if p.Name != "" {
		return p.Name
	}
	if title, ok := p.Context["title"].(string); ok {
		return title
	}
	return ""
}

// IsSynthetic reports whether the page has no source file.
func (p *Page) IsSynthetic() bool {
	return p.FilePath == ""
}

// NewNotFound returns the synthesized 404 page.
func NewNotFound(lang string) *Page {
	return &Page{
		ID:    "404",
		Route: NotFoundRoute,
		Name:  "404",
		Type:  TypeNotFound,
		Lang:  lang,
	}
}

// IsNotFoundRoute reports whether route is an explicit not-found route.
func IsNotFoundRoute(route string) bool {
	return route == NotFoundRoute || route == "/not-found.html"
}

// NestHeaders builds a tree out of a flat list of headers in document order.
// Each header becomes a child of the closest preceding header with a lower
// level.
func NestHeaders(flat []Header) []Header {
	type frame struct {
		level int
		list  *[]Header
	}

	root := make([]Header, 0)
	stack := []frame{{level: 0, list: &root}}

	for _, h := range flat {
		h.Children = nil
		for len(stack) > 1 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].list
		*parent = append(*parent, h)
		last := &(*parent)[len(*parent)-1]
		stack = append(stack, frame{level: h.Level, list: &last.Children})
	}

	return root
}
