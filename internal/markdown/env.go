package markdown

import (
	"bytes"
	"math/bits"

	"github.com/conneroisu/folio/internal/page"
	"github.com/yuin/goldmark/parser"
)

// Env carries per-render input into the parser and collects what the
// parser steps find along the way. Use a fresh Env for every Render call.
type Env struct {
	// Input.
	FilePath         string
	FilePathRelative string
	Frontmatter      map[string]interface{}
	BaseURL          string

	// Output.
	Headers       []page.Header
	Links         []string
	Title         string
	HoistedTags   []string
	ImportedFiles []string
	Assets        []string
}

func (e *Env) base() string {
	if e.BaseURL == "" {
		return "/"
	}
	return e.BaseURL
}

// outputs is the part of an Env worth caching.
type outputs struct {
	Headers       []page.Header
	Links         []string
	Title         string
	HoistedTags   []string
	ImportedFiles []string
	Assets        []string
}

func (e *Env) outputs() outputs {
	return outputs{
		Headers:       append([]page.Header(nil), e.Headers...),
		Links:         append([]string(nil), e.Links...),
		Title:         e.Title,
		HoistedTags:   append([]string(nil), e.HoistedTags...),
		ImportedFiles: append([]string(nil), e.ImportedFiles...),
		Assets:        append([]string(nil), e.Assets...),
	}
}

func (e *Env) restore(o outputs) {
	e.Headers = append([]page.Header(nil), o.Headers...)
	e.Links = append([]string(nil), o.Links...)
	e.Title = o.Title
	e.HoistedTags = append([]string(nil), o.HoistedTags...)
	e.ImportedFiles = append([]string(nil), o.ImportedFiles...)
	e.Assets = append([]string(nil), o.Assets...)
}

var envKey = parser.NewContextKey()

func envFrom(pc parser.Context) *Env {
	if env, ok := pc.Get(envKey).(*Env); ok {
		return env
	}
	return &Env{}
}

// renderContext is handed to goldmark as its writer so node renderers can
// reach the Env. It satisfies util.BufWriter, which stops goldmark from
// wrapping it in a bufio.Writer.
type renderContext struct {
	*bytes.Buffer
	env *Env
}

const maxInt = 1<<(bits.UintSize-1) - 1

func (c *renderContext) Available() int { return maxInt }
func (c *renderContext) Buffered() int  { return c.Len() }
func (c *renderContext) Flush() error   { return nil }

func envFromWriter(w interface{}) *Env {
	if c, ok := w.(*renderContext); ok {
		return c.env
	}
	return nil
}
