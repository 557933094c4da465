package build

import (
	"bytes"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/xml"
)

// Minifier shrinks generated HTML, CSS, JS, JSON and XML output.
type Minifier struct {
	m *minify.M
}

// NewMinifier returns a minifier that keeps document structure intact.
func NewMinifier() *Minifier {
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags:        true,
		KeepConditionalComments: true,
		KeepEndTags:             true,
		KeepDefaultAttrVals:     true,
	})
	m.Add("text/css", &css.Minifier{KeepCSS2: true})
	m.AddRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), &js.Minifier{})
	m.AddRegexp(regexp.MustCompile(`^(application|text)/(x-|(ld|manifest)\+)?json$`), &json.Minifier{})
	m.AddRegexp(regexp.MustCompile(`^(application|text)/xml$`), &xml.Minifier{})
	return &Minifier{m: m}
}

// Bytes minifies b as mediatype. Unknown media types are returned as-is.
func (mn *Minifier) Bytes(mediatype string, b []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := mn.m.Minify(mediatype, &out, bytes.NewReader(b)); err != nil {
		if err == minify.ErrNotExist {
			return b, nil
		}
		return nil, err
	}
	return out.Bytes(), nil
}
