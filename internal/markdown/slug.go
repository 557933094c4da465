package markdown

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns heading text into an anchor id: accents folded, lower case,
// whitespace and dashes collapsed to single dashes, everything that is not a
// letter or digit dropped.
func Slugify(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(folded) {
		switch {
		case r == '-' || r == '_' || unicode.IsSpace(r):
			if b.Len() > 0 {
				dash = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash {
				b.WriteByte('-')
				dash = false
			}
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// slugger hands out unique slugs within one document.
type slugger struct {
	seen map[string]struct{}
}

func newSlugger() *slugger {
	return &slugger{seen: make(map[string]struct{})}
}

func (s *slugger) unique(text string) string {
	base := Slugify(text)
	if base == "" {
		base = "heading"
	}
	slug := base
	for i := 1; ; i++ {
		if _, taken := s.seen[slug]; !taken {
			break
		}
		slug = base + "-" + strconv.Itoa(i)
	}
	s.seen[slug] = struct{}{}
	return slug
}

// reserve marks an explicit id as taken.
func (s *slugger) reserve(id string) {
	s.seen[id] = struct{}{}
}
