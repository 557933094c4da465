package paths

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher selects source files by include and exclude glob patterns.
// Patterns are matched against forward-slash relative paths, and a leading
// "**/" also matches files at the top level.
type Matcher struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewMatcher compiles the include and exclude patterns.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	inc, err := compileGlobs(include)
	if err != nil {
		return nil, err
	}
	exc, err := compileGlobs(exclude)
	if err != nil {
		return nil, err
	}
	return &Matcher{include: inc, exclude: exc}, nil
}

// Match reports whether rel is included and not excluded.
func (m *Matcher) Match(rel string) bool {
	rel = strings.TrimPrefix(ToSlash(rel), "./")
	for _, g := range m.exclude {
		if g.Match(rel) {
			return false
		}
	}
	for _, g := range m.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(ToSlash(p), "./")
		variants := []string{p}
		if rest := strings.TrimPrefix(p, "**/"); rest != p {
			variants = append(variants, rest)
		}
		for _, v := range variants {
			g, err := glob.Compile(v, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid glob %q: %w", p, err)
			}
			out = append(out, g)
		}
	}
	return out, nil
}
