// Package paths normalizes file system paths and derives URL routes from them.
package paths

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// ToSlash cleans p and converts it to forward slashes.
func ToSlash(p string) string {
	if p == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(p))
}

// Rel returns target relative to root using forward slashes. It fails when
// target is not inside root.
func Rel(root, target string) (string, error) {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", target, root)
	}
	return rel, nil
}

// Resolve joins p onto root unless p is already absolute.
func Resolve(root, p string) string {
	if p == "" {
		return filepath.Clean(root)
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// EnsureLeadingSlash prefixes s with "/" when missing.
func EnsureLeadingSlash(s string) string {
	if strings.HasPrefix(s, "/") {
		return s
	}
	return "/" + s
}

// EnsureTrailingSlash suffixes s with "/" when missing.
func EnsureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// NormalizeBase returns base with exactly one leading and one trailing slash.
func NormalizeBase(base string) string {
	base = strings.Trim(path.Clean("/"+strings.TrimSpace(base)), "/")
	if base == "" {
		return "/"
	}
	return "/" + base + "/"
}

// WithBase joins a site-absolute route onto the base URL.
func WithBase(base, route string) string {
	base = NormalizeBase(base)
	if base == "/" {
		return EnsureLeadingSlash(route)
	}
	return base + strings.TrimPrefix(route, "/")
}

// RouteFromFile derives a route from a path relative to the source directory.
//
//	guide/intro.md      -> /guide/intro.html
//	guide/index.md      -> /guide/
//	guide/README.md     -> /guide/
//	button.story.md     -> /button.story.html
//	指南/介绍.md         -> /%E6%8C%87%E5%8D%97/%E4%BB%8B%E7%BB%8D.html
func RouteFromFile(rel string) (string, error) {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	if rel == "" || rel == "." {
		return "", fmt.Errorf("empty page path")
	}
	if rel == ".." || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("page path %q must be relative to the source directory", rel)
	}

	ext := path.Ext(rel)
	route := "/" + strings.TrimSuffix(rel, ext) + ".html"

	switch {
	case route == "/index.html" || route == "/README.html":
		route = "/"
	case strings.HasSuffix(route, "/index.html"):
		route = strings.TrimSuffix(route, "index.html")
	case strings.HasSuffix(route, "/README.html"):
		route = strings.TrimSuffix(route, "README.html")
	}

	return EncodeRoute(route), nil
}

// NormalizeRoute cleans an explicit route given by a plugin or frontmatter.
// Routes without an extension or trailing slash get ".html" appended.
func NormalizeRoute(route string) string {
	route = EnsureLeadingSlash(strings.TrimSpace(route))
	if route == "/" || strings.HasSuffix(route, "/") {
		return EncodeRoute(route)
	}
	if path.Ext(route) == "" {
		route += ".html"
	}
	return EncodeRoute(route)
}

// EncodeRoute percent-encodes route segments that contain non-ASCII or
// otherwise unsafe characters. Already encoded segments are left as-is.
func EncodeRoute(route string) string {
	segments := strings.Split(route, "/")
	for i, seg := range segments {
		if seg == "" || isEncoded(seg) {
			continue
		}
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

func isEncoded(seg string) bool {
	if !strings.Contains(seg, "%") {
		return false
	}
	decoded, err := url.PathUnescape(seg)
	return err == nil && decoded != seg
}

// DecodeRoute reverses EncodeRoute for display purposes.
func DecodeRoute(route string) string {
	decoded, err := url.PathUnescape(route)
	if err != nil {
		return route
	}
	return decoded
}

// IsExternal reports whether link points off-site.
func IsExternal(link string) bool {
	if strings.HasPrefix(link, "//") {
		return true
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Scheme != "file"
}

// IsRelative reports whether link is a relative reference that should be
// resolved against the current file.
func IsRelative(link string) bool {
	if link == "" || IsExternal(link) {
		return false
	}
	switch link[0] {
	case '/', '#', '?':
		return false
	}
	return !strings.HasPrefix(link, "data:") && !strings.HasPrefix(link, "mailto:") && !strings.HasPrefix(link, "@")
}

// OutputFile maps a route to the file written for it in the output directory.
//
//	/          -> index.html
//	/guide/    -> guide/index.html
//	/a/b.html  -> a/b.html
func OutputFile(route string) string {
	route = DecodeRoute(route)
	route = strings.TrimPrefix(route, "/")
	if route == "" || strings.HasSuffix(route, "/") {
		route += "index.html"
	}
	return filepath.FromSlash(route)
}
