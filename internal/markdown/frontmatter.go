package markdown

import (
	"bytes"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/spf13/cast"
)

// SplitFrontmatter separates YAML ("---"), TOML ("+++") or JSON (";;;")
// frontmatter from the markdown body. Content without frontmatter yields an
// empty map and the content unchanged.
func SplitFrontmatter(content []byte) (map[string]interface{}, []byte, error) {
	matter := map[string]interface{}{}
	body, err := frontmatter.Parse(bytes.NewReader(content), &matter)
	if err != nil {
		return nil, nil, err
	}
	return normalizeMatter(matter), body, nil
}

// normalizeMatter converts nested maps decoded with interface keys into
// string keyed maps so the result is JSON encodable.
func normalizeMatter(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		return normalizeMatter(cast.ToStringMap(t))
	case map[string]interface{}:
		return normalizeMatter(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

// MoreSeparator splits the excerpt from the rest of a page.
const MoreSeparator = "<!-- more -->"

// SplitExcerpt returns the markdown before the first MoreSeparator. ok is
// false when the body has none.
func SplitExcerpt(body []byte) (excerpt []byte, ok bool) {
	i := bytes.Index(body, []byte(MoreSeparator))
	if i < 0 {
		return nil, false
	}
	return bytes.TrimRight(body[:i], " \t\r\n"), true
}

// FrontmatterString reads a string field from frontmatter, trimmed.
func FrontmatterString(fm map[string]interface{}, key string) string {
	return strings.TrimSpace(cast.ToString(fm[key]))
}
