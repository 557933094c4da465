package markdown

import (
	"encoding/json"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/groupcache/lru"
)

type cacheKey uint64

type cached struct {
	html     string
	outputs  outputs
	filePath string
}

// renderCache is an LRU of rendered documents keyed on everything that
// changes the output: the source, the file it came from, the base URL and
// the frontmatter.
type renderCache struct {
	mu     sync.Mutex
	lru    *lru.Cache
	byFile map[string]map[cacheKey]struct{}
}

func newRenderCache(size int) *renderCache {
	if size < 0 {
		return nil
	}
	c := &renderCache{
		lru:    lru.New(size),
		byFile: make(map[string]map[cacheKey]struct{}),
	}
	c.lru.OnEvicted = func(key lru.Key, value interface{}) {
		k := key.(cacheKey)
		entry := value.(*cached)
		if keys, ok := c.byFile[entry.filePath]; ok {
			delete(keys, k)
			if len(keys) == 0 {
				delete(c.byFile, entry.filePath)
			}
		}
	}
	return c
}

func renderKey(src []byte, env *Env) cacheKey {
	d := xxhash.New()
	_, _ = d.Write(src)
	for _, part := range []string{env.FilePath, env.FilePathRelative, env.base()} {
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(part)
	}
	_, _ = d.Write([]byte{0})
	// encoding/json sorts map keys, which makes the encoding canonical.
	if fm, err := json.Marshal(env.Frontmatter); err == nil {
		_, _ = d.Write(fm)
	}
	return cacheKey(d.Sum64())
}

func (c *renderCache) get(key cacheKey) (*cached, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*cached), true
}

func (c *renderCache) add(key cacheKey, entry *cached) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry)
	keys, ok := c.byFile[entry.filePath]
	if !ok {
		keys = make(map[cacheKey]struct{})
		c.byFile[entry.filePath] = keys
	}
	keys[key] = struct{}{}
}

func (c *renderCache) forget(filePath string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.byFile[filePath]
	n := len(keys)
	for k := range keys {
		c.lru.Remove(k)
	}
	delete(c.byFile, filePath)
	return n
}

func (c *renderCache) len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
