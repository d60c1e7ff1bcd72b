package layout

import "karst/internal/kir"

type cacheEntry struct {
	Layout TypeLayout
	Err    *LayoutError
}

type cache struct {
	byType map[kir.TypeID]cacheEntry
}

func newCache() *cache {
	return &cache{byType: make(map[kir.TypeID]cacheEntry, 256)}
}

func (c *cache) get(id kir.TypeID) (cacheEntry, bool) {
	if c == nil {
		return cacheEntry{}, false
	}
	entry, ok := c.byType[id]
	return entry, ok
}

func (c *cache) put(id kir.TypeID, entry *cacheEntry) {
	if c == nil {
		return
	}
	if entry == nil {
		delete(c.byType, id)
		return
	}
	c.byType[id] = *entry
}
