package cache

// Statistics is a point-in-time view of the cache, recomputed on demand.
type Statistics struct {
	// MemoryEntries is the number of entries resident in the memory tier,
	// including entries that are stale but not yet evicted.
	MemoryEntries int `json:"memoryEntries"`
	// MemorySizeBytes is the summed content size of resident entries.
	MemorySizeBytes int64 `json:"memorySizeBytes"`
	// DiskEntries is the number of durable records, or -1 when the
	// persistent tier is disabled or its directory could not be listed.
	DiskEntries int `json:"diskEntries"`
	// Directory is the configured cache directory; empty for a
	// memory-only cache.
	Directory string `json:"directory"`
}

// Statistics reports entry counts and sizes. The disk count is a
// best-effort directory listing and degrades to -1 instead of failing.
func (c *Cache) Statistics() Statistics {
	st := Statistics{Directory: c.dir, DiskEntries: -1}
	for _, e := range c.mem.Snapshot() {
		st.MemoryEntries++
		st.MemorySizeBytes += e.SizeBytes
	}
	if c.disk != nil {
		if paths, err := c.disk.List(); err == nil {
			st.DiskEntries = len(paths)
		} else {
			c.log.Warnf("cache: could not list persistent tier: %v", err)
		}
	}
	return st
}
