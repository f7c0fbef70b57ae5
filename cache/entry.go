package cache

import "time"

// Entry is one cached stylesheet. Entries are stored by value; the cache
// owns its copy and callers never hold a live reference to stored content.
type Entry struct {
	Key       string    `msgpack:"k"`
	Content   string    `msgpack:"c"`
	CreatedAt time.Time `msgpack:"ca"`
	// ExpiresAt is the zero time for entries that never expire.
	ExpiresAt time.Time `msgpack:"ea"`
	SizeBytes int64     `msgpack:"s"`
}

// expired reports whether an entry with the given deadline is stale at now.
// The zero deadline means the entry never expires. Both the read path and
// Cleanup use this same test so they cannot disagree about staleness.
func expired(now, expiresAt time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}

func newEntry(key, content string, now time.Time, ttl time.Duration) Entry {
	var expiresAt time.Time
	if ttl != 0 {
		// A negative TTL lands in the past: the entry is stored but is
		// already stale, so the next access removes it.
		expiresAt = now.Add(ttl)
	}
	return Entry{
		Key:       key,
		Content:   content,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		SizeBytes: int64(len(content)),
	}
}
