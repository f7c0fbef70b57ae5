package cache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

// memoryTier is the hot in-process tier: a sharded map so that concurrent
// traffic on unrelated keys never contends on one mutex.
type memoryTier struct {
	shards [shardCount]memShard
}

type memShard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func newMemoryTier() *memoryTier {
	m := &memoryTier{}
	for i := range m.shards {
		m.shards[i].entries = make(map[string]Entry)
	}
	return m
}

func (m *memoryTier) shard(key string) *memShard {
	return &m.shards[xxhash.Sum64String(key)%shardCount]
}

// Get returns the live entry for key. A stale entry behaves as a miss and
// is evicted as a side effect, so correctness never depends on a sweep
// having run.
func (m *memoryTier) Get(key string, now time.Time) (Entry, bool) {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	if expired(now, e.ExpiresAt) {
		delete(s.entries, key)
		return Entry{}, false
	}
	return e, true
}

func (m *memoryTier) Put(key string, e Entry) {
	s := m.shard(key)
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

func (m *memoryTier) Delete(key string) {
	s := m.shard(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (m *memoryTier) Clear() {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		s.entries = make(map[string]Entry)
		s.mu.Unlock()
	}
}

// Snapshot copies out every entry, live or stale. Used by Statistics and
// by Cleanup to enumerate candidates without holding shard locks.
func (m *memoryTier) Snapshot() []Entry {
	var out []Entry
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for _, e := range s.entries {
			out = append(out, e)
		}
		s.mu.RUnlock()
	}
	return out
}

// PutIfAbsent installs e only when no live entry exists for the key and
// returns whichever entry won. Hydrating reads use this so a value read
// from disk can never clobber a newer value a concurrent Put installed.
func (m *memoryTier) PutIfAbsent(key string, e Entry, now time.Time) Entry {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[key]; ok && !expired(now, cur.ExpiresAt) {
		return cur
	}
	s.entries[key] = e
	return e
}

// evictStale removes key only if it is still stale at now, re-checking
// under the shard lock so a concurrent refresh is never lost.
func (m *memoryTier) evictStale(key string, now time.Time) bool {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !expired(now, e.ExpiresAt) {
		return false
	}
	delete(s.entries, key)
	return true
}
