package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogger is a Logger fake that records formatted entries.
type captureLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *captureLogger) logf(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+fmt.Sprintf(format, args...))
}

func (l *captureLogger) Debugf(format string, args ...any) { l.logf("DEBUG", format, args...) }
func (l *captureLogger) Warnf(format string, args ...any)  { l.logf("WARN", format, args...) }
func (l *captureLogger) Errorf(format string, args ...any) { l.logf("ERROR", format, args...) }

func (l *captureLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := New(context.Background(), t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	c.Set(ctx, "key", "body { color: red }", 0)
	got, ok := c.Get(ctx, "key")
	assert.True(t, ok)
	assert.Equal(t, "body { color: red }", got)
}

func TestEmptyContentNotStored(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	c.Set(ctx, "key", "", time.Minute)
	_, ok := c.Get(ctx, "key")
	assert.False(t, ok)
	c.Set(ctx, "key", "   \t\n", time.Minute)
	_, ok = c.Get(ctx, "key")
	assert.False(t, ok)
}

func TestInvalidKeyTolerance(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	for _, key := range []string{"", "   ", "\t\n"} {
		_, ok := c.Get(ctx, key)
		assert.False(t, ok)
		c.Set(ctx, key, "content", time.Minute)
		c.Remove(ctx, key)
	}
	assert.Equal(t, 0, c.Statistics().MemoryEntries)
}

func TestExpiration(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	c.Set(ctx, "short", "fleeting", 50*time.Millisecond)
	got, ok := c.Get(ctx, "short")
	assert.True(t, ok)
	assert.Equal(t, "fleeting", got)
	time.Sleep(80 * time.Millisecond)
	_, ok = c.Get(ctx, "short")
	assert.False(t, ok)
}

func TestNoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	c.Set(ctx, "forever", "content", 0)
	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestNegativeTTLIsAlreadyStale(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	c.Set(ctx, "stale", "content", -time.Second)
	_, ok := c.Get(ctx, "stale")
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	c.Set(ctx, "key", "content", 0)
	c.Remove(ctx, "key")
	_, ok := c.Get(ctx, "key")
	assert.False(t, ok)
	// Removing an unknown key is a silent no-op.
	c.Remove(ctx, "never-set")
}

func TestSetRefreshOverwrites(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	c.Set(ctx, "key", "first", 0)
	c.Set(ctx, "key", "second", 0)
	got, ok := c.Get(ctx, "key")
	assert.True(t, ok)
	assert.Equal(t, "second", got)
}

func TestBulkClear(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	for i := range 20 {
		c.Set(ctx, fmt.Sprintf("key-%d", i), fmt.Sprintf("content-%d", i), 0)
	}
	c.ClearAll(ctx)
	for i := range 20 {
		_, ok := c.Get(ctx, fmt.Sprintf("key-%d", i))
		assert.False(t, ok)
	}
	st := c.Statistics()
	assert.Equal(t, 0, st.MemoryEntries)
	assert.Equal(t, 0, st.DiskEntries)
}

func TestSelectiveCleanup(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	c.Set(ctx, "elapsed", "old", 10*time.Millisecond)
	c.Set(ctx, "fresh", "new", time.Hour)
	time.Sleep(30 * time.Millisecond)
	removed := c.Cleanup(ctx)
	assert.Equal(t, 1, removed)
	_, ok := c.Get(ctx, "elapsed")
	assert.False(t, ok)
	got, ok := c.Get(ctx, "fresh")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestCleanupOnEmptyCache(t *testing.T) {
	c := newTestCache(t)
	assert.Equal(t, 0, c.Cleanup(context.Background()))
}

func TestConcurrentSetGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("worker-%d", i)
			want := fmt.Sprintf("content-%d", i)
			c.Set(ctx, key, want, time.Minute)
			got, ok := c.Get(ctx, key)
			if !ok || got != want {
				errs <- fmt.Errorf("worker %d: got %q ok=%v", i, got, ok)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestLargePayload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	big := strings.Repeat(".rule { padding: 1px } ", 5000) // ~115 KB
	a, err := New(context.Background(), dir)
	require.NoError(t, err)
	a.Set(ctx, "big", big, 0)
	got, ok := a.Get(ctx, "big")
	require.True(t, ok)
	assert.Equal(t, big, got)
	require.NoError(t, a.Close())

	// Byte-for-byte through the persistent tier as well.
	b, err := New(context.Background(), dir)
	require.NoError(t, err)
	defer b.Close()
	got, ok = b.Get(ctx, "big")
	require.True(t, ok)
	assert.Equal(t, big, got)
}

func TestRestartDurability(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, err := New(context.Background(), dir)
	require.NoError(t, err)
	a.Set(ctx, "durable", "survives restarts", 0)
	require.NoError(t, a.Close())

	b, err := New(context.Background(), dir)
	require.NoError(t, err)
	defer b.Close()
	got, ok := b.Get(ctx, "durable")
	require.True(t, ok)
	assert.Equal(t, "survives restarts", got)
}

func TestTTLEnforcedAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, err := New(context.Background(), dir)
	require.NoError(t, err)
	a.Set(ctx, "short", "content", 30*time.Millisecond)
	require.NoError(t, a.Close())

	time.Sleep(50 * time.Millisecond)
	b, err := New(context.Background(), dir)
	require.NoError(t, err)
	defer b.Close()
	_, ok := b.Get(ctx, "short")
	assert.False(t, ok)
}

func TestHydrationPopulatesMemory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, err := New(context.Background(), dir)
	require.NoError(t, err)
	a.Set(ctx, "key", "content", 0)
	require.NoError(t, a.Close())

	b, err := New(context.Background(), dir)
	require.NoError(t, err)
	defer b.Close()
	_, ok := b.Get(ctx, "key")
	require.True(t, ok)
	assert.Equal(t, 1, b.Statistics().MemoryEntries)
}

func TestMemoryOnly(t *testing.T) {
	ctx := context.Background()
	c, err := New(context.Background(), "", WithoutPersistence())
	require.NoError(t, err)
	defer c.Close()
	c.Set(ctx, "key", "content", 0)
	got, ok := c.Get(ctx, "key")
	assert.True(t, ok)
	assert.Equal(t, "content", got)
	c.Remove(ctx, "key")
	c.ClearAll(ctx)
	assert.Equal(t, 0, c.Cleanup(ctx))

	st := c.Statistics()
	assert.Equal(t, -1, st.DiskEntries)
	assert.Empty(t, st.Directory)
}

func TestPersistenceRequiresDirectory(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := New(context.Background(), dir)
	require.NoError(t, err)
	c.Set(ctx, "a", "12345", 0)
	c.Set(ctx, "b", "1234567890", 0)
	require.NoError(t, c.Close()) // flush mirror writes

	st := c.Statistics()
	assert.Equal(t, 2, st.MemoryEntries)
	assert.Equal(t, int64(15), st.MemorySizeBytes)
	assert.Equal(t, 2, st.DiskEntries)
	assert.Equal(t, dir, st.Directory)
}

func TestCloseIsIdempotent(t *testing.T) {
	c := newTestCache(t)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestRemoveAfterSetDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, err := New(context.Background(), dir)
	require.NoError(t, err)
	a.Set(ctx, "key", "content", 0)
	a.Remove(ctx, "key")
	require.NoError(t, a.Close())

	b, err := New(context.Background(), dir)
	require.NoError(t, err)
	defer b.Close()
	_, ok := b.Get(ctx, "key")
	assert.False(t, ok)
}

func TestHydrationDoesNotClobberNewerValue(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for i := 0; i < 25; i++ {
		seed, err := New(ctx, dir)
		require.NoError(t, err)
		seed.Set(ctx, "key", "old", 0)
		require.NoError(t, seed.Close())

		c, err := New(ctx, dir)
		require.NoError(t, err)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); c.Get(ctx, "key") }()
		go func() { defer wg.Done(); c.Set(ctx, "key", "new", 0) }()
		wg.Wait()

		got, ok := c.Get(ctx, "key")
		require.True(t, ok)
		require.Equal(t, "new", got, "cold read must not shadow the refresh")
		require.NoError(t, c.Close())
	}
}

func TestHydrationYieldsToRemove(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for i := 0; i < 25; i++ {
		seed, err := New(ctx, dir)
		require.NoError(t, err)
		seed.Set(ctx, "key", "old", 0)
		require.NoError(t, seed.Close())

		c, err := New(ctx, dir)
		require.NoError(t, err)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); c.Get(ctx, "key") }()
		go func() { defer wg.Done(); c.Remove(ctx, "key") }()
		wg.Wait()

		_, ok := c.Get(ctx, "key")
		require.False(t, ok, "cold read must not reinstall a removed key")
		require.NoError(t, c.Close())
	}
}

// newStalledWriterCache builds a cache whose writer goroutine never runs,
// so a test can play the writer by hand and pin down orderings that are
// otherwise timing-dependent.
func newStalledWriterCache(t *testing.T) *Cache {
	t.Helper()
	log := &captureLogger{}
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &Cache{
		dir:     dir,
		mem:     newMemoryTier(),
		disk:    newDiskTier(dir, 0o644, log),
		log:     log,
		pending: make(map[string]diskOp),
		queue:   make(chan diskOp, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func TestInlineDeleteWaitsOutInflightWrite(t *testing.T) {
	c := newStalledWriterCache(t)
	now := time.Now()

	// The writer sits between its journal check and the disk write.
	done := make(chan struct{})
	c.mu.Lock()
	c.inflight = "key"
	c.inflightDone = done
	c.mu.Unlock()
	// Another op keeps the queue full so the delete must go inline.
	c.queue <- diskOp{kind: opSet, key: "other", entry: newEntry("other", "x", now, 0)}

	removed := make(chan struct{})
	go func() {
		c.Remove(context.Background(), "key")
		close(removed)
	}()

	select {
	case <-removed:
		t.Fatal("inline delete ran while a write for the key was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	// The in-flight write lands, then the apply finishes.
	require.NoError(t, c.disk.Write(newEntry("key", "old", now, 0)))
	c.mu.Lock()
	c.inflight = ""
	c.inflightDone = nil
	c.mu.Unlock()
	close(done)

	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("remove never completed")
	}
	_, ok := c.disk.Read("key")
	assert.False(t, ok, "the removed key must not survive on disk")
}

func TestInlineClearWaitsOutInflightWrite(t *testing.T) {
	c := newStalledWriterCache(t)
	now := time.Now()

	done := make(chan struct{})
	c.mu.Lock()
	c.inflight = "key"
	c.inflightDone = done
	c.mu.Unlock()
	c.queue <- diskOp{kind: opSet, key: "other", entry: newEntry("other", "x", now, 0)}

	cleared := make(chan struct{})
	go func() {
		c.ClearAll(context.Background())
		close(cleared)
	}()

	select {
	case <-cleared:
		t.Fatal("inline clear ran while a write was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, c.disk.Write(newEntry("key", "old", now, 0)))
	c.mu.Lock()
	c.inflight = ""
	c.inflightDone = nil
	c.mu.Unlock()
	close(done)

	select {
	case <-cleared:
	case <-time.After(2 * time.Second):
		t.Fatal("clear never completed")
	}
	paths, err := c.disk.List()
	require.NoError(t, err)
	assert.Empty(t, paths, "the in-flight write must not outlive the clear")
}
