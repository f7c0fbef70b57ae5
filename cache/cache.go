package cache

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the narrow diagnostic sink the cache writes to. Storage faults
// are logged here instead of being returned to callers. *zap.SugaredLogger
// satisfies it, as does any printf-style fake in tests.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// DefaultQueueSize is the default capacity of the persistent tier's write
// queue.
const DefaultQueueSize = 256

type config struct {
	logger    Logger
	queueSize int
	filePerm  os.FileMode
	dirPerm   os.FileMode
	persist   bool
}

// Option configures a Cache.
type Option func(*config)

func defaultConfig() config {
	return config{
		logger:    nopLogger{},
		queueSize: DefaultQueueSize,
		filePerm:  0o644,
		dirPerm:   0o755,
		persist:   true,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger sets the diagnostic sink. Defaults to a no-op logger.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithQueueSize sets the capacity of the persistent tier's write queue.
// When the queue is full, mirror writes are dropped (and logged) rather
// than blocking the caller.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithFilePerm sets the permissions for durable record files.
func WithFilePerm(mode os.FileMode) Option {
	return func(c *config) { c.filePerm = mode }
}

// WithoutPersistence disables the disk tier entirely; the cache is
// memory-only and empty after a restart.
func WithoutPersistence() Option {
	return func(c *config) { c.persist = false }
}

type opKind uint8

const (
	opSet opKind = iota
	opDel
	opClear
	// opHydrate is a journal sentinel only: Get parks one under its key
	// while reading disk so a racing mutation is detectable. It is never
	// queued.
	opHydrate
)

// diskOp is one queued persistent tier mutation. Ops for the same key are
// applied in submission order by a single writer goroutine; the pending
// journal lets reads and sweeps stay coherent with unflushed ops.
type diskOp struct {
	kind  opKind
	seq   uint64
	key   string
	entry Entry
	ack   chan struct{}
}

// Cache is a two-tier stylesheet cache: a sharded in-memory map in front of
// a file-per-key disk store. All methods are safe for concurrent use and
// never surface storage faults; see New for the one fatal condition.
type Cache struct {
	dir  string
	mem  *memoryTier
	disk *diskTier
	log  Logger

	mu      sync.Mutex
	seq     uint64
	pending map[string]diskOp
	// Set while the writer is between its journal check and the disk op.
	// Inline fallbacks wait on inflightDone so a stale disk write cannot
	// land after theirs.
	inflight     string
	inflightDone chan struct{}

	queue     chan diskOp
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
}

// New creates a cache rooted at dir. The directory is created if absent;
// an uncreatable directory is the only error New reports. Everything after
// construction degrades instead of failing.
func New(ctx context.Context, dir string, opts ...Option) (*Cache, error) {
	cfg := applyOptions(opts)

	childCtx, cancel := context.WithCancel(ctx)
	c := &Cache{
		dir:     dir,
		mem:     newMemoryTier(),
		log:     cfg.logger,
		pending: make(map[string]diskOp),
		ctx:     childCtx,
		cancel:  cancel,
	}

	if cfg.persist {
		if dir == "" {
			cancel()
			return nil, fmt.Errorf("cache: a cache directory is required unless persistence is disabled")
		}
		if err := os.MkdirAll(dir, cfg.dirPerm); err != nil {
			cancel()
			return nil, fmt.Errorf("cache: create directory %s: %w", dir, err)
		}
		c.disk = newDiskTier(dir, cfg.filePerm, cfg.logger)
		c.queue = make(chan diskOp, cfg.queueSize)
		c.waitGroup.Add(1)
		go c.run()
	}

	return c, nil
}

// Set stores content under key with an optional TTL. A zero ttl means the
// entry never expires on its own; a negative ttl stores an already-stale
// entry. Empty or whitespace-only key or content makes Set a no-op. The
// memory tier is written synchronously, the disk mirror asynchronously and
// best-effort.
func (c *Cache) Set(_ context.Context, key, content string, ttl time.Duration) {
	if strings.TrimSpace(key) == "" || strings.TrimSpace(content) == "" {
		return
	}
	e := newEntry(key, content, time.Now(), ttl)
	c.mem.Put(key, e)
	if c.disk == nil {
		return
	}
	c.enqueue(diskOp{kind: opSet, key: key, entry: e})
}

// Get returns the content stored under key. It prefers the memory tier and
// hydrates from disk on a miss. Absent, expired and invalid keys all
// report ok == false; Get never fails.
func (c *Cache) Get(_ context.Context, key string) (string, bool) {
	if strings.TrimSpace(key) == "" {
		return "", false
	}
	now := time.Now()
	if e, ok := c.mem.Get(key, now); ok {
		return e.Content, true
	}
	if c.disk == nil {
		return "", false
	}

	// A queued mutation for this key is authoritative over what is on
	// disk. Parking a hydration token under the key makes a mutation that
	// lands during the disk read detectable: it overwrites the token, and
	// the hydrated value is then served without being installed anywhere.
	c.mu.Lock()
	if op, queued := c.pending[key]; queued && op.kind != opHydrate {
		if op.kind != opSet || expired(now, op.entry.ExpiresAt) {
			c.mu.Unlock()
			return "", false
		}
		// Install while still holding the journal lock so a removal
		// cannot slip in between the journal read and the install.
		content := c.mem.PutIfAbsent(key, op.entry, now).Content
		c.mu.Unlock()
		return content, true
	}
	var token uint64
	registered := false
	if _, queued := c.pending[key]; !queued {
		c.seq++
		token = c.seq
		c.pending[key] = diskOp{kind: opHydrate, seq: token, key: key}
		registered = true
	}
	c.mu.Unlock()

	e, ok := c.disk.Read(key)

	c.mu.Lock()
	owner := false
	if registered {
		if cur, still := c.pending[key]; still && cur.kind == opHydrate && cur.seq == token {
			delete(c.pending, key)
			owner = true
		}
	}
	if !ok {
		c.mu.Unlock()
		return "", false
	}
	if expired(now, e.ExpiresAt) {
		c.mu.Unlock()
		if owner {
			if err := c.disk.Delete(key); err != nil {
				c.log.Warnf("cache: failed to evict stale record %s: %v", key, err)
			}
		}
		return "", false
	}
	if !owner {
		// A mutation or another hydration raced the read. The value is
		// still a correct answer for this Get, but whoever overtook the
		// token owns the tiers now.
		c.mu.Unlock()
		return e.Content, true
	}
	content := c.mem.PutIfAbsent(key, e, now).Content
	c.mu.Unlock()
	return content, true
}

// Remove deletes key from both tiers. Removing an absent or invalid key is
// a silent no-op.
func (c *Cache) Remove(_ context.Context, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	// Journal before memory: once the delete is journaled, a hydrating
	// read can no longer install this key behind the removal.
	if c.disk != nil {
		c.enqueue(diskOp{kind: opDel, key: key})
	}
	c.mem.Delete(key)
}

// ClearAll empties both tiers. Queued mirror writes are invalidated so a
// pre-clear Set cannot resurface afterwards.
func (c *Cache) ClearAll(ctx context.Context) {
	if c.disk == nil {
		c.mem.Clear()
		return
	}

	// Invalidate every queued op first so the writer skips them; wiping
	// the journal also cancels in-flight hydrations, and clearing memory
	// after the wipe means nothing they installed survives.
	c.mu.Lock()
	c.pending = make(map[string]diskOp)
	c.mu.Unlock()
	c.mem.Clear()

	if c.ctx.Err() != nil {
		// Writer is gone; clear inline.
		c.clearDiskInline()
		return
	}

	ack := make(chan struct{})
	select {
	case c.queue <- diskOp{kind: opClear, ack: ack}:
		select {
		case <-ack:
		case <-ctx.Done():
		case <-c.ctx.Done():
		}
	default:
		c.clearDiskInline()
	}
}

// clearDiskInline wipes the disk tier from the caller's goroutine, waiting
// out an op the writer is applying right now so its write cannot land
// after the wipe.
func (c *Cache) clearDiskInline() {
	c.mu.Lock()
	done := c.inflightDone
	c.mu.Unlock()
	if done != nil {
		<-done
	}
	if err := c.disk.ClearAll(); err != nil {
		c.log.Warnf("cache: clear persistent tier: %v", err)
	}
}

// Cleanup sweeps both tiers and removes every entry that is stale right
// now, returning the number of distinct keys removed. It never removes a
// live entry, so it is safe to run concurrently with ongoing traffic.
func (c *Cache) Cleanup(_ context.Context) int {
	now := time.Now()
	removed := make(map[string]struct{})

	for _, e := range c.mem.Snapshot() {
		if expired(now, e.ExpiresAt) && c.mem.evictStale(e.Key, now) {
			removed[e.Key] = struct{}{}
		}
	}

	if c.disk != nil {
		paths, err := c.disk.List()
		if err != nil {
			c.log.Warnf("cache: cleanup could not list persistent tier: %v", err)
		}
		for _, p := range paths {
			e, ok := c.disk.readPath(p)
			if !ok {
				continue
			}
			if !expired(now, e.ExpiresAt) {
				continue
			}
			c.mu.Lock()
			_, queued := c.pending[e.Key]
			c.mu.Unlock()
			if queued {
				// A queued op or in-flight hydration owns this key.
				continue
			}
			if err := c.disk.Delete(e.Key); err != nil {
				c.log.Warnf("cache: cleanup failed to remove %s: %v", e.Key, err)
				continue
			}
			removed[e.Key] = struct{}{}
		}
	}

	if len(removed) > 0 {
		c.log.Debugf("cache: cleanup removed %d stale entries", len(removed))
	}
	return len(removed)
}

// GenerateKey derives a deterministic cache key from a theme-like and a
// configuration-like object. See the package-level GenerateKey.
func (c *Cache) GenerateKey(theme, config any, extra ...string) string {
	return GenerateKey(theme, config, extra...)
}

// Close stops the mirror writer, flushing already-queued disk writes
// best-effort. Close is idempotent.
func (c *Cache) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
	})
	return nil
}

func (c *Cache) enqueue(op diskOp) {
	c.mu.Lock()
	c.seq++
	op.seq = c.seq
	c.pending[op.key] = op
	c.mu.Unlock()

	select {
	case c.queue <- op:
	default:
		// Queue full. Drop the mirror write rather than block the caller;
		// deletes are applied inline so a removed key cannot come back.
		c.mu.Lock()
		if cur, ok := c.pending[op.key]; ok && cur.seq == op.seq {
			delete(c.pending, op.key)
		}
		var done chan struct{}
		if c.inflight == op.key {
			done = c.inflightDone
		}
		c.mu.Unlock()
		if op.kind == opDel {
			// The journal entry is gone, so every queued op for this key
			// will be skipped; only an op already past its journal check
			// can still write, so wait it out before deleting.
			if done != nil {
				<-done
			}
			if err := c.disk.Delete(op.key); err != nil {
				c.log.Warnf("cache: failed to remove record %s: %v", op.key, err)
			}
			return
		}
		c.log.Warnf("cache: persistent queue full, dropping mirror write for %s", op.key)
	}
}

func (c *Cache) run() {
	defer c.waitGroup.Done()
	for {
		select {
		case <-c.ctx.Done():
			// Flush whatever is already queued before exiting.
			for {
				select {
				case op := <-c.queue:
					c.apply(op)
				default:
					return
				}
			}
		case op := <-c.queue:
			c.apply(op)
		}
	}
}

func (c *Cache) apply(op diskOp) {
	if op.kind == opClear {
		if err := c.disk.ClearAll(); err != nil {
			c.log.Warnf("cache: clear persistent tier: %v", err)
		}
		close(op.ack)
		return
	}

	c.mu.Lock()
	cur, ok := c.pending[op.key]
	if !ok || cur.seq != op.seq {
		// Superseded by a later op for the same key, or cleared.
		c.mu.Unlock()
		return
	}
	done := make(chan struct{})
	c.inflight = op.key
	c.inflightDone = done
	c.mu.Unlock()

	var err error
	switch op.kind {
	case opSet:
		err = c.disk.Write(op.entry)
	case opDel:
		err = c.disk.Delete(op.key)
	}
	if err != nil {
		c.log.Warnf("cache: persistent tier op for %s failed: %v", op.key, err)
	}

	c.mu.Lock()
	if cur, ok := c.pending[op.key]; ok && cur.seq == op.seq {
		delete(c.pending, op.key)
	}
	c.inflight = ""
	c.inflightDone = nil
	c.mu.Unlock()
	close(done)
}
