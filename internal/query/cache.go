package query

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultFetchTimeout = 30 * time.Second

// Status is the lifecycle state of a cache entry
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	default:
		return "error"
	}
}

// Result is a typed snapshot of a cache entry.
//
// While a refetch is in flight the last good value stays readable with
// Status=StatusLoading and Stale=true. After a failed fetch Status=StatusError,
// Err holds the failure and any earlier value is still in Value/HasValue.
type Result[T any] struct {
	Key       Key
	Status    Status
	Value     T
	HasValue  bool
	Err       error
	Stale     bool
	UpdatedAt time.Time

	// InvalidatedBy is the sequence of the last mutation that staled the entry
	InvalidatedBy uint64
}

// entry is the mutable record behind a key. Guarded by Cache.mu.
type entry struct {
	key       Key
	value     any
	hasValue  bool
	err       error
	updatedAt time.Time

	gen      uint64 // bumped on every invalidation
	valueGen uint64 // generation the value was fetched under
	stale    bool
	inflight int
	staleBy  uint64 // sequence of the last mutation that invalidated this entry
}

func (e *entry) status() Status {
	switch {
	case e.inflight > 0:
		return StatusLoading
	case e.err != nil:
		return StatusError
	case e.hasValue:
		return StatusSuccess
	default:
		return StatusIdle
	}
}

// Cache is a process-wide keyed store of the latest known result of each read.
// Reads are single-flight per key generation: concurrent callers share one fetch,
// and a fetch started before an invalidation never satisfies reads after it.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group

	seq           uint64 // last issued mutation sequence
	lastCompleted uint64 // highest sequence whose invalidation was applied

	fetchTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithFetchTimeout bounds every remote fetch issued by the cache
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithClock overrides the time source used for UpdatedAt
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache
func New(logger *slog.Logger, opts ...CacheOption) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		entries:      make(map[string]*entry),
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadOption configures a single read
type ReadOption func(*readOptions)

type readOptions struct {
	enabled bool
}

// Enabled gates the read. A disabled read never fetches and reports StatusIdle.
func Enabled(enabled bool) ReadOption {
	return func(o *readOptions) { o.enabled = enabled }
}

// Get returns the entry for key, fetching through fetch when the entry is
// absent or stale. A cached error is returned as-is; retrying is the caller's
// decision (Invalidate, then Get).
//
// If ctx ends before the fetch completes, Get returns the current snapshot with
// ctx's error. The fetch itself continues and its result is applied to the cache.
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error), opts ...ReadOption) Result[T] {
	o := readOptions{enabled: true}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.enabled {
		return Result[T]{Key: key, Status: StatusIdle}
	}

	gen, need := c.begin(key)
	if !need {
		c.logger.Debug("cache hit", "key", key.String())
		return snapshotAs[T](c, key)
	}

	c.logger.Debug("cache miss", "key", key.String(), "gen", gen)

	flight := key.id() + "#" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(flight, func() (any, error) {
		return nil, c.run(ctx, key, gen, func(ctx context.Context) (any, error) {
			return fetch(ctx)
		})
	})

	select {
	case <-ch:
		return snapshotAs[T](c, key)
	case <-ctx.Done():
		res := snapshotAs[T](c, key)
		res.Err = ctx.Err()
		return res
	}
}

// begin creates the entry if needed and reports whether a fetch is required,
// along with the generation the fetch would serve.
func (c *Cache) begin(key Key) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.id()]
	if !ok {
		e = &entry{key: key}
		c.entries[key.id()] = e
	}

	if e.stale {
		return e.gen, true
	}
	if e.hasValue && e.valueGen == e.gen && e.err == nil {
		return e.gen, false
	}
	if e.err != nil {
		return e.gen, false
	}
	return e.gen, true
}

// run executes one fetch for generation gen. Called at most once per flight.
func (c *Cache) run(ctx context.Context, key Key, gen uint64, fetch func(context.Context) (any, error)) error {
	c.mu.Lock()
	e := c.entries[key.id()]
	if e.gen == gen && e.valueGen == gen && e.hasValue && !e.stale {
		// A previous flight for this generation already landed.
		c.mu.Unlock()
		return nil
	}
	e.inflight++
	c.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	value, err := fetch(fetchCtx)
	c.complete(key, gen, value, err)
	return err
}

// complete applies a fetch result. Results from an older generation may fill
// in a value but never clear staleness.
func (c *Cache) complete(key Key, gen uint64, value any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key.id()]
	if e == nil {
		return
	}
	e.inflight--

	if err != nil {
		if gen == e.gen {
			// The failure is the answer for this generation; no automatic retry.
			e.err = err
			e.stale = false
			c.logger.Error("fetch failed", "key", key.String(), "error", err)
		} else {
			c.logger.Debug("discarding failure of superseded fetch", "key", key.String(), "gen", gen)
		}
		return
	}

	switch {
	case gen == e.gen:
		e.value, e.hasValue, e.valueGen = value, true, gen
		e.err = nil
		e.stale = false
		e.updatedAt = c.now()
	case gen > e.valueGen || !e.hasValue:
		e.value, e.hasValue, e.valueGen = value, true, gen
		e.err = nil
		e.updatedAt = c.now()
		c.logger.Debug("stored superseded fetch as stale", "key", key.String(), "gen", gen, "current", e.gen)
	default:
		c.logger.Debug("discarding superseded fetch", "key", key.String(), "gen", gen)
	}
}

// Peek returns the current entry without fetching
func Peek[T any](c *Cache, key Key) (Result[T], bool) {
	c.mu.Lock()
	_, ok := c.entries[key.id()]
	c.mu.Unlock()
	if !ok {
		return Result[T]{Key: key, Status: StatusIdle}, false
	}
	return snapshotAs[T](c, key), true
}

func snapshotAs[T any](c *Cache, key Key) Result[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := Result[T]{Key: key, Status: StatusIdle}
	e, ok := c.entries[key.id()]
	if !ok {
		return res
	}

	res.Status = e.status()
	res.Err = e.err
	res.UpdatedAt = e.updatedAt
	res.InvalidatedBy = e.staleBy
	res.Stale = e.hasValue && (e.stale || e.valueGen != e.gen)
	if e.hasValue {
		if v, ok := e.value.(T); ok {
			res.Value = v
			res.HasValue = true
		}
	}
	return res
}

// Invalidate marks every entry matching pattern stale. It does not refetch;
// the next Get for a matching key does. Returns the number of entries marked.
func (c *Cache) Invalidate(pattern Pattern) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidateLocked(pattern, 0)
}

func (c *Cache) invalidateLocked(pattern Pattern, seq uint64) int {
	n := 0
	for _, e := range c.entries {
		if !pattern.Matches(e.key) {
			continue
		}
		e.gen++
		e.stale = true
		if seq > e.staleBy {
			e.staleBy = seq
		}
		n++
	}
	c.logger.Debug("invalidated", "pattern", pattern.String(), "entries", n, "seq", seq)
	return n
}

// InvalidateAll marks every entry stale
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.gen++
		e.stale = true
	}
	c.logger.Info("invalidated all cache", "entries", len(c.entries))
}

// Len returns the number of known keys
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// nextSeq stamps a mutation at submission
func (c *Cache) nextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// applyMutation invalidates all patterns of a completed mutation atomically
func (c *Cache) applyMutation(seq uint64, patterns []Pattern) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq < c.lastCompleted {
		c.logger.Debug("mutation completed out of submission order", "seq", seq, "lastCompleted", c.lastCompleted)
	} else {
		c.lastCompleted = seq
	}
	for _, p := range patterns {
		c.invalidateLocked(p, seq)
	}
}
