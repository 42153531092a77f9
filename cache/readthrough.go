package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/balansai/walletkit/logger"
	"github.com/balansai/walletkit/routine"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// readThrough implements Cache on top of Store
type readThrough struct {
	name  string
	ttl   time.Duration
	log   logger.Logger
	now   func() time.Time
	store *Store

	runner   routine.Runner
	notifier *notifier
	stats    counters

	// sf collapses concurrent absent-path fetches of one key
	sf singleflight.Group

	// mu guards the fields below and orders store writes against invalidation
	mu sync.Mutex
	// refreshing holds keys with a background refresh in flight
	refreshing map[string]struct{}
	// generations is bumped for a key whenever it is invalidated or Set, and
	// epoch whenever the whole cache is; a fetch only writes the store if the
	// fence it started with is still current. InvalidateAll resets generations.
	generations map[string]uint64
	epoch       uint64
	closed      bool

	// ctx is handed to background refreshes and cancelled by Close
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates a read-through cache.
// A nil cfg uses DefaultConfig; a nil log uses logger.Default.
func New(log logger.Logger, cfg *Config, opts ...Option) (Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	log = logger.Named(logger.OrDefault(log), "cache")
	ctx, cancel := context.WithCancel(context.Background())

	c := &readThrough{
		name:        cfg.Name,
		ttl:         cfg.TTL,
		log:         log,
		now:         o.now,
		store:       NewStore(o.now),
		runner:      routine.New(log),
		notifier:    newNotifier(log, cfg.NotifyBuffer),
		refreshing:  make(map[string]struct{}),
		generations: make(map[string]uint64),
		ctx:         ctx,
		cancel:      cancel,
	}

	log.Debug("cache created",
		zap.String("cache", c.name),
		zap.Duration("ttl", c.ttl),
	)
	return c, nil
}

func (c *readThrough) GetOrFetch(ctx context.Context, key string, fetch Fetcher, opts ...ReadOption) (any, error) {
	if fetch == nil {
		return nil, ErrNilFetcher
	}
	if c.isClosed() {
		return nil, ErrCacheClosed
	}

	ro := readOptions{ttl: c.ttl}
	for _, opt := range opts {
		opt(&ro)
	}

	entry, ok := c.store.Get(key)
	switch Classify(entry, ok, c.now(), ro.ttl) {
	case StateFresh:
		c.stats.hits.Add(1)
		return entry.Value, nil

	case StateStale:
		c.stats.staleHits.Add(1)
		c.scheduleRefresh(key, fetch)
		return entry.Value, nil

	default:
		c.stats.misses.Add(1)
		return c.load(ctx, key, fetch)
	}
}

// load fetches an absent key for the caller.
// Concurrent callers for the same key share one fetch. The fetch runs detached
// from any single caller's cancellation and stops only when the cache is closed,
// so a caller that gives up does not fail the others; each caller waits on its own ctx.
func (c *readThrough) load(ctx context.Context, key string, fetch Fetcher) (any, error) {
	f := c.fence(key)

	ch := c.sf.DoChan(key, func() (any, error) {
		c.stats.fetches.Add(1)
		start := time.Now()

		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		stop := context.AfterFunc(c.ctx, cancel)
		defer func() {
			stop()
			cancel()
		}()

		var value any
		var err error
		if perr := routine.Call(c.log, "fetch:"+key, func() { value, err = fetch(fctx) }); perr != nil {
			err = perr
		}
		if err != nil {
			c.stats.fetchErrors.Add(1)
			return nil, err
		}

		if !c.commit(key, f, value) {
			c.log.Debug("fetched value not stored, key was invalidated during fetch",
				zap.String("cache", c.name),
				zap.String("key", key),
			)
		}
		c.log.Debug("fetched",
			zap.String("cache", c.name),
			zap.String("key", key),
			zap.Duration("duration", time.Since(start)),
		)
		return value, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.log.Debug("fetch failed",
				zap.String("cache", c.name),
				zap.String("key", key),
				zap.Bool("shared", res.Shared),
				zap.Error(res.Err),
			)
			return nil, res.Err
		}
		return res.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// scheduleRefresh starts a background refresh for key unless one is already running
func (c *readThrough) scheduleRefresh(key string, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if _, busy := c.refreshing[key]; busy {
		c.stats.refreshesSkipped.Add(1)
		return
	}
	c.refreshing[key] = struct{}{}
	f := c.fenceLocked(key)

	c.runner.GoNamed("refresh:"+key, func() {
		defer c.refreshDone(key)
		c.refresh(key, f, fetch)
	})
}

func (c *readThrough) refresh(key string, f fence, fetch Fetcher) {
	c.stats.refreshes.Add(1)
	start := time.Now()

	value, err := fetch(c.ctx)
	if err != nil {
		c.stats.refreshErrors.Add(1)
		c.log.Warn("background refresh failed, keeping stale value",
			zap.String("cache", c.name),
			zap.String("key", key),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		c.notifier.publish(notification{key: key, err: err})
		return
	}

	if !c.commit(key, f, value) {
		c.stats.refreshesDiscarded.Add(1)
		c.log.Debug("refresh discarded, key was invalidated during fetch",
			zap.String("cache", c.name),
			zap.String("key", key),
		)
		return
	}

	c.log.Debug("background refresh completed",
		zap.String("cache", c.name),
		zap.String("key", key),
		zap.Duration("duration", time.Since(start)),
	)
	c.notifier.publish(notification{key: key, value: value})
}

func (c *readThrough) refreshDone(key string) {
	c.mu.Lock()
	delete(c.refreshing, key)
	c.mu.Unlock()
}

// fence identifies the state of a key a fetch started from
type fence struct {
	epoch uint64
	gen   uint64
}

// fence returns the current fence of key, registering the key so that
// prefix invalidations see fetches that have not written yet.
func (c *readThrough) fence(key string) fence {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fenceLocked(key)
}

func (c *readThrough) fenceLocked(key string) fence {
	g, ok := c.generations[key]
	if !ok {
		c.generations[key] = 0
	}
	return fence{epoch: c.epoch, gen: g}
}

// commit stores value if key has not been invalidated since f was taken
func (c *readThrough) commit(key string, f fence, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != f.epoch || c.generations[key] != f.gen {
		return false
	}
	c.store.Set(key, value)
	return true
}

// bump must be called with mu held
func (c *readThrough) bump(key string) {
	c.generations[key]++
	c.sf.Forget(key)
}

func (c *readThrough) Peek(key string) (Entry, State) {
	e, ok := c.store.Get(key)
	return e, Classify(e, ok, c.now(), c.ttl)
}

func (c *readThrough) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bump(key)
	c.store.Set(key, value)
}

func (c *readThrough) Invalidate(keys ...string) {
	if len(keys) == 0 {
		return
	}

	c.mu.Lock()
	for _, k := range keys {
		c.bump(k)
		c.store.Clear(k)
	}
	c.mu.Unlock()

	c.stats.invalidations.Add(uint64(len(keys)))
	c.log.Debug("invalidated",
		zap.String("cache", c.name),
		zap.Strings("keys", keys),
	)
}

func (c *readThrough) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	removed := c.store.ClearPrefix(prefix)
	for k := range c.generations {
		if strings.HasPrefix(k, prefix) {
			c.bump(k)
		}
	}
	c.mu.Unlock()

	c.stats.invalidations.Add(uint64(len(removed)))
	c.log.Debug("invalidated prefix",
		zap.String("cache", c.name),
		zap.String("prefix", prefix),
		zap.Strings("keys", removed),
	)
}

func (c *readThrough) InvalidateAll() {
	c.mu.Lock()
	n := c.store.ClearAll()
	for k := range c.generations {
		c.sf.Forget(k)
	}
	// the epoch fences every fetch in flight, so per-key generations can start over
	c.epoch++
	clear(c.generations)
	c.mu.Unlock()

	c.stats.invalidations.Add(uint64(n))
	c.log.Debug("invalidated all",
		zap.String("cache", c.name),
		zap.Int("keys", n),
	)
}

func (c *readThrough) OnRefresh(key string, fn func(value any)) func() {
	if fn == nil {
		return func() {}
	}
	return c.notifier.onRefresh(key, fn)
}

func (c *readThrough) OnRefreshError(key string, fn func(err error)) func() {
	if fn == nil {
		return func() {}
	}
	return c.notifier.onError(key, fn)
}

func (c *readThrough) Stats() Stats {
	s := c.stats.snapshot()
	s.Entries = c.store.Len()
	return s
}

func (c *readThrough) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()
		c.runner.Wait()
		c.notifier.close()

		c.log.Debug("cache closed", zap.String("cache", c.name))
	})
}

func (c *readThrough) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
