// Package cache provides a time-bounded read-through cache for slowly changing
// remote resources.
//
// Reads are classified by age against a single ttl:
//   - fresh entries are returned without touching the network
//   - stale entries are returned immediately while one background refresh runs;
//     listeners registered with OnRefresh see the new value when it lands
//   - absent keys are fetched synchronously, and concurrent callers share one fetch
//
// A failed background refresh leaves the stale value in place. It is logged and
// delivered to OnRefreshError listeners, never returned to a reader. Only a fetch
// for an absent key can fail visibly.
//
// Entries are never evicted by time; they are replaced by refreshes or removed
// by invalidation.
package cache

import (
	"context"
	"time"
)

// Fetcher retrieves the authoritative value for a key
type Fetcher func(ctx context.Context) (any, error)

// Cache is a read-through cache with stale-while-revalidate semantics
type Cache interface {
	// GetOrFetch returns the value for key, calling fetch when the key is absent
	// (and waiting for it) or stale (in the background, returning the stale value).
	// The error of a failed absent-path fetch is returned unchanged.
	GetOrFetch(ctx context.Context, key string, fetch Fetcher, opts ...ReadOption) (any, error)

	// Peek returns the entry for key and its state under the configured ttl.
	// It never fetches.
	Peek(key string) (Entry, State)

	// Set writes value for key as if it had just been fetched
	Set(key string, value any)

	// Invalidate removes keys so the next read treats them as absent
	Invalidate(keys ...string)

	// InvalidatePrefix removes every key starting with prefix
	InvalidatePrefix(prefix string)

	// InvalidateAll removes every key, e.g. on logout
	InvalidateAll()

	// OnRefresh registers fn to receive values written by background refreshes of key.
	// The returned func unregisters it.
	OnRefresh(key string, fn func(value any)) (cancel func())

	// OnRefreshError registers fn to receive errors of failed background refreshes of key
	OnRefreshError(key string, fn func(err error)) (cancel func())

	// Stats returns activity counters
	Stats() Stats

	// Close stops background refreshes and listener delivery.
	// Reads after Close return ErrCacheClosed.
	Close()
}

// ReadOption customizes a single read
type ReadOption func(*readOptions)

type readOptions struct {
	ttl time.Duration
}

// WithTTL overrides the configured ttl for one read; non-positive values are ignored
func WithTTL(ttl time.Duration) ReadOption {
	return func(o *readOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// Option customizes a cache at construction
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Fetch is the typed form of GetOrFetch.
// It returns an error matching ErrWrongType if key holds a value of another type.
func Fetch[T any](ctx context.Context, c Cache, key string, fetch func(ctx context.Context) (T, error), opts ...ReadOption) (T, error) {
	var zero T
	if fetch == nil {
		return zero, ErrNilFetcher
	}

	v, err := c.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, opts...)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}

	t, ok := v.(T)
	if !ok {
		return zero, ErrTypeMismatch(key, zero, v)
	}
	return t, nil
}

// Listen is the typed form of OnRefresh; values of another type are ignored
func Listen[T any](c Cache, key string, fn func(T)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	return c.OnRefresh(key, func(v any) {
		if t, ok := v.(T); ok {
			fn(t)
		}
	})
}
