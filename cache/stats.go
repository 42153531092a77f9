package cache

import "sync/atomic"

// Stats is a point-in-time snapshot of cache activity
type Stats struct {
	// Hits counts fresh reads served without a fetch
	Hits uint64
	// StaleHits counts reads served from a stale entry
	StaleHits uint64
	// Misses counts reads that found no entry
	Misses uint64
	// Fetches counts synchronous fetches actually executed (after single-flight)
	Fetches uint64
	// FetchErrors counts synchronous fetches that failed
	FetchErrors uint64
	// Refreshes counts background refreshes started
	Refreshes uint64
	// RefreshErrors counts background refreshes that failed
	RefreshErrors uint64
	// RefreshesSkipped counts stale reads that found a refresh already in flight
	RefreshesSkipped uint64
	// RefreshesDiscarded counts refresh results dropped because the key was invalidated meanwhile
	RefreshesDiscarded uint64
	// Invalidations counts keys removed by Invalidate, InvalidatePrefix and InvalidateAll
	Invalidations uint64
	// Entries is the current number of stored keys
	Entries int
}

type counters struct {
	hits               atomic.Uint64
	staleHits          atomic.Uint64
	misses             atomic.Uint64
	fetches            atomic.Uint64
	fetchErrors        atomic.Uint64
	refreshes          atomic.Uint64
	refreshErrors      atomic.Uint64
	refreshesSkipped   atomic.Uint64
	refreshesDiscarded atomic.Uint64
	invalidations      atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:               c.hits.Load(),
		StaleHits:          c.staleHits.Load(),
		Misses:             c.misses.Load(),
		Fetches:            c.fetches.Load(),
		FetchErrors:        c.fetchErrors.Load(),
		Refreshes:          c.refreshes.Load(),
		RefreshErrors:      c.refreshErrors.Load(),
		RefreshesSkipped:   c.refreshesSkipped.Load(),
		RefreshesDiscarded: c.refreshesDiscarded.Load(),
		Invalidations:      c.invalidations.Load(),
	}
}
