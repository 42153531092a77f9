package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is the last successful write for a key.
// A key without an Entry is absent; there is no empty Entry.
type Entry struct {
	Key       string
	Value     any
	FetchedAt time.Time
}

// Age reports how old the entry is at now
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Store maps keys to entries. It knows nothing about freshness.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewStore creates an empty store stamping writes with now; nil means time.Now
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries: make(map[string]Entry),
		now:     now,
	}
}

// Get returns the entry for key and whether it exists
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Set replaces the entry for key and stamps FetchedAt
func (s *Store) Set(key string, value any) Entry {
	e := Entry{Key: key, Value: value, FetchedAt: s.now()}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return e
}

// Clear removes key; clearing a missing key is a no-op
func (s *Store) Clear(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// ClearPrefix removes every key starting with prefix and returns the removed keys
func (s *Store) ClearPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			removed = append(removed, k)
		}
	}
	sort.Strings(removed)
	return removed
}

// ClearAll removes every entry and returns how many were removed
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = make(map[string]Entry)
	return n
}

// Keys returns the stored keys in sorted order
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
