package cache

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCacheClosed is returned by reads after Close
	ErrCacheClosed = errors.New("cache: cache is closed")
	// ErrNilFetcher is returned when GetOrFetch is called without a fetcher
	ErrNilFetcher = errors.New("cache: fetcher is nil")
	// ErrWrongType is matched by errors from Fetch when the cached value has another type
	ErrWrongType = errors.New("cache: cached value has unexpected type")
)

// ErrTypeMismatch reports that key holds a value of a different type than requested
func ErrTypeMismatch(key string, want, got any) error {
	return fmt.Errorf("%w: key %q holds %T, want %T", ErrWrongType, key, got, want)
}

// ErrInvalidName returns an error for an empty cache name
func ErrInvalidName(name string) error {
	return fmt.Errorf("cache: invalid name: %q (must be non-empty)", name)
}

// ErrInvalidTTL returns an error for a non-positive ttl
func ErrInvalidTTL(ttl time.Duration) error {
	return fmt.Errorf("cache: invalid ttl: %v (must be > 0)", ttl)
}

// ErrInvalidNotifyBuffer returns an error for a negative notify buffer
func ErrInvalidNotifyBuffer(n int) error {
	return fmt.Errorf("cache: invalid notify buffer: %d (must be >= 0)", n)
}
