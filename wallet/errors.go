package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrNilBackend is returned by New without a backend
	ErrNilBackend = errors.New("wallet: backend is nil")
	// ErrEmptyResource is returned for a mutation event without a resource
	ErrEmptyResource = errors.New("wallet: event has no resource")
)

// ErrDecodeEvent wraps a mutation event that is not valid JSON
func ErrDecodeEvent(err error) error {
	return fmt.Errorf("wallet: decode mutation event: %w", err)
}

// ErrEncodeEvent wraps a mutation event that cannot be marshalled
func ErrEncodeEvent(err error) error {
	return fmt.Errorf("wallet: encode mutation event: %w", err)
}

// ErrWarm reports that no key could be warmed
func ErrWarm(err error) error {
	return fmt.Errorf("wallet: warm failed: %w", err)
}
