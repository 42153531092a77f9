package routine

import (
	"errors"
	"fmt"
)

// ErrPanicRecovered is matched by every error returned from Call after a panic
var ErrPanicRecovered = errors.New("routine: panic recovered")

// ErrPanic returns an error wrapping the recovered panic value
func ErrPanic(recovered any) error {
	return fmt.Errorf("%w: %v", ErrPanicRecovered, recovered)
}
