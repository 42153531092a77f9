package cache

import "time"

// State classifies a key for a read
type State uint8

const (
	// StateAbsent means no entry exists; the read must fetch and wait
	StateAbsent State = iota
	// StateFresh means the entry is younger than the ttl
	StateFresh
	// StateStale means the entry is served while a refresh runs in the background
	StateStale
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "absent"
	}
}

// Classify applies the stale-read policy: an entry is fresh while its age is below ttl.
func Classify(e Entry, ok bool, now time.Time, ttl time.Duration) State {
	if !ok {
		return StateAbsent
	}
	if e.Age(now) < ttl {
		return StateFresh
	}
	return StateStale
}
