package cron

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTasks is returned when attempting to add a chain with no tasks
	ErrNoTasks = errors.New("cron: no tasks provided")

	// ErrInvalidSpec is matched by errors for a spec the parser rejects
	ErrInvalidSpec = errors.New("cron: invalid cron spec")

	// ErrCronClosed is returned when adding to a closed scheduler
	ErrCronClosed = errors.New("cron: cron manager is closed")

	// ErrDuplicateChain is matched when a chain name is registered twice
	ErrDuplicateChain = errors.New("cron: chain already registered")

	// ErrUnknownChain is matched by RunNow for a name that was never added
	ErrUnknownChain = errors.New("cron: unknown chain")
)

func errSpec(name, spec string, err error) error {
	return fmt.Errorf("%w: chain %s spec %q: %v", ErrInvalidSpec, name, spec, err)
}

func errTask(chain, task string, err error) error {
	return fmt.Errorf("cron: chain %s task %s: %w", chain, task, err)
}
