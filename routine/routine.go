// Package routine runs goroutines that cannot take the process down.
//
// Background cache refreshes, listener dispatch and subscriber loops all go
// through here, so a panicking fetcher or listener is logged instead of fatal.
package routine

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/balansai/walletkit/logger"
	"go.uber.org/zap"
)

// Runner starts tracked goroutines with panic recovery
type Runner interface {
	// Go runs fn in a new goroutine
	Go(fn func())

	// GoNamed runs fn in a new goroutine; name tags the panic log
	GoNamed(name string, fn func())

	// GoNamedWithContext runs fn with ctx in a new goroutine
	GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context))

	// Wait blocks until every goroutine started by this runner has returned
	Wait()
}

type defaultRunner struct {
	log logger.Logger
	wg  sync.WaitGroup
}

// New creates a Runner that logs recovered panics to log
func New(log logger.Logger) Runner {
	return &defaultRunner{log: logger.OrDefault(log)}
}

func (r *defaultRunner) Go(fn func()) {
	r.GoNamed("", fn)
}

func (r *defaultRunner) GoNamed(name string, fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer recoverWithLog(r.log, name)
		fn()
	}()
}

func (r *defaultRunner) GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	r.GoNamed(name, func() { fn(ctx) })
}

func (r *defaultRunner) Wait() {
	r.wg.Wait()
}

// GoNamed runs an untracked goroutine with panic recovery
func GoNamed(log logger.Logger, name string, fn func()) {
	go func() {
		defer recoverWithLog(log, name)
		fn()
	}()
}

// Call runs fn on the current goroutine and converts a panic into an error.
// The panic is logged with its stack before being returned.
func Call(log logger.Logger, name string, fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logPanic(log, name, rec)
			err = ErrPanic(rec)
		}
	}()
	fn()
	return nil
}

func recoverWithLog(log logger.Logger, name string) {
	if rec := recover(); rec != nil {
		logPanic(log, name, rec)
	}
}

func logPanic(log logger.Logger, name string, rec any) {
	fields := []zap.Field{
		zap.Any("panic", rec),
		zap.String("stack", string(debug.Stack())),
	}
	if name != "" {
		fields = append([]zap.Field{zap.String("routine", name)}, fields...)
	}
	logger.OrDefault(log).Error("goroutine panicked", fields...)
}
