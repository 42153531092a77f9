package cron

import (
	"context"
	"time"

	"github.com/balansai/walletkit/logger"
	"github.com/balansai/walletkit/routine"
	"go.uber.org/zap"
)

// Middleware wraps a Task with additional behavior
// The returned Task must keep the Name of the wrapped one
type Middleware func(Task) Task

// applyMiddlewares wraps t so that mws[0] is outermost
func applyMiddlewares(t Task, mws ...Middleware) Task {
	for i := len(mws) - 1; i >= 0; i-- {
		t = mws[i](t)
	}
	return t
}

// recoveryMiddleware turns a panicking task into a failed one
func recoveryMiddleware(log logger.Logger) Middleware {
	return func(next Task) Task {
		return TaskFunc{
			TaskName: next.Name(),
			Fn: func(ctx context.Context) error {
				var err error
				if perr := routine.Call(log, next.Name(), func() { err = next.Run(ctx) }); perr != nil {
					return perr
				}
				return err
			},
		}
	}
}

// loggingMiddleware logs the duration and outcome of every task
func loggingMiddleware(log logger.Logger) Middleware {
	return func(next Task) Task {
		return TaskFunc{
			TaskName: next.Name(),
			Fn: func(ctx context.Context) error {
				start := time.Now()
				err := next.Run(ctx)
				if err != nil {
					log.Warn("task failed",
						zap.String("task", next.Name()),
						zap.Duration("duration", time.Since(start)),
						zap.Error(err),
					)
					return err
				}
				log.Debug("task completed",
					zap.String("task", next.Name()),
					zap.Duration("duration", time.Since(start)),
				)
				return nil
			},
		}
	}
}

// TimeoutMiddleware bounds every task by d
// Tasks must honour ctx for the timeout to take effect
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next Task) Task {
		return TaskFunc{
			TaskName: next.Name(),
			Fn: func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, d)
				defer cancel()
				return next.Run(ctx)
			},
		}
	}
}
