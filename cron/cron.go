// Package cron runs chains of tasks on cron schedules.
//
// A chain runs its tasks in order and stops at the first failure. Runs of the
// same chain never overlap; a tick that finds the previous run still going is skipped.
package cron

import (
	"context"

	"github.com/balansai/walletkit/logger"
)

// Task is one step of a chain
// Each task must have a name unique within its chain and implement Run
type Task interface {
	// Name returns the identifier of the task in logs
	Name() string
	// Run executes the task with the given context
	// The context carries the chain's SharedData for passing results to later tasks
	Run(ctx context.Context) error
}

// TaskFunc adapts a plain function to Task
type TaskFunc struct {
	// TaskName is returned by Name
	TaskName string
	// Fn is called by Run
	Fn func(ctx context.Context) error
}

// Name returns TaskName
func (f TaskFunc) Name() string { return f.TaskName }

// Run calls Fn
func (f TaskFunc) Run(ctx context.Context) error { return f.Fn(ctx) }

// Chain represents a chain of tasks that execute sequentially
type Chain struct {
	// Name is the name of the chain, unique per Cron
	Name string
	// Spec is the cron spec for the chain
	Spec string
	// Tasks are the tasks in the chain, run in order
	Tasks []Task
}

// Cron is the interface for managing cron jobs
// It supports chain-based task execution with middleware support
type Cron interface {
	// Start begins the cron scheduler
	Start()
	// Close stops the cron scheduler and waits for running chains to complete
	Close()
	// AddTasks adds a chain of tasks to be executed according to the cron spec
	// The spec has six fields with seconds first, e.g. "*/30 * * * * *",
	// or is a descriptor such as "@every 30s" or "@hourly"
	// Tasks are executed sequentially, and if any task fails, the chain is aborted
	AddTasks(name string, spec string, tasks ...Task) error
	// AddChain is AddTasks taking a Chain
	AddChain(chain Chain) error
	// RunNow runs a registered chain once on the caller's goroutine,
	// through the same middlewares as a scheduled run
	RunNow(ctx context.Context, name string) error
}

// NewCron creates a new cron manager with the given logger and middlewares
// Middlewares are applied to all tasks in the order they are provided
// Built-in middlewares: recoveryMiddleware, loggingMiddleware
func NewCron(log logger.Logger, mws ...Middleware) Cron {
	log = logger.Named(logger.OrDefault(log), "cron")
	defaults := []Middleware{
		recoveryMiddleware(log),
		loggingMiddleware(log),
	}
	return newCronManager(log, append(defaults, mws...)...)
}
