package cron

import (
	"context"
	"sync"
)

type contextKey struct{}

// SharedData carries values between the tasks of one chain run
// A new SharedData is created for every run, so values never leak between runs
type SharedData struct {
	data sync.Map
}

func withSharedData(ctx context.Context, s *SharedData) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// GetSharedData returns the SharedData of the running chain, or nil outside one
func GetSharedData(ctx context.Context) *SharedData {
	if s, ok := ctx.Value(contextKey{}).(*SharedData); ok {
		return s
	}
	return nil
}

// Set stores value under key
func (s *SharedData) Set(key string, value any) {
	s.data.Store(key, value)
}

// Get returns the value stored under key and whether it was present
func (s *SharedData) Get(key string) (any, bool) {
	return s.data.Load(key)
}

// Delete removes key
func (s *SharedData) Delete(key string) {
	s.data.Delete(key)
}

// Range calls f for each value until f returns false
func (s *SharedData) Range(f func(key string, value any) bool) {
	s.data.Range(func(k, v any) bool {
		return f(k.(string), v)
	})
}
