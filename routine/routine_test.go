package routine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/balansai/walletkit/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (logger.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func TestRunner_Go(t *testing.T) {
	log, _ := newObservedLogger()
	runner := New(log)

	var executed atomic.Bool
	runner.Go(func() {
		executed.Store(true)
	})
	runner.Wait()

	if !executed.Load() {
		t.Error("expected function to be executed")
	}
}

func TestRunner_GoNamed_WithPanic(t *testing.T) {
	log, recorded := newObservedLogger()
	runner := New(log)

	var afterPanic atomic.Bool
	runner.GoNamed("refresh:user", func() {
		panic("boom")
	})
	runner.Go(func() {
		afterPanic.Store(true)
	})
	runner.Wait()

	if !afterPanic.Load() {
		t.Error("expected goroutine after panic to execute")
	}

	entries := recorded.FilterMessage("goroutine panicked").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 panic log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["routine"]; got != "refresh:user" {
		t.Errorf("expected routine field refresh:user, got %v", got)
	}
}

func TestRunner_GoNamedWithContext(t *testing.T) {
	log, _ := newObservedLogger()
	runner := New(log)

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "value")

	var got atomic.Value
	runner.GoNamedWithContext(ctx, "ctx", func(ctx context.Context) {
		got.Store(ctx.Value(ctxKey{}))
	})
	runner.Wait()

	if got.Load() != "value" {
		t.Errorf("expected context value, got %v", got.Load())
	}
}

func TestRunner_Wait_MultipleGoroutines(t *testing.T) {
	log, _ := newObservedLogger()
	runner := New(log)

	var counter atomic.Int32
	for i := 0; i < 50; i++ {
		runner.Go(func() {
			time.Sleep(time.Millisecond)
			counter.Add(1)
		})
	}
	runner.Wait()

	if counter.Load() != 50 {
		t.Errorf("expected 50 executions, got %d", counter.Load())
	}
}

func TestGoNamed_Standalone(t *testing.T) {
	log, _ := newObservedLogger()

	done := make(chan struct{})
	GoNamed(log, "standalone", func() {
		defer close(done)
		panic("standalone panic")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("standalone goroutine did not run")
	}
}

func TestCall(t *testing.T) {
	log, recorded := newObservedLogger()

	if err := Call(log, "listener", func() {}); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}

	err := Call(log, "listener", func() { panic("bad listener") })
	if !errors.Is(err, ErrPanicRecovered) {
		t.Fatalf("expected ErrPanicRecovered, got %v", err)
	}
	if recorded.FilterMessage("goroutine panicked").Len() != 1 {
		t.Error("expected panic to be logged")
	}
}
