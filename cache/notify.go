package cache

import (
	"context"
	"sync"

	"github.com/balansai/walletkit/logger"
	"github.com/balansai/walletkit/routine"
	"github.com/smallnest/chanx"
)

// notification is one background refresh outcome for a key
type notification struct {
	key   string
	value any
	err   error
}

type subscription[F any] struct {
	id uint64
	fn F
}

// notifier keeps refresh listeners and delivers outcomes to them in order.
// Outcomes are queued on an unbounded channel drained by a single goroutine,
// so publishing never waits on a listener.
type notifier struct {
	log logger.Logger

	mu        sync.RWMutex
	nextID    uint64
	refreshed map[string][]subscription[func(any)]
	failed    map[string][]subscription[func(error)]

	queue *chanx.UnboundedChan[notification]
	done  chan struct{}
	once  sync.Once
}

func newNotifier(log logger.Logger, buffer int) *notifier {
	n := &notifier{
		log:       log,
		refreshed: make(map[string][]subscription[func(any)]),
		failed:    make(map[string][]subscription[func(error)]),
		// Background context: closing In drains the buffer before Out closes.
		queue: chanx.NewUnboundedChan[notification](context.Background(), buffer),
		done:  make(chan struct{}),
	}
	routine.GoNamed(log, "cache-notify", n.dispatch)
	return n
}

func (n *notifier) onRefresh(key string, fn func(any)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.refreshed[key] = append(n.refreshed[key], subscription[func(any)]{id: id, fn: fn})
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.refreshed[key] = remove(n.refreshed[key], id)
		if len(n.refreshed[key]) == 0 {
			delete(n.refreshed, key)
		}
	}
}

func (n *notifier) onError(key string, fn func(error)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.failed[key] = append(n.failed[key], subscription[func(error)]{id: id, fn: fn})
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.failed[key] = remove(n.failed[key], id)
		if len(n.failed[key]) == 0 {
			delete(n.failed, key)
		}
	}
}

// publish queues msg if anyone listens for its key.
// It must not be called after close.
func (n *notifier) publish(msg notification) {
	n.mu.RLock()
	var listening bool
	if msg.err != nil {
		listening = len(n.failed[msg.key]) > 0
	} else {
		listening = len(n.refreshed[msg.key]) > 0
	}
	n.mu.RUnlock()

	if listening {
		n.queue.In <- msg
	}
}

func (n *notifier) dispatch() {
	defer close(n.done)
	for msg := range n.queue.Out {
		n.deliver(msg)
	}
}

func (n *notifier) deliver(msg notification) {
	n.mu.RLock()
	var refreshed []subscription[func(any)]
	var failed []subscription[func(error)]
	if msg.err != nil {
		failed = append(failed, n.failed[msg.key]...)
	} else {
		refreshed = append(refreshed, n.refreshed[msg.key]...)
	}
	n.mu.RUnlock()

	for _, s := range refreshed {
		_ = routine.Call(n.log, "refresh-listener:"+msg.key, func() { s.fn(msg.value) })
	}
	for _, s := range failed {
		_ = routine.Call(n.log, "refresh-error-listener:"+msg.key, func() { s.fn(msg.err) })
	}
}

// close stops accepting notifications and waits until queued ones are delivered
func (n *notifier) close() {
	n.once.Do(func() {
		close(n.queue.In)
		<-n.done
	})
}

func remove[F any](subs []subscription[F], id uint64) []subscription[F] {
	out := subs[:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
