package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/balansai/walletkit/routine"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeConsumer serves queued events from Poll and records commits
type fakeConsumer struct {
	events chan kafka.Event

	mu        sync.Mutex
	committed []*kafka.Message
	commitErr error
	closed    bool
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{events: make(chan kafka.Event, 8)}
}

func (f *fakeConsumer) Poll(timeoutMs int) kafka.Event {
	select {
	case e := <-f.events:
		return e
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		return nil
	}
}

func (f *fakeConsumer) CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	f.committed = append(f.committed, m)
	return []kafka.TopicPartition{m.TopicPartition}, nil
}

func (f *fakeConsumer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConsumer) commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

func testSubscriberConfig() *SubscriberConfig {
	return (&SubscriberConfig{
		Brokers:      []string{"localhost:9092"},
		GroupID:      "walletctl",
		Topics:       []string{"wallet.mutations"},
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		PollTimeout:  10 * time.Millisecond,
	}).MergeDefaults()
}

func testMessage(offset int64) *kafka.Message {
	topic := "wallet.mutations"
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 0, Offset: kafka.Offset(offset)},
		Value:          []byte(`{"resource":"transactions"}`),
	}
}

func TestSubscriber_HandleRetriesThenCommits(t *testing.T) {
	fc := newFakeConsumer()
	s := newSubscriber(zap.NewNop(), testSubscriberConfig(), fc)

	calls := 0
	err := s.handle(context.Background(), testMessage(7), func(_ context.Context, msg *Message) error {
		calls++
		if msg.Offset != 7 {
			t.Errorf("expected offset 7, got %d", msg.Offset)
		}
		if calls < 3 {
			return errors.New("backend busy")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on the last attempt, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if fc.commits() != 1 {
		t.Errorf("expected the message to be committed once, got %d", fc.commits())
	}
}

func TestSubscriber_HandleGivesUpWithoutCommit(t *testing.T) {
	fc := newFakeConsumer()
	s := newSubscriber(zap.NewNop(), testSubscriberConfig(), fc)

	errHandler := errors.New("bad event")
	calls := 0
	err := s.handle(context.Background(), testMessage(1), func(context.Context, *Message) error {
		calls++
		return errHandler
	})
	if !errors.Is(err, errHandler) {
		t.Errorf("expected handler error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected MaxRetries attempts, got %d", calls)
	}
	if fc.commits() != 0 {
		t.Errorf("expected no commit, got %d", fc.commits())
	}
}

func TestSubscriber_HandlePanicIsRetried(t *testing.T) {
	fc := newFakeConsumer()
	s := newSubscriber(zap.NewNop(), testSubscriberConfig(), fc)

	calls := 0
	err := s.handle(context.Background(), testMessage(2), func(context.Context, *Message) error {
		calls++
		if calls == 1 {
			panic("nil map")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected recovery and a successful retry, got %v", err)
	}
	if calls != 2 || fc.commits() != 1 {
		t.Errorf("expected 2 attempts and 1 commit, got %d and %d", calls, fc.commits())
	}

	err = s.handle(context.Background(), testMessage(3), func(context.Context, *Message) error {
		panic("always")
	})
	if !errors.Is(err, routine.ErrPanicRecovered) {
		t.Errorf("expected ErrPanicRecovered, got %v", err)
	}
}

func TestSubscriber_HandleCommitError(t *testing.T) {
	fc := newFakeConsumer()
	fc.commitErr = errors.New("coordinator not available")
	s := newSubscriber(zap.NewNop(), testSubscriberConfig(), fc)

	err := s.handle(context.Background(), testMessage(4), func(context.Context, *Message) error { return nil })
	if err == nil || !errors.Is(err, fc.commitErr) {
		t.Errorf("expected wrapped commit error, got %v", err)
	}
}

func TestSubscriber_StartAndClose(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	fc := newFakeConsumer()
	s := newSubscriber(zap.New(core), testSubscriberConfig(), fc)

	if err := s.Start(context.Background(), nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}

	received := make(chan int64, 2)
	var failOnce atomic.Bool
	handler := func(_ context.Context, msg *Message) error {
		if msg.Offset == 11 && failOnce.CompareAndSwap(false, true) {
			return errors.New("transient")
		}
		received <- msg.Offset
		return nil
	}
	if err := s.Start(context.Background(), handler); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background(), handler); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	fc.events <- testMessage(10)
	fc.events <- testMessage(11)
	for _, want := range []int64{10, 11} {
		select {
		case got := <-received:
			if got != want {
				t.Errorf("expected offset %d, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for offset %d", want)
		}
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("expected second Close to be a no-op, got %v", err)
	}
	if fc.commits() != 2 {
		t.Errorf("expected 2 commits, got %d", fc.commits())
	}
	fc.mu.Lock()
	closed := fc.closed
	fc.mu.Unlock()
	if !closed {
		t.Error("expected the consumer to be closed")
	}
	if err := s.Start(context.Background(), handler); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
	if recorded.FilterMessage("kafka subscriber closed").Len() != 1 {
		t.Error("expected close to be logged")
	}
}

func TestSubscriber_StopsOnAllBrokersDown(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	fc := newFakeConsumer()
	s := newSubscriber(zap.New(core), testSubscriberConfig(), fc)

	if err := s.Start(context.Background(), func(context.Context, *Message) error { return nil }); err != nil {
		t.Fatal(err)
	}
	fc.events <- kafka.NewError(kafka.ErrAllBrokersDown, "all brokers down", true)

	deadline := time.Now().Add(time.Second)
	for recorded.FilterMessage("kafka subscriber loop exited with error").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected the loop to exit")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
