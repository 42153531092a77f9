package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

func TestMessageConversion(t *testing.T) {
	topic := "wallet.mutations"
	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 2, Offset: 17},
		Key:            []byte("42"),
		Value:          []byte(`{"resource":"debts"}`),
		Headers:        []kafka.Header{{Key: "source", Value: []byte("bot")}},
	}

	msg := fromKafka(km)
	if msg.Topic != topic || msg.Partition != 2 || msg.Offset != 17 {
		t.Errorf("unexpected position %s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if string(msg.Header("source")) != "bot" {
		t.Errorf("expected source header bot, got %q", msg.Header("source"))
	}
	if msg.Header("missing") != nil {
		t.Error("expected nil for a missing header")
	}

	back := toKafka(&Message{Value: msg.Value, Headers: msg.Headers}, "fallback")
	if *back.TopicPartition.Topic != "fallback" {
		t.Errorf("expected default topic, got %s", *back.TopicPartition.Topic)
	}
	if back.TopicPartition.Partition != kafka.PartitionAny {
		t.Errorf("expected any partition, got %d", back.TopicPartition.Partition)
	}
	if len(back.Headers) != 1 {
		t.Errorf("expected headers to be copied, got %d", len(back.Headers))
	}
}

func TestRetry(t *testing.T) {
	errTransient := errors.New("transient")

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Errorf("expected success on third call, got err=%v calls=%d", err, calls)
		}
	})

	t.Run("returns last error", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 2, time.Millisecond, func() error {
			calls++
			return errTransient
		})
		if !errors.Is(err, errTransient) || calls != 2 {
			t.Errorf("expected last error after 2 calls, got err=%v calls=%d", err, calls)
		}
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := retry(ctx, 5, time.Hour, func() error {
			calls++
			return errTransient
		})
		if !errors.Is(err, errTransient) || calls != 1 {
			t.Errorf("expected a single attempt, got err=%v calls=%d", err, calls)
		}
	})
}
