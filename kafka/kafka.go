// Package kafka carries wallet mutation events between processes that share one backend.
//
// A Subscriber runs a single consume loop with retries and manual commits;
// a Publisher sends asynchronously and logs delivery reports.
package kafka

import (
	"context"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Message is a transport-neutral kafka record
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []Header
	Timestamp time.Time
}

// Header is a kafka record header
type Header struct {
	Key   string
	Value []byte
}

// Header returns the value of the first header named k
func (m *Message) Header(k string) []byte {
	for _, h := range m.Headers {
		if h.Key == k {
			return h.Value
		}
	}
	return nil
}

// Handler processes one message. A returned error is retried up to the configured limit.
type Handler func(ctx context.Context, msg *Message) error

// Subscriber consumes the configured topics
type Subscriber interface {
	// Start runs the consume loop in the background until ctx is done or Close is called
	Start(ctx context.Context, handler Handler) error
	Close() error
}

// Publisher sends messages to a topic
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
	Close() error
}

func fromKafka(km *kafka.Message) *Message {
	msg := &Message{
		Partition: km.TopicPartition.Partition,
		Offset:    int64(km.TopicPartition.Offset),
		Key:       km.Key,
		Value:     km.Value,
		Timestamp: km.Timestamp,
		Headers:   make([]Header, len(km.Headers)),
	}
	if km.TopicPartition.Topic != nil {
		msg.Topic = *km.TopicPartition.Topic
	}
	for i, h := range km.Headers {
		msg.Headers[i] = Header{Key: h.Key, Value: h.Value}
	}
	return msg
}

func toKafka(msg *Message, defaultTopic string) *kafka.Message {
	topic := msg.Topic
	if topic == "" {
		topic = defaultTopic
	}
	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            msg.Key,
		Value:          msg.Value,
	}
	for _, h := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: h.Key, Value: h.Value})
	}
	return km
}
