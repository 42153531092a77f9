package kafka

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed subscriber or publisher
	ErrClosed = errors.New("kafka: closed")
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("kafka: subscriber already started")
	// ErrNilHandler is returned by Start without a handler
	ErrNilHandler = errors.New("kafka: handler is nil")
	// ErrEmptyValue is returned by Publish for a message without a value
	ErrEmptyValue = errors.New("kafka: message value is empty")
)

// ErrInvalidConfig Kafka configuration error
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("kafka: invalid config: %s", msg)
}

// ErrConnection Kafka connection error
func ErrConnection(err error) error {
	return fmt.Errorf("kafka: connection failed: %w", err)
}

// ErrSubscribe subscribe error
func ErrSubscribe(topics []string, err error) error {
	return fmt.Errorf("kafka: subscribe to topics %v failed: %w", topics, err)
}

// ErrConsume consume message error
func ErrConsume(err error) error {
	return fmt.Errorf("kafka: consume message failed: %w", err)
}

// ErrCommit commit message error
func ErrCommit(err error) error {
	return fmt.Errorf("kafka: commit offsets failed: %w", err)
}

// ErrPublish publish error
func ErrPublish(topic string, err error) error {
	return fmt.Errorf("kafka: publish to %s failed: %w", topic, err)
}
