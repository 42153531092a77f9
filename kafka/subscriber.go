package kafka

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/balansai/walletkit/logger"
	"github.com/balansai/walletkit/routine"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// consumer is the part of *kafka.Consumer the subscriber uses
type consumer interface {
	Poll(timeoutMs int) kafka.Event
	CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
	Close() error
}

type subscriber struct {
	log    logger.Logger
	config *SubscriberConfig
	c      consumer
	runner routine.Runner

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	closed  atomic.Bool
}

// NewSubscriber connects a consumer group member and subscribes to the configured topics
func NewSubscriber(log logger.Logger, config *SubscriberConfig) (Subscriber, error) {
	if config == nil {
		config = DefaultSubscriberConfig()
	} else {
		config = config.MergeDefaults()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log = logger.Named(logger.OrDefault(log), "kafka")
	if config.ValidateBrokers {
		if err := probeBrokers(log, config.Brokers); err != nil {
			return nil, err
		}
	}

	kc, err := kafka.NewConsumer(config.BuildConfigMap())
	if err != nil {
		return nil, ErrConnection(err)
	}
	if err := kc.SubscribeTopics(config.Topics, nil); err != nil {
		_ = kc.Close()
		return nil, ErrSubscribe(config.Topics, err)
	}

	return newSubscriber(log, config, kc), nil
}

func newSubscriber(log logger.Logger, config *SubscriberConfig, c consumer) *subscriber {
	return &subscriber{
		log:    log,
		config: config,
		c:      c,
		runner: routine.New(log),
	}
}

func (s *subscriber) Start(ctx context.Context, handler Handler) error {
	if handler == nil {
		return ErrNilHandler
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.runner.GoNamedWithContext(ctx, "kafka-subscriber", func(ctx context.Context) {
		if err := s.consumeLoop(ctx, handler); err != nil {
			s.log.Error("kafka subscriber loop exited with error",
				zap.String("group_id", s.config.GroupID),
				zap.Error(err),
			)
		}
	})

	s.log.Info("kafka subscriber started",
		zap.String("group_id", s.config.GroupID),
		zap.Strings("topics", s.config.Topics),
	)
	return nil
}

func (s *subscriber) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	// the loop must be out of Poll before the consumer is closed
	s.runner.Wait()
	if err := s.c.Close(); err != nil {
		return ErrConnection(err)
	}
	s.log.Info("kafka subscriber closed", zap.String("group_id", s.config.GroupID))
	return nil
}

func (s *subscriber) consumeLoop(ctx context.Context, handler Handler) error {
	pollMs := int(s.config.PollTimeout.Milliseconds())
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ev := s.c.Poll(pollMs)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if err := s.handle(ctx, e, handler); err != nil {
				s.log.Error("kafka subscriber handle message failed",
					zap.String("topic", topicOf(e)),
					zap.Int32("partition", e.TopicPartition.Partition),
					zap.Int64("offset", int64(e.TopicPartition.Offset)),
					zap.Error(err),
				)
			}
		case kafka.Error:
			s.log.Error("kafka subscriber error", zap.Int("code", int(e.Code())), zap.String("error", e.String()))
			if e.Code() == kafka.ErrAllBrokersDown {
				return ErrConsume(e)
			}
		case kafka.OffsetsCommitted:
			if e.Error != nil {
				s.log.Error("failed to commit offsets", zap.Error(e.Error))
			}
		default:
			s.log.Debug("received unknown event", zap.String("type", fmt.Sprintf("%T", e)))
		}
	}
}

func (s *subscriber) handle(ctx context.Context, km *kafka.Message, handler Handler) error {
	start := time.Now()
	msg := fromKafka(km)

	err := retry(ctx, s.config.MaxRetries, s.config.RetryBackoff, func() (err error) {
		if perr := routine.Call(s.log, "kafka-handler", func() { err = handler(ctx, msg) }); perr != nil {
			return perr
		}
		return err
	})
	if err != nil {
		return err
	}

	if _, err := s.c.CommitMessage(km); err != nil {
		return ErrCommit(err)
	}

	s.log.Debug("kafka subscriber processed message",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func topicOf(km *kafka.Message) string {
	if km.TopicPartition.Topic == nil {
		return ""
	}
	return *km.TopicPartition.Topic
}
