package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/balansai/walletkit/logger"
	"github.com/balansai/walletkit/routine"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// producer is the part of *kafka.Producer the publisher uses
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

type publisher struct {
	log    logger.Logger
	config *PublisherConfig
	p      producer
	runner routine.Runner

	mu     sync.RWMutex
	closed bool
}

// NewPublisher creates an asynchronous publisher; delivery failures are logged
func NewPublisher(log logger.Logger, config *PublisherConfig) (Publisher, error) {
	if config == nil {
		config = DefaultPublisherConfig()
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

	kp, err := kafka.NewProducer(config.BuildConfigMap())
	if err != nil {
		return nil, ErrConnection(err)
	}

	pub := newPublisher(log, config, kp)
	log.Info("kafka publisher initialized",
		zap.Strings("brokers", config.Brokers),
		zap.String("topic", config.Topic),
	)
	return pub, nil
}

func newPublisher(log logger.Logger, config *PublisherConfig, p producer) *publisher {
	pub := &publisher{
		log:    log,
		config: config,
		p:      p,
		runner: routine.New(log),
	}
	pub.runner.GoNamed("kafka-delivery-reports", pub.deliveryReports)
	return pub
}

// deliveryReports drains producer events until the producer is closed
func (pub *publisher) deliveryReports() {
	for e := range pub.p.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				pub.log.Error("failed to deliver message",
					zap.String("topic", topicOf(ev)),
					zap.Error(ev.TopicPartition.Error),
				)
				continue
			}
			pub.log.Debug("message delivered",
				zap.String("topic", topicOf(ev)),
				zap.Int32("partition", ev.TopicPartition.Partition),
				zap.Int64("offset", int64(ev.TopicPartition.Offset)),
			)
		case kafka.Error:
			pub.log.Error("kafka publisher error",
				zap.Int("code", int(ev.Code())),
				zap.String("error", ev.String()),
			)
		default:
			pub.log.Debug("received unknown event", zap.String("type", fmt.Sprintf("%T", ev)))
		}
	}
}

func (pub *publisher) Publish(ctx context.Context, msg *Message) error {
	if len(msg.Value) == 0 {
		return ErrEmptyValue
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pub.mu.RLock()
	defer pub.mu.RUnlock()
	if pub.closed {
		return ErrClosed
	}

	km := toKafka(msg, pub.config.Topic)
	if err := pub.p.Produce(km, nil); err != nil {
		return ErrPublish(*km.TopicPartition.Topic, err)
	}
	return nil
}

func (pub *publisher) Close() error {
	pub.mu.Lock()
	if pub.closed {
		pub.mu.Unlock()
		return nil
	}
	pub.closed = true
	pub.mu.Unlock()

	if remaining := pub.p.Flush(int(pub.config.FlushTimeout.Milliseconds())); remaining > 0 {
		pub.log.Warn("publisher closed with undelivered messages", zap.Int("remaining", remaining))
	}
	pub.p.Close()
	pub.runner.Wait()
	return nil
}
