package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/balansai/walletkit/logger"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const (
	probeAttempts = 3
	probeDelay    = 2 * time.Second
	probeTimeout  = 10 * time.Second
)

// probeBrokers fails fast when none of the brokers answers a metadata request
func probeBrokers(log logger.Logger, brokers []string) error {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(brokers, ","),
		"request.timeout.ms": int(probeTimeout.Milliseconds()),
	}

	var admin *kafka.AdminClient
	var err error
	for i := 0; i < probeAttempts; i++ {
		if admin, err = kafka.NewAdminClient(configMap); err == nil {
			break
		}
		if i < probeAttempts-1 {
			log.Warn("failed to create kafka admin client, retrying",
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", probeAttempts),
			)
			time.Sleep(probeDelay)
		}
	}
	if err != nil {
		return ErrConnection(fmt.Errorf("admin client after %d attempts: %w", probeAttempts, err))
	}
	defer admin.Close()

	if _, err := admin.GetMetadata(nil, false, int(probeTimeout.Milliseconds())); err != nil {
		return ErrConnection(err)
	}

	log.Info("kafka brokers reachable", zap.Strings("brokers", brokers))
	return nil
}
