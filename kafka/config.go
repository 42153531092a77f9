package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// SubscriberConfig is the configuration for a Subscriber
type SubscriberConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	Topics  []string `mapstructure:"topics"`

	// Attempts per message before it is logged and skipped
	// default: 3
	MaxRetries int `mapstructure:"max_retries"`

	// Wait between attempts, doubled after each failure
	// default: 200ms
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	// "earliest" or "latest". Invalidation events are only useful while fresh.
	// default: "latest"
	AutoOffsetReset string `mapstructure:"auto_offset_reset"`

	// default: 30s
	SessionTimeout time.Duration `mapstructure:"session_timeout"`

	// default: 120s
	MaxPollInterval time.Duration `mapstructure:"max_poll_interval"`

	// How long one poll blocks; bounds how fast the loop notices cancellation
	// default: 500ms
	PollTimeout time.Duration `mapstructure:"poll_timeout"`

	// only PLAINTEXT is supported for now
	// default: "PLAINTEXT"
	SecurityProtocol string `mapstructure:"security_protocol"`

	// Probe the cluster metadata before subscribing
	ValidateBrokers bool `mapstructure:"validate_brokers"`

	Debug bool `mapstructure:"debug"`
}

// DefaultSubscriberConfig returns the defaults; Brokers, GroupID and Topics have none
func DefaultSubscriberConfig() *SubscriberConfig {
	return &SubscriberConfig{
		MaxRetries:       3,
		RetryBackoff:     200 * time.Millisecond,
		AutoOffsetReset:  "latest",
		SessionTimeout:   30 * time.Second,
		MaxPollInterval:  120 * time.Second,
		PollTimeout:      500 * time.Millisecond,
		SecurityProtocol: "PLAINTEXT",
	}
}

// MergeDefaults returns a copy of c with zero fields taken from DefaultSubscriberConfig
func (c *SubscriberConfig) MergeDefaults() *SubscriberConfig {
	out := *c
	def := DefaultSubscriberConfig()
	if out.MaxRetries == 0 {
		out.MaxRetries = def.MaxRetries
	}
	if out.RetryBackoff == 0 {
		out.RetryBackoff = def.RetryBackoff
	}
	if out.AutoOffsetReset == "" {
		out.AutoOffsetReset = def.AutoOffsetReset
	}
	if out.SessionTimeout == 0 {
		out.SessionTimeout = def.SessionTimeout
	}
	if out.MaxPollInterval == 0 {
		out.MaxPollInterval = def.MaxPollInterval
	}
	if out.PollTimeout == 0 {
		out.PollTimeout = def.PollTimeout
	}
	if out.SecurityProtocol == "" {
		out.SecurityProtocol = def.SecurityProtocol
	}
	return &out
}

// Validate checks the required fields and value ranges
func (c *SubscriberConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrInvalidConfig("brokers are required")
	}
	if c.GroupID == "" {
		return ErrInvalidConfig("group_id is required")
	}
	if len(c.Topics) == 0 {
		return ErrInvalidConfig("topics are required")
	}
	if c.MaxRetries < 1 {
		return ErrInvalidConfig("max_retries must be at least 1")
	}
	if c.AutoOffsetReset != "earliest" && c.AutoOffsetReset != "latest" {
		return ErrInvalidConfig(
			fmt.Sprintf("invalid auto_offset_reset: %s, must be either 'earliest' or 'latest'", c.AutoOffsetReset),
		)
	}
	if c.SessionTimeout <= 0 {
		return ErrInvalidConfig("session_timeout must be greater than 0")
	}
	if c.MaxPollInterval <= 0 {
		return ErrInvalidConfig("max_poll_interval must be greater than 0")
	}
	if c.PollTimeout <= 0 {
		return ErrInvalidConfig("poll_timeout must be greater than 0")
	}
	return nil
}

// BuildConfigMap returns the librdkafka settings; offsets are always committed manually
func (c *SubscriberConfig) BuildConfigMap() *kafka.ConfigMap {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":    strings.Join(c.Brokers, ","),
		"group.id":             c.GroupID,
		"auto.offset.reset":    strings.ToLower(c.AutoOffsetReset),
		"enable.auto.commit":   false,
		"session.timeout.ms":   int(c.SessionTimeout.Milliseconds()),
		"max.poll.interval.ms": int(c.MaxPollInterval.Milliseconds()),
		"security.protocol":    c.SecurityProtocol,
	}
	if c.Debug {
		_ = configMap.SetKey("debug", "consumer,cgrp,topic,fetch")
	}
	return configMap
}

// PublisherConfig is the configuration for a Publisher
type PublisherConfig struct {
	Brokers []string `mapstructure:"brokers"`

	// Topic used for messages that do not name one
	Topic string `mapstructure:"topic"`

	// Optional: identifies this process in broker logs
	ClientID string `mapstructure:"client_id"`

	// "all", "1" or "0"
	// default: "all"
	Acks string `mapstructure:"acks"`

	// none, gzip, snappy, lz4, zstd
	// default: "none"
	Compression string `mapstructure:"compression"`

	// default: 0 (send immediately)
	LingerMs int `mapstructure:"linger_ms"`

	// default: 3
	MaxRetries int `mapstructure:"max_retries"`

	// How long Close waits for queued messages
	// default: 5s
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`

	// default: "PLAINTEXT"
	SecurityProtocol string `mapstructure:"security_protocol"`

	ValidateBrokers bool `mapstructure:"validate_brokers"`
}

// DefaultPublisherConfig returns the defaults; Brokers and Topic have none
func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{
		Acks:             "all",
		Compression:      "none",
		MaxRetries:       3,
		FlushTimeout:     5 * time.Second,
		SecurityProtocol: "PLAINTEXT",
	}
}

// MergeDefaults returns a copy of p with zero fields taken from DefaultPublisherConfig
func (p *PublisherConfig) MergeDefaults() *PublisherConfig {
	out := *p
	def := DefaultPublisherConfig()
	if out.Acks == "" {
		out.Acks = def.Acks
	}
	if out.Compression == "" {
		out.Compression = def.Compression
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = def.MaxRetries
	}
	if out.FlushTimeout == 0 {
		out.FlushTimeout = def.FlushTimeout
	}
	if out.SecurityProtocol == "" {
		out.SecurityProtocol = def.SecurityProtocol
	}
	return &out
}

// Validate checks the required fields and value ranges
func (p *PublisherConfig) Validate() error {
	if len(p.Brokers) == 0 {
		return ErrInvalidConfig("brokers are required")
	}
	if p.Topic == "" {
		return ErrInvalidConfig("topic is required")
	}
	switch strings.ToLower(p.Acks) {
	case "all", "-1", "1", "0":
	default:
		return ErrInvalidConfig(fmt.Sprintf("invalid acks: %s", p.Acks))
	}
	if p.FlushTimeout <= 0 {
		return ErrInvalidConfig("flush_timeout must be greater than 0")
	}
	return nil
}

// BuildConfigMap returns the librdkafka producer settings
func (p *PublisherConfig) BuildConfigMap() *kafka.ConfigMap {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(p.Brokers, ","),
		"compression.type":  strings.ToLower(p.Compression),
		"acks":              strings.ToLower(p.Acks),
		"linger.ms":         p.LingerMs,
		"retries":           p.MaxRetries,
		"security.protocol": p.SecurityProtocol,
	}
	if p.ClientID != "" {
		_ = configMap.SetKey("client.id", p.ClientID)
	}
	return configMap
}
