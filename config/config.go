// Package config loads walletkit settings from WALLET_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/balansai/walletkit/api"
	"github.com/balansai/walletkit/cache"
	"github.com/balansai/walletkit/kafka"
	"github.com/balansai/walletkit/logger"
	"github.com/caarlos0/env/v11"
)

// Config holds everything walletctl needs
type Config struct {
	APIBaseURL  string        `env:"WALLET_API_BASE_URL"  envDefault:"http://localhost:5000"`
	InitData    string        `env:"WALLET_INIT_DATA"`
	TestUserID  string        `env:"WALLET_TEST_USER_ID"`
	HTTPTimeout time.Duration `env:"WALLET_HTTP_TIMEOUT"  envDefault:"10s"`

	CacheTTL time.Duration `env:"WALLET_CACHE_TTL" envDefault:"30s"`

	LogLevel    string `env:"WALLET_LOG_LEVEL"    envDefault:"info"`
	LogEncoding string `env:"WALLET_LOG_ENCODING" envDefault:"console"`

	// WarmSpec schedules the warm chain; empty disables it
	WarmSpec    string   `env:"WALLET_WARM_SPEC"`
	WarmPeriods []string `env:"WALLET_WARM_PERIODS" envSeparator:"," envDefault:"week,month"`

	KafkaBrokers []string `env:"WALLET_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"WALLET_KAFKA_TOPIC"   envDefault:"wallet.mutations"`
	KafkaGroup   string   `env:"WALLET_KAFKA_GROUP"   envDefault:"walletctl"`
}

// Load reads the process environment
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return &cfg, nil
}

// LoadFrom reads environ instead of the process environment
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: WALLET_API_BASE_URL %q is not an absolute url", c.APIBaseURL)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: WALLET_HTTP_TIMEOUT must be positive, got %v", c.HTTPTimeout)
	}
	if err := c.Cache().Validate(); err != nil {
		return err
	}
	return c.Logger().Validate()
}

// KafkaEnabled reports whether mutation events should be exchanged
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Logger returns the logger configuration
func (c *Config) Logger() *logger.Config {
	return (&logger.Config{
		Level:    strings.ToLower(c.LogLevel),
		Encoding: c.LogEncoding,
	}).MergeDefaults()
}

// Cache returns the wallet cache configuration
func (c *Config) Cache() *cache.Config {
	return (&cache.Config{Name: "wallet", TTL: c.CacheTTL}).MergeDefaults()
}

// APIOptions returns client options; the logger is added by the caller
func (c *Config) APIOptions() []api.Option {
	return []api.Option{
		api.WithTimeout(c.HTTPTimeout),
		api.WithInitData(c.InitData),
		api.WithTestUserID(c.TestUserID),
	}
}

// Subscriber returns the mutation event subscriber configuration
func (c *Config) Subscriber() *kafka.SubscriberConfig {
	return (&kafka.SubscriberConfig{
		Brokers: c.KafkaBrokers,
		GroupID: c.KafkaGroup,
		Topics:  []string{c.KafkaTopic},
	}).MergeDefaults()
}

// Publisher returns the mutation event publisher configuration
func (c *Config) Publisher() *kafka.PublisherConfig {
	return (&kafka.PublisherConfig{
		Brokers:  c.KafkaBrokers,
		Topic:    c.KafkaTopic,
		ClientID: c.KafkaGroup,
	}).MergeDefaults()
}
