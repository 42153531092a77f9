package cache

import "time"

const (
	// DefaultTTL is how long a fetched value is served without a background refresh
	DefaultTTL = 30 * time.Second

	defaultName         = "default"
	defaultNotifyBuffer = 16
)

// Config holds configuration for a read-through cache
type Config struct {
	// Name identifies the cache in logs
	// default: "default"
	Name string `mapstructure:"name"`
	// TTL applies to every key unless a read passes WithTTL
	// default: 30s
	TTL time.Duration `mapstructure:"ttl"`
	// NotifyBuffer is the initial capacity of the listener dispatch queue; the queue grows past it
	// default: 16
	NotifyBuffer int `mapstructure:"notify_buffer"`
}

// DefaultConfig returns the configuration used when none is provided
func DefaultConfig() *Config {
	return &Config{
		Name:         defaultName,
		TTL:          DefaultTTL,
		NotifyBuffer: defaultNotifyBuffer,
	}
}

// MergeDefaults returns a copy of c with zero fields taken from DefaultConfig
func (c *Config) MergeDefaults() *Config {
	out := *c
	def := DefaultConfig()
	if out.Name == "" {
		out.Name = def.Name
	}
	if out.TTL == 0 {
		out.TTL = def.TTL
	}
	if out.NotifyBuffer == 0 {
		out.NotifyBuffer = def.NotifyBuffer
	}
	return &out
}

// Validate checks that all fields hold usable values
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrInvalidName(c.Name)
	}
	if c.TTL <= 0 {
		return ErrInvalidTTL(c.TTL)
	}
	if c.NotifyBuffer < 0 {
		return ErrInvalidNotifyBuffer(c.NotifyBuffer)
	}
	return nil
}
