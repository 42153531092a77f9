package logger

import (
	"fmt"
	"slices"
	"strings"
)

var (
	validLevels    = []string{"debug", "info", "warn", "error"}
	validEncodings = []string{"json", "console"}
)

// Config is the configuration for the logger
type Config struct {
	// Level is one of debug, info, warn, error
	// default: "info"
	Level string `mapstructure:"level"`
	// Encoding is json or console
	// default: "console"
	Encoding string `mapstructure:"encoding"`
	// default: []string{"stderr"}
	OutputPaths []string `mapstructure:"output_paths"`
	// default: []string{"stderr"}
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// DefaultConfig returns the configuration used when none is provided.
// Output goes to stderr so command output on stdout stays clean.
func DefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Encoding:         "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// MergeDefaults returns a copy of c with empty fields filled from DefaultConfig
func (c *Config) MergeDefaults() *Config {
	out := *c
	def := DefaultConfig()
	if out.Level == "" {
		out.Level = def.Level
	}
	if out.Encoding == "" {
		out.Encoding = def.Encoding
	}
	if len(out.OutputPaths) == 0 {
		out.OutputPaths = def.OutputPaths
	}
	if len(out.ErrorOutputPaths) == 0 {
		out.ErrorOutputPaths = def.ErrorOutputPaths
	}
	return &out
}

// Validate validates the configuration for the logger
func (c *Config) Validate() error {
	if !slices.Contains(validLevels, strings.ToLower(c.Level)) {
		return ErrInvalidLevel(c.Level, fmt.Errorf("must be one of: %s", strings.Join(validLevels, ", ")))
	}
	if !slices.Contains(validEncodings, c.Encoding) {
		return ErrInvalidEncoding(c.Encoding)
	}
	return nil
}
