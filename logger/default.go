package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger
)

// SetDefault installs l as the logger returned by Default
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default returns the logger installed by New or SetDefault.
// Until one is installed it returns a no-op logger, so libraries stay silent by default.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if defaultLogger == nil {
		return zap.NewNop()
	}
	return defaultLogger
}

// OrDefault returns l, or Default when l is nil
func OrDefault(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}
