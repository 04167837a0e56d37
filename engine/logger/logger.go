// Package logger holds the zap logger shared by every engine package.
// By default nothing is logged; call SetLogger to enable output.
package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// SetLogger replaces the engine-wide logger. Passing nil restores the silent default.
// Safe for concurrent use.
//
// Parameters:
//   - l: the logger to install, or nil to disable logging
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// Log returns the current engine-wide logger.
//
// Returns:
//   - *zap.Logger: the active logger, never nil
func Log() *zap.Logger {
	return current.Load()
}

// Named returns a child of the current logger scoped to a subsystem name.
func Named(name string) *zap.Logger {
	return current.Load().Named(name)
}
