// Package monitoring holds the diagnostic logger shared by the compensation
// packages. Output is gated by a process-wide debug level so trace chatter
// from the numeric core can be switched on from configuration.
package monitoring

import (
	"log"
	"sync/atomic"
)

// Level orders diagnostic verbosity. Higher levels are chattier.
type Level int32

const (
	LevelOff   Level = 0
	LevelInfo  Level = 1
	LevelState Level = 3
	LevelStep  Level = 5
	LevelTrace Level = 6 // per-cycle lag compensation headers
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var debugLevel atomic.Int32

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebugLevel sets the maximum level emitted by Debugf.
func SetDebugLevel(l Level) {
	if l < LevelOff {
		l = LevelOff
	}
	debugLevel.Store(int32(l))
}

// DebugLevel returns the current debug level.
func DebugLevel() Level {
	return Level(debugLevel.Load())
}

// Show reports whether messages at level l are currently emitted.
func Show(l Level) bool {
	return l > LevelOff && l <= DebugLevel()
}

// Debugf logs through Logf when level l is enabled.
func Debugf(l Level, format string, v ...interface{}) {
	if !Show(l) {
		return
	}
	Logf(format, v...)
}

// Warnf logs a warning through Logf regardless of the debug level.
func Warnf(format string, v ...interface{}) {
	Logf("WARNING: "+format, v...)
}
