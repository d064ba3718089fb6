// Package logger is the repo-wide leveled logger. Sessions run with
// audio in the foreground, so by default everything lands in a log
// file rather than the terminal; verbose mode adds the per-utterance
// and per-transcription debug stream.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level selects how much the logger emits.
type Level int

const (
	// LevelOff silences the logger entirely.
	LevelOff Level = iota
	// LevelNormal emits info, warn, and error.
	LevelNormal
	// LevelVerbose adds the debug stream.
	LevelVerbose
)

// Logger fans formatted messages out to four prefixed streams sharing
// one writer. Safe for concurrent use; the level can change while
// sessions are running.
type Logger struct {
	mu      sync.RWMutex
	level   Level
	streams [4]*log.Logger
}

const (
	streamDebug = iota
	streamInfo
	streamWarn
	streamError
)

// New creates a logger at the given level. A nil writer falls back to
// os.Stderr.
func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}

	l := &Logger{level: level}
	for i, prefix := range [4]string{"[DBG] ", "[INF] ", "[WRN] ", "[ERR] "} {
		l.streams[i] = log.New(out, prefix, log.Ltime)
	}
	return l
}

// SetLevel changes the level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current level.
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// emit writes to one stream when the level allows. The calldepth
// accounts for the exported wrapper so file flags, when enabled,
// attribute lines to the caller.
func (l *Logger) emit(min Level, stream int, format string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.level >= min {
		l.streams[stream].Output(3, fmt.Sprintf(format, args...))
	}
}

// Debug logs at debug level, visible only in verbose mode.
func (l *Logger) Debug(format string, args ...any) {
	l.emit(LevelVerbose, streamDebug, format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...any) {
	l.emit(LevelNormal, streamInfo, format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...any) {
	l.emit(LevelNormal, streamWarn, format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...any) {
	l.emit(LevelNormal, streamError, format, args...)
}
