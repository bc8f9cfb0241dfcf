// Package logging wraps zerolog and fans every line out to registered sinks,
// so log output also reaches connected listeners without intercepting stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Sink receives every emitted log line. The broadcast hub registers itself
// as a sink so listeners see server logs for their session.
type Sink interface {
	EmitLog(sessionID, level, text string)
}

// Logger is the process-wide event logger.
type Logger struct {
	zl zerolog.Logger

	mu    sync.RWMutex
	sinks []Sink
}

// New constructs a Logger writing human-readable output to w.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    true,
	}
	return &Logger{zl: zerolog.New(cw).With().Timestamp().Logger()}
}

// AddSink registers an additional destination for log lines.
func (l *Logger) AddSink(s Sink) {
	if s == nil {
		return
	}
	l.mu.Lock()
	l.sinks = append(l.sinks, s)
	l.mu.Unlock()
}

func (l *Logger) emit(sessionID, level, text string) {
	l.mu.RLock()
	sinks := make([]Sink, len(l.sinks))
	copy(sinks, l.sinks)
	l.mu.RUnlock()
	for _, s := range sinks {
		s.EmitLog(sessionID, level, text)
	}
}

// Infof logs an informational line scoped to a session (empty id for global).
func (l *Logger) Infof(sessionID, format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	l.zl.Info().Str("session", sessionID).Msg(text)
	l.emit(sessionID, "info", text)
}

// Warnf logs a warning line.
func (l *Logger) Warnf(sessionID, format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	l.zl.Warn().Str("session", sessionID).Msg(text)
	l.emit(sessionID, "warn", text)
}

// Errorf logs an error line.
func (l *Logger) Errorf(sessionID, format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	l.zl.Error().Str("session", sessionID).Msg(text)
	l.emit(sessionID, "error", text)
}
