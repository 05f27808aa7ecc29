// Package logging provides the structured logger used by the noise
// demo CLI (cmd/noise-handshake).
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(input string) Level {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger wraps a logrus.Entry so call sites keep the teacher's
// fields-map-per-call shape instead of logrus's variadic WithFields chaining.
type Logger struct {
	mu     sync.Mutex
	base   *logrus.Logger
	entry  *logrus.Entry
	fields logrus.Fields
}

func New(level Level, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	base := logrus.New()
	base.SetOutput(output)
	base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000000000Z07:00"})
	base.SetLevel(level.logrusLevel())
	return &Logger{
		base:   base,
		entry:  logrus.NewEntry(base),
		fields: logrus.Fields{},
	}
}

func (l *Logger) With(fields map[string]interface{}) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{
		base:   l.base,
		entry:  l.base.WithFields(merged),
		fields: merged,
	}
}

func (l *Logger) logf(level logrus.Level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.entry
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Log(level, msg)
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.logf(logrus.DebugLevel, msg, fields)
}

func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.logf(logrus.InfoLevel, msg, fields)
}

func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.logf(logrus.WarnLevel, msg, fields)
}

func (l *Logger) Error(msg string, fields map[string]interface{}) {
	l.logf(logrus.ErrorLevel, msg, fields)
}

func (l *Logger) SetLevel(level Level) {
	l.base.SetLevel(level.logrusLevel())
}
