// Package logging is the gateway's structured logger: a small Logger
// interface backed by zap, with request and client IDs carried in context.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = map[LogLevel]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// zapLevel maps l onto zap. Levels above ErrorLevel silence everything but
// fatal entries.
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	}
	return zapcore.FatalLevel
}

// ParseLevel reads LOG_LEVEL values. Unknown values mean info.
func ParseLevel(s string) LogLevel {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "WARNING" {
		return WarnLevel
	}
	for level, name := range levelNames {
		if name == s {
			return level
		}
	}
	return InfoLevel
}

// Field is one structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// Format selects the zap encoder.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

type LogConfig struct {
	Level  LogLevel
	Format Format
	Output io.Writer
	// Service is added to every entry when set.
	Service string
}

// DefaultLogConfig reads LOG_LEVEL and LOG_FORMAT.
func DefaultLogConfig() LogConfig {
	format := FormatConsole
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), string(FormatJSON)) {
		format = FormatJSON
	}
	return LogConfig{
		Level:   ParseLevel(os.Getenv("LOG_LEVEL")),
		Format:  format,
		Service: "api-gateway",
	}
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger
	globalOnce   sync.Once
)

func SetGlobalLogger(logger Logger) {
	globalOnce.Do(func() {})
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger returns the process logger, building the default one on
// first use.
func GetGlobalLogger() Logger {
	globalOnce.Do(func() { globalLogger = NewDefaultLogger() })
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

func Debug(msg string, fields ...Field) { GetGlobalLogger().Debug(msg, fields...) }

func Info(msg string, fields ...Field) { GetGlobalLogger().Info(msg, fields...) }

func Warn(msg string, fields ...Field) { GetGlobalLogger().Warn(msg, fields...) }

func Error(msg string, err error, fields ...Field) { GetGlobalLogger().Error(msg, err, fields...) }
