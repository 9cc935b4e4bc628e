package logging

import (
	"context"
	"fmt"
	"io"
	"os"
)

func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(DefaultLogConfig())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default logger: %v", err))
	}
	return logger
}

// InitGlobalLogger builds the process logger from LOG_LEVEL, LOG_FORMAT and
// LOG_FILE. Without LOG_FILE entries go to stdout.
func InitGlobalLogger() {
	config := DefaultLogConfig()

	logFile := os.Getenv("LOG_FILE")
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			panic(fmt.Sprintf("failed to open log file %s: %v", logFile, err))
		}
		config.Output = file
	}

	logger, err := NewZapLogger(config)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		Field{"level", config.Level.String()},
		Field{"format", string(config.Format)},
		Field{"log_file", logFile},
	)
}

// MustSync flushes buffered entries before exit.
func MustSync() {
	if z, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = z.Sync()
	}
}

func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

// Component returns the global logger tagged with a component name.
func Component(name string) Logger {
	return GetGlobalLogger().WithFields(Field{"component", name})
}

// Nop discards everything.
func Nop() Logger {
	logger, _ := NewZapLogger(LogConfig{Level: ErrorLevel + 1, Output: io.Discard})
	return logger
}

func Strings(key string, values []string) Field {
	return Field{Key: key, Value: values}
}

func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
