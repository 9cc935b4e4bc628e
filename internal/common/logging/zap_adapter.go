package logging

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAdapter is the zap-backed Logger.
type ZapAdapter struct {
	logger *zap.Logger
}

func NewZapLogger(config LogConfig) (Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.MillisDurationEncoder

	var encoder zapcore.Encoder
	if config.Format == FormatJSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), config.Level.zapLevel())
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	if config.Service != "" {
		logger = logger.With(zap.String("service", config.Service))
	}
	return &ZapAdapter{logger: logger}, nil
}

func (z *ZapAdapter) Debug(msg string, fields ...Field) { z.logger.Debug(msg, toZap(fields)...) }

func (z *ZapAdapter) Info(msg string, fields ...Field) { z.logger.Info(msg, toZap(fields)...) }

func (z *ZapAdapter) Warn(msg string, fields ...Field) { z.logger.Warn(msg, toZap(fields)...) }

func (z *ZapAdapter) Error(msg string, err error, fields ...Field) {
	zf := toZap(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	z.logger.Error(msg, zf...)
}

func (z *ZapAdapter) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return z
	}
	return &ZapAdapter{logger: z.logger.With(toZap(fields)...)}
}

// WithContext adds the request_id and client_id carried by ctx.
func (z *ZapAdapter) WithContext(ctx context.Context) Logger {
	var fields []Field
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, Field{"request_id", id})
	}
	if id := ClientIDFromContext(ctx); id != "" {
		fields = append(fields, Field{"client_id", id})
	}
	return z.WithFields(fields...)
}

func (z *ZapAdapter) Sync() error {
	return z.logger.Sync()
}

func toZap(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		switch v := f.Value.(type) {
		case string:
			out[i] = zap.String(f.Key, v)
		case int:
			out[i] = zap.Int(f.Key, v)
		case time.Duration:
			out[i] = zap.Duration(f.Key, v)
		case time.Time:
			out[i] = zap.Time(f.Key, v)
		case []string:
			out[i] = zap.Strings(f.Key, v)
		case error:
			out[i] = zap.NamedError(f.Key, v)
		default:
			out[i] = zap.Any(f.Key, v)
		}
	}
	return out
}
