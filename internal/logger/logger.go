package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/manicko/mko-birth-reminder-bot/internal/config"
)

func New(cfg config.Logging) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "json"
	if cfg.Encoding == "console" {
		zc.Encoding = "console"
	}
	switch cfg.Level {
	case "debug":
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zc.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	default:
		zc.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
