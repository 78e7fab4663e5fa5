package logger

import (
	"log"

	"examgrade/internal/platform/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger: JSON in release mode, colored console
// output otherwise.
func New() *zap.Logger {
	var logger *zap.Logger
	var err error
	if config.AppConfig.Release {
		logger, err = zap.NewProduction()
	} else {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err = cfg.Build()
	}
	if err != nil {
		log.Fatalln("init logger failed ", err)
	}
	return logger
}
