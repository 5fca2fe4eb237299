package logging

import (
	"go-candor/internal/config"

	"go.uber.org/zap"
)

// New builds the process logger from the logging section of the config.
func New(cfg *config.Config) (*zap.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Logging.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
