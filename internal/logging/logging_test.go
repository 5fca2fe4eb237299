package logging

import (
	"testing"

	"go-candor/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Level(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logging.Level = "warn"
	log, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_Development(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logging.Development = true
	log, err := New(cfg)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_BadLevel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logging.Level = "chatty"
	_, err := New(cfg)
	assert.Error(t, err)
}
