package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

type LLMConfig struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContextSize int    `json:"context_size"`
}

type Config struct {
	Server struct {
		Host      string `json:"host"`
		Port      int    `json:"port"`
		Subpath   string `json:"subpath"`
		JWTSecret string `json:"jwtSecret"`
	} `json:"server"`
	Postgres struct {
		DSN string `json:"dsn"`
	} `json:"postgres"`
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	LLMs    []LLMConfig `json:"llms"`
	Logging struct {
		Level       string `json:"level"`
		Development bool   `json:"development"`
	} `json:"logging"`
	Case struct {
		CreateAfterMessages int `json:"create_after_messages"`
		LockTTLSeconds      int `json:"lock_ttl_seconds"`
	} `json:"case"`
	Plans struct {
		FreeDailyMessages int `json:"free_daily_messages"`
	} `json:"plans"`
	Breaker struct {
		FailureThreshold int `json:"failure_threshold"`
		OpenSeconds      int `json:"open_seconds"`
	} `json:"breaker"`
	Retention struct {
		SignalDays    int `json:"signal_days"`
		ScheduleHours int `json:"schedule_hours"`
	} `json:"retention"`
}

// LockTTL is how long a per-user case lock may be held.
func (c *Config) LockTTL() time.Duration {
	if c.Case.LockTTLSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Case.LockTTLSeconds) * time.Second
}

// SignalRetention is how long signal events are kept. Zero keeps them forever.
func (c *Config) SignalRetention() time.Duration {
	return time.Duration(c.Retention.SignalDays) * 24 * time.Hour
}

// RetentionInterval is how often old signal events are pruned.
func (c *Config) RetentionInterval() time.Duration {
	if c.Retention.ScheduleHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Retention.ScheduleHours) * time.Hour
}

// LogLevel parses logging.level, defaulting to info.
func (c *Config) LogLevel() (zapcore.Level, error) {
	if c.Logging.Level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(c.Logging.Level)
}

var (
	once   sync.Once
	cfg    *Config
	cfgErr error
)

// LoadConfig reads config.json from disk (singleton)
func LoadConfig(path string) (*Config, error) {
	once.Do(func() {
		raw, err := os.ReadFile(path)
		if err != nil {
			cfgErr = fmt.Errorf("failed to read config file: %w", err)
			return
		}
		var c Config
		if err := json.Unmarshal(raw, &c); err != nil {
			cfgErr = fmt.Errorf("invalid config format: %w", err)
			return
		}
		if err := c.validate(); err != nil {
			cfgErr = err
			return
		}
		cfg = &c
	})
	return cfg, cfgErr
}

func (c *Config) validate() error {
	if c.Server.JWTSecret == "" {
		return errors.New("jwtSecret must be set in config")
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}
	if c.Case.CreateAfterMessages < 0 {
		return errors.New("case.create_after_messages must not be negative")
	}
	if c.Retention.SignalDays < 0 {
		return errors.New("retention.signal_days must not be negative")
	}
	if c.Plans.FreeDailyMessages < 0 {
		return errors.New("plans.free_daily_messages must not be negative")
	}
	return nil
}

// GetConfig returns the loaded config (must call LoadConfig first)
func GetConfig() *Config {
	return cfg
}

// ResetConfigForTest resets the singleton state (for testing only)
func ResetConfigForTest() {
	once = sync.Once{}
	cfg = nil
	cfgErr = nil
}
