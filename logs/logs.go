// Package logs builds the zap loggers of the notifier.
package logs

import (
	"fmt"

	"github.com/blendle/zapdriver"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger flavour.
type Config struct {
	// Format is one of "json", "console" or "stackdriver".
	Format string `yaml:"format"`

	// Level is a zap level name. Defaults to "info".
	Level string `yaml:"level"`

	// Development enables development settings.
	Development bool `yaml:"development"`
}

// NewLogger returns a production JSON logger at info level.
func NewLogger() (*zap.Logger, error) {
	return newLoggerFromConfig(zap.NewProductionConfig(), "")
}

// NewDevelopment returns a human friendly console logger at debug level.
func NewDevelopment() (*zap.Logger, error) {
	return newLoggerFromConfig(zap.NewDevelopmentConfig(), "")
}

// NewStackdriverDevelopment returns a new *zap.Logger that supports
// Google Stackdriver's structured logging.
// Logging is enabled at DebugLevel and above.
func NewStackdriverDevelopment(service string) (*zap.Logger, error) {
	return newLoggerFromConfig(zapdriver.NewDevelopmentConfig(), service)
}

// NewStackdriverProduction returns a new *zap.Logger that supports
// Google Stackdriver's structured logging.
// Logging is enabled at InfoLevel and above.
func NewStackdriverProduction(service string) (*zap.Logger, error) {
	return newLoggerFromConfig(zapdriver.NewProductionConfig(), service)
}

// New builds the logger described by cfg for service.
func New(cfg Config, service string) (*zap.Logger, error) {
	var zcfg zap.Config

	switch cfg.Format {
	case "stackdriver":
		zcfg = zapdriver.NewProductionConfig()
		if cfg.Development {
			zcfg = zapdriver.NewDevelopmentConfig()
		}

	case "console":
		zcfg = zap.NewDevelopmentConfig()

	case "", "json":
		zcfg = zap.NewProductionConfig()
		zcfg.Development = cfg.Development

	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse level: %w", err)
		}

		zcfg.Level = level
	}

	return newLoggerFromConfig(zcfg, service)
}

func newLoggerFromConfig(cfg zap.Config, service string) (*zap.Logger, error) {
	cfg.OutputPaths = []string{"stdout"}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if service != "" {
		cfg.InitialFields = map[string]interface{}{
			"service": service,
		}
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("config build: %w", err)
	}

	return log, nil
}
