// Package logging builds the zap loggers used across clusterplane and carries
// request-scoped loggers through context.Context.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environment selects the log encoding.
type Environment string

const (
	// EnvironmentProduction writes JSON lines.
	EnvironmentProduction Environment = "production"

	// EnvironmentDevelopment writes colored console output.
	EnvironmentDevelopment Environment = "development"
)

// Config holds the logger settings read from the service configuration.
type Config struct {
	// Level is the minimum enabled level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Environment picks JSON (production) or console (development) output
	Environment Environment `yaml:"environment"`

	// OutputPaths are URLs or file paths for log output
	OutputPaths []string `yaml:"output_paths"`

	// ErrorOutputPaths receive the logger's own errors
	ErrorOutputPaths []string `yaml:"error_output_paths"`

	// DisableSampling logs every entry instead of sampling bursts
	DisableSampling bool `yaml:"disable_sampling"`
}

// DefaultConfig returns production JSON logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:            "info",
		Environment:      EnvironmentProduction,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// Validate checks the level and environment.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	switch c.Environment {
	case EnvironmentProduction, EnvironmentDevelopment:
	default:
		return fmt.Errorf("invalid log environment %q, expecting production or development", c.Environment)
	}
	return nil
}

// New builds a logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := zapcore.ParseLevel(cfg.Level)

	zapConfig := zap.NewProductionConfig()
	if cfg.Environment == EnvironmentDevelopment {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zapConfig.OutputPaths = cfg.OutputPaths
	}
	if len(cfg.ErrorOutputPaths) > 0 {
		zapConfig.ErrorOutputPaths = cfg.ErrorOutputPaths
	}
	if cfg.DisableSampling {
		zapConfig.Sampling = nil
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(zap.String(FieldService, "clusterplane")), nil
}

// MustNew builds a logger and panics on error. Only for process startup.
func MustNew(cfg Config) *zap.Logger {
	logger, err := New(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	return logger
}
