// Package logging builds the zap loggers used by the CLI, the Pulumi program
// and the health reporter Lambda.
package logging

import (
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environment selects the log encoding.
type Environment string

const (
	// EnvironmentProduction writes JSON, suited to CloudWatch Logs.
	EnvironmentProduction Environment = "production"

	// EnvironmentDevelopment writes human-readable console output.
	EnvironmentDevelopment Environment = "development"
)

// Standard field names.
const (
	FieldNodeID   = "node_id"
	FieldKind     = "kind"
	FieldStack    = "stack"
	FieldResource = "resource"
)

// Config holds the configuration for the logger.
type Config struct {
	// Level is the minimum enabled logging level (debug, info, warn, error).
	Level string

	Environment Environment

	// OutputPaths is a list of URLs or file paths to write logging output to.
	OutputPaths []string
}

// DefaultConfig logs at info level to stderr in console format. Stdout is
// left to command output.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Environment: EnvironmentDevelopment,
		OutputPaths: []string{"stderr"},
	}
}

// NewLogger creates a zap logger from cfg.
func NewLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Environment == EnvironmentProduction {
		encoderConfig = zap.NewProductionEncoderConfig()
	} else {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Environment == EnvironmentDevelopment,
		DisableStacktrace: true,
		Encoding:          encodingFromEnvironment(cfg.Environment),
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return logger, nil
}

// ParseEnvironment maps a free-form name to an Environment. Anything other
// than "production" or "prod" is development.
func ParseEnvironment(name string) Environment {
	switch strings.ToLower(name) {
	case "production", "prod":
		return EnvironmentProduction
	default:
		return EnvironmentDevelopment
	}
}

func encodingFromEnvironment(env Environment) string {
	if env == EnvironmentProduction {
		return "json"
	}
	return "console"
}
