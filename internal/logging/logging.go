// Package logging builds the zap logger shared by every component.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, encoding and destinations.
type Config struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format      string   `yaml:"format" env:"FORMAT"`
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// DefaultConfig logs warnings and above to stderr, so one-shot commands
// keep stdout for their own output.
func DefaultConfig() Config {
	return Config{
		Level:       "warn",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	}
}

// ParseLevel maps a level name to zap, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	var enc zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		enc = zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
		encoding = "console"
	} else {
		enc = zap.NewProductionEncoderConfig()
	}
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zc := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(cfg.Level)),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    enc,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	return zc.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}
