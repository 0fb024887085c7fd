package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Release mode logs JSON at info level by
// default; otherwise a console logger at debug level is used.
func New(release bool, level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	lvl := zapcore.DebugLevel
	if release {
		cfg = zap.NewProductionConfig()
		lvl = zapcore.InfoLevel
	}

	if strings.TrimSpace(level) != "" {
		if err := lvl.Set(level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}
