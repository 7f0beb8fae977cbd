// Package logger holds the process-wide zap logger.
package logger

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Modes accepted by Config.Mode.
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

// Config selects the encoder preset and minimum level.
type Config struct {
	Mode  string `json:"mode"  koanf:"mode"  yaml:"mode"`
	Level string `json:"level" koanf:"level" yaml:"level"`
}

var (
	logMu sync.RWMutex
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Init builds a logger from cfg and installs it as the process-wide logger.
func Init(cfg Config) error {
	var zc zap.Config
	switch cfg.Mode {
	case ModeProduction, "":
		zc = zap.NewProductionConfig()
	case ModeDevelopment:
		zc = zap.NewDevelopmentConfig()
	default:
		return errors.Errorf("unknown log mode %q", cfg.Mode)
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return errors.Wrap(err, "log level")
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}

	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := zc.Build()
	if err != nil {
		return errors.Wrap(err, "build logger")
	}
	Set(l)
	return nil
}

// InitProduction installs a JSON logger at info level.
func InitProduction() error {
	return Init(Config{Mode: ModeProduction})
}

// InitDevelopment installs a console logger at debug level.
func InitDevelopment() error {
	return Init(Config{Mode: ModeDevelopment})
}

// Set replaces the process-wide logger, flushing the previous one.
// zap.L() and zap.S() return the same instance afterwards.
func Set(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
	sugar = l.Sugar()
}

// Log returns the process-wide logger, never nil.
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	// zap's global, a no-op until something is installed.
	return zap.L()
}

// S returns the sugared process-wide logger, never nil.
func S() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	if sugar != nil {
		return sugar
	}
	return zap.S()
}

// Sync flushes buffered entries.
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}
