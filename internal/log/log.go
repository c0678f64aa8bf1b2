// Package log builds the zap logger flowlens uses everywhere else in the
// module. Every component takes a *zap.Logger by constructor injection;
// nothing in this repo reaches for a global logger.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how the process logger is built.
type Config struct {
	// Level is one of "debug", "info", "warn", "error" (spec §6.6 log_level).
	Level string
	// JSON selects the JSON encoder instead of the console encoder; daemons
	// running under a log collector want JSON, an interactive terminal wants
	// console.
	JSON bool
}

// New builds a *zap.Logger from cfg. The returned AtomicLevel can be handed
// to ChangeLevel later so a config reload can raise or lower verbosity
// without restarting the process.
func New(cfg Config) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}

	atom := zap.NewAtomicLevelAt(level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if cfg.JSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), atom)

	opts := []zap.Option{zap.AddCaller()}
	if level <= zapcore.DebugLevel {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(core, opts...), atom, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q: want debug|info|warn|error", s)
	}
}

// ChangeLevel atomically updates the logger's minimum level, used when a
// config reload (internal/config's fsnotify watch) changes log_level.
func ChangeLevel(atom zap.AtomicLevel, levelStr string) error {
	level, err := parseLevel(levelStr)
	if err != nil {
		return err
	}
	atom.SetLevel(level)
	return nil
}
