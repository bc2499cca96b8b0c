// Package logging builds the process logger: a colored console on stderr
// plus an optional JSON log file with size-based rotation.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the log file.
const (
	MaxSizeMB  = 5
	MaxBackups = 2
)

// Options configures New.
type Options struct {
	// Path is the log file. Empty disables file logging.
	Path string
	// Verbose lowers both sinks to DEBUG.
	Verbose bool
	// Quiet raises the console to WARN, e.g. while a progress bar owns
	// the terminal. The file keeps INFO.
	Quiet bool
	// Console overrides the console writer; defaults to stderr.
	Console io.Writer
}

// New builds the logger. The returned close function syncs the logger and
// closes the log file.
func New(opts Options) (*zap.Logger, func(), error) {
	base := zapcore.InfoLevel
	if opts.Verbose {
		base = zapcore.DebugLevel
	}
	consoleLevel := base
	if opts.Quiet && consoleLevel < zapcore.WarnLevel {
		consoleLevel = zapcore.WarnLevel
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if console != os.Stderr {
		consoleEnc.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(zapcore.AddSync(console)), consoleLevel),
	}

	var rotator *lumberjack.Logger
	if opts.Path != "" {
		if dir := filepath.Dir(opts.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create log dir: %w", err)
			}
		}
		rotator = &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
		}
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(rotator), base))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	closeFn := func() {
		_ = logger.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return logger, closeFn, nil
}
