// Package logging sets up the application logger. The TUI owns the
// terminal, so all log output goes to a rotated file under the config
// directory rather than stdout/stderr.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a file-backed zap logger rooted at dir/logs/microx.log.
// When debug is true the level drops to Debug and callers are annotated.
func New(dir string, debug bool) (*zap.Logger, error) {
	logsDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, err
	}

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logsDir, "microx.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	})

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), writer, level)

	opts := []zap.Option{}
	if debug {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...), nil
}

// Nop returns a logger that discards everything. Used in tests and as a
// safe default when no logger was provided.
func Nop() *zap.Logger {
	return zap.NewNop()
}
