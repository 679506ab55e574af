package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger appends timestamped lines to .charlock/logs/charlock.log so users
// can see which lock tier each task received after the host has moved on.
type Logger struct {
	file  *os.File
	sugar *zap.SugaredLogger
}

// FileName is the log file created inside the logs directory.
const FileName = "charlock.log"

// New creates (or reuses) logDir/charlock.log. Callers pass config.LogsDir().
func New(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderCfg.TimeKey = "ts"
	encoderCfg.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(f), zapcore.InfoLevel)
	return &Logger{file: f, sugar: zap.New(core).Sugar()}, nil
}

// Close flushes and releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.sugar.Sync()
	return l.file.Close()
}

// Printf writes a single timestamped line to the log file.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	l.sugar.Info(strings.TrimRight(line, "\n"))
}

// Errorf writes an error-level line.
func (l *Logger) Errorf(format string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}
