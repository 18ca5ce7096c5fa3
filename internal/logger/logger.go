package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"pettracker/internal/config"
)

// Level file names inside the log directory.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled printf-style logging to the console and to one
// rotating file per level.
type Logger struct {
	sugar  *zap.SugaredLogger
	base   *zap.Logger
	logDir string
	files  map[string]*lumberjack.Logger
}

// NewLogger creates a Logger writing into cfg.LogDirectory.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	files := map[string]*lumberjack.Logger{}
	for _, name := range []string{InfoFile, WarningFile, ErrorFile} {
		files[name] = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDirectory, name),
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
		}
	}

	consoleLevel := zapcore.InfoLevel
	if strings.EqualFold(cfg.LogLevel, "debug") {
		consoleLevel = zapcore.DebugLevel
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)
	fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	only := func(lvl zapcore.Level) zap.LevelEnablerFunc {
		return func(l zapcore.Level) bool { return l == lvl }
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= consoleLevel && l < zapcore.ErrorLevel
		})),
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= zapcore.ErrorLevel
		})),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(files[InfoFile]), only(zapcore.InfoLevel)),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(files[WarningFile]), only(zapcore.WarnLevel)),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(files[ErrorFile]), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= zapcore.ErrorLevel
		})),
	)

	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{
		sugar:  base.Sugar(),
		base:   base,
		logDir: cfg.LogDirectory,
		files:  files,
	}, nil
}

// New wraps an existing zap logger. The result has no level files.
func New(base *zap.Logger) *Logger {
	base = base.WithOptions(zap.AddCallerSkip(1))
	return &Logger{sugar: base.Sugar(), base: base}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return New(zap.NewNop())
}

// Named returns a child logger whose entries carry the given name.
func (l *Logger) Named(name string) *Logger {
	child := *l
	child.base = l.base.Named(name)
	child.sugar = child.base.Sugar()
	return &child
}

// With returns a child logger with structured key/value fields attached.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	child := *l
	child.sugar = l.sugar.With(keysAndValues...)
	child.base = child.sugar.Desugar()
	return &child
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.base.WithOptions(zap.AddCallerSkip(-1))
}

// Debug writes a formatted debug-level entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Info writes a formatted info-level entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warning writes a formatted warning-level entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Error writes a formatted error-level entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// LogFile returns the path of a level file ("info", "warning" or "error").
func (l *Logger) LogFile(level string) (string, error) {
	name, err := levelFile(level)
	if err != nil {
		return "", err
	}
	if l.logDir == "" {
		return "", fmt.Errorf("logger has no log directory")
	}
	return filepath.Join(l.logDir, name), nil
}

// RotateLogs closes the current file for the level and starts a new one.
func (l *Logger) RotateLogs(level string) error {
	name, err := levelFile(level)
	if err != nil {
		return err
	}
	f, ok := l.files[name]
	if !ok {
		return fmt.Errorf("logger has no %s", name)
	}
	if err := f.Rotate(); err != nil {
		return fmt.Errorf("failed to rotate %s: %w", name, err)
	}
	l.Info("Log file %s has been rotated", name)
	return nil
}

// Sync flushes buffered entries and closes the level files.
func (l *Logger) Sync() error {
	err := l.base.Sync()
	for _, f := range l.files {
		f.Close()
	}
	// stdout/stderr return EINVAL on sync for terminals and pipes.
	if err != nil && strings.Contains(err.Error(), "invalid argument") {
		return nil
	}
	return err
}

func levelFile(level string) (string, error) {
	switch strings.ToLower(level) {
	case "info":
		return InfoFile, nil
	case "warning", "warn":
		return WarningFile, nil
	case "error":
		return ErrorFile, nil
	}
	return "", fmt.Errorf("unknown log level %q", level)
}
