// Package logger provides the leveled logging facility used throughout the
// installer. It wraps zap with two custom levels (SUCCESS and FAIL), colored
// console output, and an optional rotating JSON file sink. The orchestrator
// core receives a *Logger by injection so business logic stays free of
// direct console I/O and remains independently testable.
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Level defines the log level. Custom levels (SuccessLevel, FailLevel) are
// mapped onto zapcore levels and displayed distinctively by the console
// encoder.
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	// SuccessLevel marks completion of significant operations (green).
	SuccessLevel
	WarnLevel
	ErrorLevel
	// FailLevel logs the message and exits with status 1.
	FailLevel
)

// String returns a lowercase string representation of the Level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case SuccessLevel:
		return "success"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FailLevel:
		return "fail"
	default:
		return fmt.Sprintf("level(%d)", l)
	}
}

// CapitalString returns a capitalized string representation of the Level.
func (l Level) CapitalString() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case SuccessLevel:
		return "SUCCESS"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FailLevel:
		return "FAIL"
	default:
		return fmt.Sprintf("LEVEL(%d)", l)
	}
}

// ToZapLevel maps a Level to the closest zapcore.Level. Success rides on
// Info and Fail rides on Fatal; the console encoder restores the custom
// label from the field the wrapper attaches.
func (l Level) ToZapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel, SuccessLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FailLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// customLevelKey is the field key the wrapper uses to smuggle the custom
// level through zap to the console encoder.
const customLevelKey = "rangectl_level"

// Options configures logger construction.
type Options struct {
	ConsoleLevel Level
	ColorConsole bool
	FileOutput   bool
	LogFilePath  string
	FileLevel    Level
	// Rotation settings, only relevant when FileOutput is set.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultOptions logs INFO+ to the console without a file sink.
func DefaultOptions() Options {
	return Options{
		ConsoleLevel: InfoLevel,
		ColorConsole: true,
		FileOutput:   false,
		LogFilePath:  "rangectl.log",
		FileLevel:    DebugLevel,
		MaxSizeMB:    50,
		MaxBackups:   3,
		MaxAgeDays:   14,
	}
}

// Logger wraps a zap.SugaredLogger with the custom levels.
type Logger struct {
	sugar *zap.SugaredLogger
	opts  Options
}

var (
	globalLogger *Logger
	globalOnce   sync.Once
	globalMu     sync.RWMutex
)

// Init initializes the global logger. Safe to call more than once; later
// calls replace the global instance.
func Init(opts Options) {
	l, err := NewLogger(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return
	}
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// Get returns the global logger, initializing it with defaults on first use.
func Get() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}
	globalOnce.Do(func() { Init(DefaultOptions()) })
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// NewLogger builds an instance logger from opts.
func NewLogger(opts Options) (*Logger, error) {
	var cores []zapcore.Core

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleEnc := newConsoleEncoder(encCfg, opts.ColorConsole)
	cores = append(cores, zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stdout), opts.ConsoleLevel.ToZapLevel()))

	if opts.FileOutput {
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.LogFilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		})
		fileEnc := zapcore.NewJSONEncoder(encCfg)
		cores = append(cores, zapcore.NewCore(fileEnc, fileSink, opts.FileLevel.ToZapLevel()))
	}

	zl := zap.New(zapcore.NewTee(cores...))
	return &Logger{sugar: zl.Sugar(), opts: opts}, nil
}

func (l *Logger) logCustom(level Level, template string, args ...interface{}) {
	msg := fmt.Sprintf(template, args...)
	switch level {
	case SuccessLevel:
		l.sugar.Infow(msg, customLevelKey, SuccessLevel.String())
	case FailLevel:
		l.sugar.Errorw(msg, customLevelKey, FailLevel.String())
		_ = l.Sync()
		os.Exit(1)
	default:
		l.sugar.Infof(template, args...)
	}
}

func (l *Logger) Debugf(template string, args ...interface{}) {
	l.sugar.Debugf(template, args...)
}

func (l *Logger) Infof(template string, args ...interface{}) {
	l.sugar.Infof(template, args...)
}

func (l *Logger) Successf(template string, args ...interface{}) {
	l.logCustom(SuccessLevel, template, args...)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.sugar.Warnf(template, args...)
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.sugar.Errorf(template, args...)
}

func (l *Logger) Failf(template string, args ...interface{}) {
	l.logCustom(FailLevel, template, args...)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// With returns a child logger with the given structured context attached.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(args...), opts: l.opts}
}

// Package-level helpers operating on the global logger.

func Debug(template string, args ...interface{})   { Get().Debugf(template, args...) }
func Info(template string, args ...interface{})    { Get().Infof(template, args...) }
func Success(template string, args ...interface{}) { Get().Successf(template, args...) }
func Warn(template string, args ...interface{})    { Get().Warnf(template, args...) }
func Error(template string, args ...interface{})   { Get().Errorf(template, args...) }
func Fail(template string, args ...interface{})    { Get().Failf(template, args...) }

// SyncGlobal flushes the global logger.
func SyncGlobal() error {
	return Get().Sync()
}
