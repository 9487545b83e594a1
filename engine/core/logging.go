package core

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const defaultPrefix = "Anima 🎨 "

// Logger is the structured logger handed to every engine component.
type Logger struct {
	*log.Logger
}

type LoggerOptions struct {
	Level  string
	Prefix string
	Output io.Writer
}

func NewLogger(opts LoggerOptions) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	l := log.NewWithOptions(out, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          prefix,
	})
	l.SetLevel(ParseLevel(opts.Level))
	return &Logger{l}
}

// NewDiscardLogger returns a logger that drops every line. Used by tests.
func NewDiscardLogger() *Logger {
	return NewLogger(LoggerOptions{Output: io.Discard, Level: "error"})
}

// ParseLevel maps a config string to a log level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.Helper()
	l.Logger.Debugf(msg, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.Helper()
	l.Logger.Infof(msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.Helper()
	l.Logger.Warnf(msg, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.Helper()
	l.Logger.Errorf(msg, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.Helper()
	l.Logger.Fatalf(msg, args...)
}

var (
	once          sync.Once
	defaultLogger *Logger
)

// DefaultLogger is used by code paths that have no injected logger,
// such as glfw callbacks.
func DefaultLogger() *Logger {
	once.Do(func() {
		if defaultLogger == nil {
			defaultLogger = NewLogger(LoggerOptions{Level: "debug"})
		}
	})
	return defaultLogger
}

// SetDefaultLogger replaces the package level logger.
func SetDefaultLogger(l *Logger) {
	once.Do(func() {})
	defaultLogger = l
}

func LogDebug(msg string, args ...interface{}) {
	DefaultLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	DefaultLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	DefaultLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	DefaultLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	DefaultLogger().Fatalf(msg, args...)
}
