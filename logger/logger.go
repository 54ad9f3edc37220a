// Package logger provides the process-wide structured loggers used by the
// catalog, config, and demo packages.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// Logger is the general-purpose logger (debug/warn level messages).
	Logger *logrus.Logger
	// InfoLogger carries informational messages.
	InfoLogger *logrus.Logger
	// ErrorLogger carries error and fatal messages.
	ErrorLogger *logrus.Logger
)

// Config controls where logs are written and at what level.
type Config struct {
	ErrorLogPath string
	InfoLogPath  string
	LogLevel     string
}

// textFormatter renders entries as "[time] [LEVEL] (caller) message".
type textFormatter struct {
	TimestampFormat string
}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)

	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	msg := fmt.Sprintf("[%s] [%s] (%s) %s\n", timestamp, level, caller(), entry.Message)

	return []byte(msg), nil
}

// caller walks the stack past the logging framework to find the first
// frame outside logrus and this package.
func caller() string {
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		if strings.Contains(file, "/logrus/") ||
			strings.Contains(file, "logger.go") ||
			strings.Contains(file, "sirupsen") {
			continue
		}

		funcName := runtime.FuncForPC(pc).Name()

		return fmt.Sprintf("%s:%s:%d", filepath.Base(file), funcName, line)
	}

	return "unknown:unknown:0"
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// Init sets up Logger, InfoLogger and ErrorLogger from cfg. It is safe to
// call more than once (e.g. after reloading configuration).
func Init(cfg Config) error {
	formatter := &textFormatter{TimestampFormat: "15:04:05 MST 2006/01/02"}

	Logger = logrus.New()
	Logger.SetFormatter(formatter)
	Logger.SetLevel(parseLevel(cfg.LogLevel))

	InfoLogger = logrus.New()
	InfoLogger.SetFormatter(formatter)
	InfoLogger.SetLevel(parseLevel(cfg.LogLevel))

	ErrorLogger = logrus.New()
	ErrorLogger.SetFormatter(formatter)
	ErrorLogger.SetLevel(parseLevel(cfg.LogLevel))

	if cfg.InfoLogPath != "" {
		f, err := openLogFile(cfg.InfoLogPath)
		if err != nil {
			InfoLogger.SetOutput(os.Stdout)
			InfoLogger.Warnf("failed to open info log file %s, falling back to stdout: %v", cfg.InfoLogPath, err)
		} else {
			InfoLogger.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	} else {
		InfoLogger.SetOutput(os.Stdout)
	}

	if cfg.ErrorLogPath != "" {
		f, err := openLogFile(cfg.ErrorLogPath)
		if err != nil {
			ErrorLogger.SetOutput(os.Stderr)
			ErrorLogger.Warnf("failed to open error log file %s, falling back to stderr: %v", cfg.ErrorLogPath, err)
		} else {
			ErrorLogger.SetOutput(io.MultiWriter(os.Stderr, f))
		}
	} else {
		ErrorLogger.SetOutput(os.Stderr)
	}

	Logger.SetOutput(InfoLogger.Out)

	return nil
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func Info(args ...interface{})                 { ensure(InfoLogger).Info(args...) }
func Infof(format string, args ...interface{})  { ensure(InfoLogger).Infof(format, args...) }
func Debug(args ...interface{})                 { ensure(Logger).Debug(args...) }
func Debugf(format string, args ...interface{}) { ensure(Logger).Debugf(format, args...) }
func Warn(args ...interface{})                  { ensure(Logger).Warn(args...) }
func Warnf(format string, args ...interface{})  { ensure(Logger).Warnf(format, args...) }
func Error(args ...interface{})                 { ensure(ErrorLogger).Error(args...) }
func Errorf(format string, args ...interface{}) { ensure(ErrorLogger).Errorf(format, args...) }

// ensure returns l, or a default stderr logger if Init was never called —
// tests and standalone tools should not be forced to call Init first.
func ensure(l *logrus.Logger) *logrus.Logger {
	if l != nil {
		return l
	}

	fallback := logrus.New()
	fallback.SetOutput(os.Stderr)

	return fallback
}
