package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/ftx1d/pkg/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents logging levels
type LogLevel int

const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string log level
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Fields carries key/value context for a log line
type Fields map[string]interface{}

// Logger writes component-tagged lines to the console and an optional rotating file
type Logger struct {
	mu           sync.Mutex
	level        LogLevel
	structured   bool
	traceCAT     bool
	outputs      []*log.Logger
	rotatingFile *lumberjack.Logger
}

// NewLogger creates a new logger from configuration
func NewLogger(cfg *config.Config) (*Logger, error) {
	logger := &Logger{
		level:      ParseLogLevel(cfg.Logging.Level),
		structured: cfg.Logging.Structured,
		traceCAT:   cfg.Logging.TraceCAT,
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		logger.rotatingFile = &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSize, // megabytes
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAge, // days
			Compress:   cfg.Logging.Compress,
		}
		logger.outputs = append(logger.outputs, log.New(logger.rotatingFile, "", 0))
	}

	if cfg.Logging.Console || logger.rotatingFile == nil {
		logger.outputs = append(logger.outputs, log.New(os.Stdout, "", 0))
	}

	return logger, nil
}

// NewWriterLogger creates a logger that writes to w only
func NewWriterLogger(w io.Writer, level LogLevel, structured bool) *Logger {
	return &Logger{
		level:      level,
		structured: structured,
		outputs:    []*log.Logger{log.New(w, "", 0)},
	}
}

// Close closes the rotating log file if one is open
func (l *Logger) Close() error {
	if l.rotatingFile != nil {
		return l.rotatingFile.Close()
	}
	return nil
}

// SetLevel changes the minimum level written
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// SetTraceCAT toggles raw CAT wire tracing
func (l *Logger) SetTraceCAT(on bool) {
	l.mu.Lock()
	l.traceCAT = on
	l.mu.Unlock()
}

func (l *Logger) format(level LogLevel, component, message string, fields Fields) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if l.structured {
		var b strings.Builder
		fmt.Fprintf(&b, `{"time":"%s","level":"%s","component":"%s","message":%q`,
			timestamp, level.String(), component, message)
		for _, k := range keys {
			fmt.Fprintf(&b, `,%q:%q`, k, fmt.Sprint(fields[k]))
		}
		b.WriteString("}")
		return b.String()
	}

	line := fmt.Sprintf("%s [%s] %s: %s", timestamp, level.String(), component, message)
	if len(keys) > 0 {
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
		}
		line += " [" + strings.Join(parts, " ") + "]"
	}
	return line
}

func (l *Logger) log(level LogLevel, component, message string, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	line := l.format(level, component, message, fields)
	for _, out := range l.outputs {
		out.Println(line)
	}
}

func firstFields(fields []Fields) Fields {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Debug logs a debug message
func (l *Logger) Debug(component, message string, fields ...Fields) {
	l.log(LevelDebug, component, message, firstFields(fields))
}

// Info logs an info message
func (l *Logger) Info(component, message string, fields ...Fields) {
	l.log(LevelInfo, component, message, firstFields(fields))
}

// Warn logs a warning message
func (l *Logger) Warn(component, message string, fields ...Fields) {
	l.log(LevelWarn, component, message, firstFields(fields))
}

// Error logs an error message
func (l *Logger) Error(component, message string, fields ...Fields) {
	l.log(LevelError, component, message, firstFields(fields))
}

func (l *Logger) Debugf(component, format string, args ...interface{}) {
	l.Debug(component, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(component, format string, args ...interface{}) {
	l.Info(component, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(component, format string, args ...interface{}) {
	l.Warn(component, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(component, format string, args ...interface{}) {
	l.Error(component, fmt.Sprintf(format, args...))
}

// Tracef logs raw CAT wire traffic when tracing is enabled.
// Trace lines bypass the level filter so they can be switched on alone.
func (l *Logger) Tracef(component, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.traceCAT {
		return
	}
	line := l.format(LevelTrace, component, fmt.Sprintf(format, args...), nil)
	for _, out := range l.outputs {
		out.Println(line)
	}
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg *config.Config) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	SetGlobalLogger(logger)
	return nil
}

// SetGlobalLogger replaces the global logger
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger returns the global logger
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		// Console fallback when not initialized
		globalLogger = NewWriterLogger(os.Stdout, LevelInfo, false)
	}
	return globalLogger
}

// CloseGlobalLogger closes the global logger
func CloseGlobalLogger() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}

// Convenience functions for global logger
func Debug(component, message string, fields ...Fields) {
	GetGlobalLogger().Debug(component, message, fields...)
}

func Info(component, message string, fields ...Fields) {
	GetGlobalLogger().Info(component, message, fields...)
}

func Warn(component, message string, fields ...Fields) {
	GetGlobalLogger().Warn(component, message, fields...)
}

func Error(component, message string, fields ...Fields) {
	GetGlobalLogger().Error(component, message, fields...)
}

func Debugf(component, format string, args ...interface{}) {
	GetGlobalLogger().Debugf(component, format, args...)
}

func Infof(component, format string, args ...interface{}) {
	GetGlobalLogger().Infof(component, format, args...)
}

func Warnf(component, format string, args ...interface{}) {
	GetGlobalLogger().Warnf(component, format, args...)
}

func Errorf(component, format string, args ...interface{}) {
	GetGlobalLogger().Errorf(component, format, args...)
}

func Tracef(component, format string, args ...interface{}) {
	GetGlobalLogger().Tracef(component, format, args...)
}
