package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type Logger struct {
	serviceName string
}

var (
	// INFO_EMOJI Emoji constants
	INFO_EMOJI    = "ℹ️ "
	SUCCESS_EMOJI = "✅ "
	WARN_EMOJI    = "⚠️ "
	ERROR_EMOJI   = "❌ "
	DEBUG_EMOJI   = "🔍 "
)

var minLevel atomic.Int32

func init() {
	minLevel.Store(int32(ParseLevel(os.Getenv("LOG_LEVEL"))))
}

// ParseLevel maps debug/info/warn/error to a Level, defaulting to debug.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelDebug
	}
}

// SetLevel drops every message below level for all loggers.
func SetLevel(level Level) {
	minLevel.Store(int32(level))
}

func enabled(level Level) bool {
	return Level(minLevel.Load()) <= level
}

func New(serviceName string) *Logger {
	return &Logger{
		serviceName: serviceName,
	}
}

func (l *Logger) formatMessage(level, emoji, msg string) string {
	_, file, line, _ := runtime.Caller(2)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fileName := filepath.Base(file)

	return fmt.Sprintf("%s | %s | %s | %s:%d | %s | %s",
		emoji,
		timestamp,
		level,
		fileName,
		line,
		l.serviceName,
		msg,
	)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	if !enabled(LevelInfo) {
		return
	}
	color.Cyan(l.formatMessage("INFO", INFO_EMOJI, fmt.Sprintf(msg, args...)))
}

func (l *Logger) Success(msg string, args ...interface{}) {
	if !enabled(LevelInfo) {
		return
	}
	color.Green(l.formatMessage("SUCCESS", SUCCESS_EMOJI, fmt.Sprintf(msg, args...)))
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	if !enabled(LevelWarn) {
		return
	}
	color.Yellow(l.formatMessage("WARN", WARN_EMOJI, fmt.Sprintf(msg, args...)))
}

// Error logs msg with err appended and returns err wrapped with msg.
func (l *Logger) Error(msg string, err error, args ...interface{}) error {
	text := msg
	if len(args) > 0 {
		text = fmt.Sprintf(msg, args...)
	}
	if enabled(LevelError) {
		color.Red(l.formatMessage("ERROR", ERROR_EMOJI, fmt.Sprintf("%s: %v", text, err)))
	}
	return fmt.Errorf("%s: %w", text, err)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	if !enabled(LevelDebug) {
		return
	}
	color.Magenta(l.formatMessage("DEBUG", DEBUG_EMOJI, fmt.Sprintf(msg, args...)))
}
