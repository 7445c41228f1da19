package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Leveled logger shared by every package in the module.
// - backed by zerolog, JSON lines on stdout by default
// - provides Debug/Info/Warn/Error/Fatal variants and Init(level)

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	level  = zerolog.InfoLevel
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	case "fatal":
		level = zerolog.FatalLevel
	default:
		level = zerolog.InfoLevel
	}
}

// SetOutput redirects log output. format "console" writes human-readable
// lines, anything else JSON.
func SetOutput(w io.Writer, format string) {
	mu.Lock()
	defer mu.Unlock()
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	logger = zerolog.New(w).With().Timestamp().Logger()
}

// With returns a child logger carrying the given fields, filtered at the
// current level.
func With(fields map[string]interface{}) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.With().Fields(fields).Logger().Level(level)
}

func emit(l zerolog.Level, format string, v ...interface{}) {
	mu.RLock()
	lg, min := logger, level
	mu.RUnlock()
	if l < min {
		return
	}
	lg.WithLevel(l).Msgf(format, v...)
}

func Debugf(format string, v ...interface{}) { emit(zerolog.DebugLevel, format, v...) }
func Infof(format string, v ...interface{})  { emit(zerolog.InfoLevel, format, v...) }
func Warnf(format string, v ...interface{})  { emit(zerolog.WarnLevel, format, v...) }
func Errorf(format string, v ...interface{}) { emit(zerolog.ErrorLevel, format, v...) }

func Fatalf(format string, v ...interface{}) {
	mu.RLock()
	lg := logger
	mu.RUnlock()
	lg.WithLevel(zerolog.FatalLevel).Msgf(format, v...)
	os.Exit(1)
}

// Println kept for brief messages (maps to Info)
func Println(v ...interface{}) {
	emit(zerolog.InfoLevel, "%s", strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

// Debug/Info/Warn/Error helpers that accept a single string
func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case zerolog.DebugLevel:
		return "debug"
	case zerolog.WarnLevel:
		return "warn"
	case zerolog.ErrorLevel:
		return "error"
	case zerolog.FatalLevel:
		return "fatal"
	}
	return "info"
}
