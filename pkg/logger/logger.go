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

type LogLevel = zerolog.Level

const (
	DEBUG = zerolog.DebugLevel
	INFO  = zerolog.InfoLevel
	WARN  = zerolog.WarnLevel
	ERROR = zerolog.ErrorLevel
)

var (
	mu  sync.RWMutex
	log = newLogger(os.Stderr, INFO)
)

func newLogger(w io.Writer, level LogLevel) zerolog.Logger {
	if f, ok := w.(*os.File); ok && (f == os.Stderr || f == os.Stdout) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// SetLevel changes the minimum level emitted by every component.
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	log = log.Level(level)
}

// SetOutput redirects log output. Non-terminal writers receive JSON lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(w, log.GetLevel())
}

// ParseLevel accepts debug, info, warn and error (case-insensitive).
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

func emit(level LogLevel, component, message string, fields map[string]interface{}) {
	mu.RLock()
	l := log
	mu.RUnlock()

	evt := l.WithLevel(level)
	if component != "" {
		evt = evt.Str("component", component)
	}
	if len(fields) > 0 {
		evt = evt.Fields(fields)
	}
	evt.Msg(message)
}

func Debug(message string) { emit(DEBUG, "", message, nil) }
func Info(message string)  { emit(INFO, "", message, nil) }
func Warn(message string)  { emit(WARN, "", message, nil) }
func Error(message string) { emit(ERROR, "", message, nil) }

func DebugC(component, message string) { emit(DEBUG, component, message, nil) }
func InfoC(component, message string)  { emit(INFO, component, message, nil) }
func WarnC(component, message string)  { emit(WARN, component, message, nil) }
func ErrorC(component, message string) { emit(ERROR, component, message, nil) }

func DebugCF(component, message string, fields map[string]interface{}) {
	emit(DEBUG, component, message, fields)
}

func InfoCF(component, message string, fields map[string]interface{}) {
	emit(INFO, component, message, fields)
}

func WarnCF(component, message string, fields map[string]interface{}) {
	emit(WARN, component, message, fields)
}

func ErrorCF(component, message string, fields map[string]interface{}) {
	emit(ERROR, component, message, fields)
}
