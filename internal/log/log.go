package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Logger writes leveled key=value lines:
//
//	2025-01-01T00:00:00Z [LEVEL] msg key=value ...
type Logger struct {
	mu       sync.Mutex
	out      *stdlog.Logger
	minLevel Level
}

// New returns a Logger writing to w. A nil writer means stderr.
func New(w io.Writer, level Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		out:      stdlog.New(w, "", 0),
		minLevel: normalizeLevel(level),
	}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(os.Stderr, LevelInfo)
)

func std() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger used by the package-level helpers.
func SetDefault(l *Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default returns the process-wide logger.
func Default() *Logger {
	return std()
}

func SetLevel(l Level) {
	std().SetLevel(l)
}

func Debug(msg string, kv ...any) {
	std().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	std().Info(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	std().Error(msg, err, kv...)
}

// ParseLevel maps a config string onto a Level. Unknown values map to INFO.
func ParseLevel(s string) Level {
	return normalizeLevel(Level(strings.ToUpper(strings.TrimSpace(s))))
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.minLevel = normalizeLevel(level)
	l.mu.Unlock()
}

func (l *Logger) Debug(msg string, kv ...any) {
	l.logWithLevel(LevelDebug, msg, kv...)
}

func (l *Logger) Info(msg string, kv ...any) {
	l.logWithLevel(LevelInfo, msg, kv...)
}

func (l *Logger) Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	l.logWithLevel(LevelError, msg, extended...)
}

func (l *Logger) logWithLevel(level Level, msg string, kv ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !enabled(l.minLevel, level) {
		return
	}

	line := time.Now().Format(time.RFC3339Nano) + " [" + string(level) + "] " + msg
	if len(kv) > 0 {
		line += formatKVs(kv...)
	}
	l.out.Println(line)
}

func normalizeLevel(l Level) Level {
	switch l {
	case LevelDebug, LevelInfo, LevelError:
		return l
	default:
		return LevelInfo
	}
}

func enabled(minLevel, level Level) bool {
	switch minLevel {
	case LevelDebug:
		return true
	case LevelInfo:
		return level == LevelInfo || level == LevelError
	case LevelError:
		return level == LevelError
	default:
		return true
	}
}

func formatKVs(kv ...any) string {
	var b strings.Builder
	// Expect kv as pairs: key, value, key, value, ...
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(quoteIfNeeded(fmt.Sprint(kv[i+1])))
	}
	// If odd number of args, last one is ignored.
	return b.String()
}

func quoteIfNeeded(v string) string {
	if v == "" {
		return `""`
	}
	if strings.ContainsAny(v, " \t\n\"=") {
		return fmt.Sprintf("%q", v)
	}
	return v
}
