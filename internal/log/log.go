// Package log provides structured logging for pipewatch.
// Entries are key=value lines written to a file (via tea.LogToFile while the
// TUI runs) or to stderr for the headless commands. Nothing is written until
// one of the Init functions has been called.
package log

import (
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
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

// ParseLevel converts "debug", "info", "warn", or "error" into a Level.
// Anything else is LevelDebug.
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

// Category groups related log messages.
type Category string

const (
	CatStream  Category = "stream"  // Event stream connection and decoding
	CatPoll    Category = "poll"    // Polling fallback and snapshot fetches
	CatStore   Category = "store"   // State store mutations
	CatCommand Category = "command" // start/stop/reset commands
	CatAPI     Category = "api"     // HTTP calls to the pipeline service
	CatConfig  Category = "config"  // Configuration loading/saving
	CatUI      Category = "ui"      // UI component updates
	CatCache   Category = "cache"   // cache operations
	CatWatcher Category = "watcher" // Config file watcher events
)

type logger struct {
	mu       sync.Mutex
	w        io.Writer
	minLevel atomic.Int32
	now      func() time.Time
}

var current atomic.Pointer[logger]

func install(w io.Writer, level Level) {
	l := &logger{w: w, now: time.Now}
	l.minLevel.Store(int32(level))
	current.Store(l)
}

// InitWithTeaLog appends to path through tea.LogToFile, which keeps the
// file out of the way of the program's own output. The returned func closes it.
func InitWithTeaLog(path string, prefix string) (func(), error) {
	f, err := tea.LogToFile(path, prefix)
	if err != nil {
		return nil, err
	}
	install(f, LevelDebug)
	return func() {
		current.Store(nil)
		_ = f.Close()
	}, nil
}

// InitWithWriter logs to w from level up. Used by tests and the headless
// commands, which log to stderr.
func InitWithWriter(w io.Writer, level Level) {
	install(w, level)
}

// SetMinLevel drops entries below level.
func SetMinLevel(level Level) {
	if l := current.Load(); l != nil {
		l.minLevel.Store(int32(level))
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	write(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	write(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	write(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	write(LevelError, cat, msg, fields...)
}

// ErrorErr logs at error level with err appended as the "error" field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	text := "<nil>"
	if err != nil {
		text = err.Error()
	}
	write(LevelError, cat, msg, append(fields, "error", text)...)
}

// SafeGo runs fn in a new goroutine and logs (instead of crashing on) any panic.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				Error(CatStore, "goroutine panicked", "name", name, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}

// Format: 2026-10-17T10:45:00 [WARN] [stream] open failed session=… error=…
func write(level Level, cat Category, msg string, fields ...any) {
	l := current.Load()
	if l == nil || level < Level(l.minLevel.Load()) {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] %s", l.now().Format("2006-01-02T15:04:05"), level, cat, msg)
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	if len(fields)%2 != 0 {
		fmt.Fprintf(&b, " %v=<missing>", fields[len(fields)-1])
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, b.String())
}
