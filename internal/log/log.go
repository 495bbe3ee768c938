// Package log provides structured logging for provchain.
// Entries carry a level, a category and key=value fields, and are only written
// when logging is enabled via --debug or PROVCHAIN_DEBUG.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/zjrosen/provchain/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelDebug, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
}

// Category groups related log messages.
type Category string

const (
	CatLoad     Category = "load"     // Document discovery and decoding
	CatValidate Category = "validate" // Reference validation runs
	CatRegistry Category = "registry" // Registry population and clearing
	CatConfig   Category = "config"
	CatWatcher  Category = "watcher"
	CatCache    Category = "cache" // Decode cache hits and evictions
	CatDB       Category = "db"    // Run history database
	CatTrace    Category = "trace"
	CatMetrics  Category = "metrics"
)

// Entry is one log record.
type Entry struct {
	Time     time.Time
	Level    Level
	Category Category
	Message  string
	Fields   []any // alternating keys and values
}

// String renders the entry as one line including the trailing newline:
// 2025-12-06T10:45:00 [ERROR] [load] message key=value key2=value2
func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] %s", e.Time.Format("2006-01-02T15:04:05"), e.Level, e.Category, e.Message)
	for i := 0; i+1 < len(e.Fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", e.Fields[i], e.Fields[i+1])
	}
	if len(e.Fields)%2 != 0 {
		fmt.Fprintf(&b, " %v=<missing>", e.Fields[len(e.Fields)-1])
	}
	b.WriteByte('\n')
	return b.String()
}

// LogEvent is a pubsub event carrying a log entry.
type LogEvent = pubsub.Event[Entry]

// logger writes entries and republishes them to subscribers.
type logger struct {
	mu       sync.Mutex
	writer   io.Writer
	closer   io.Closer
	enabled  bool
	minLevel Level
	broker   *pubsub.Broker[Entry]
}

var (
	stateMu sync.Mutex
	current *logger
)

// Init starts logging to the file at path, replacing any active logger.
// The returned cleanup closes the file.
func Init(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: user-chosen debug log path
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	l := install(f, f)
	return func() { l.shutdown() }, nil
}

// InitWithWriter starts logging to w, replacing any active logger.
// Used by tests and by callers that already own an output stream.
func InitWithWriter(w io.Writer) {
	install(w, nil)
}

func install(w io.Writer, c io.Closer) *logger {
	l := &logger{
		writer:   w,
		closer:   c,
		enabled:  true,
		minLevel: LevelDebug,
		broker:   pubsub.NewBroker[Entry](),
	}
	stateMu.Lock()
	prev := current
	current = l
	stateMu.Unlock()
	if prev != nil {
		prev.shutdown()
	}
	return l
}

// reset drops the active logger.
func reset() {
	stateMu.Lock()
	prev := current
	current = nil
	stateMu.Unlock()
	if prev != nil {
		prev.shutdown()
	}
}

func active() *logger {
	stateMu.Lock()
	defer stateMu.Unlock()
	return current
}

func (l *logger) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.broker.Close()
	if l.closer != nil {
		_ = l.closer.Close()
		l.closer = nil
	}
	l.enabled = false
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if l := active(); l != nil {
		l.mu.Lock()
		l.enabled = enabled
		l.mu.Unlock()
	}
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	if l := active(); l != nil {
		l.mu.Lock()
		l.minLevel = level
		l.mu.Unlock()
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) { write(LevelDebug, cat, msg, fields) }

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) { write(LevelInfo, cat, msg, fields) }

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) { write(LevelWarn, cat, msg, fields) }

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) { write(LevelError, cat, msg, fields) }

// ErrorErr logs at error level with the error appended as the "error" field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	errText := "<nil>"
	if err != nil {
		errText = err.Error()
	}
	write(LevelError, cat, msg, append(fields, "error", errText))
}

func write(level Level, cat Category, msg string, fields []any) {
	l := active()
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled || level < l.minLevel {
		return
	}

	entry := Entry{Time: time.Now(), Level: level, Category: cat, Message: msg, Fields: fields}
	if l.writer != nil {
		_, _ = io.WriteString(l.writer, entry.String())
	}
	l.broker.Publish(pubsub.CreatedEvent, entry)
}

// Subscribe returns a channel of entries at or above minLevel.
// The channel closes when ctx is cancelled or the logger is replaced.
// Returns nil when logging was never initialized.
func Subscribe(ctx context.Context, minLevel Level) <-chan LogEvent {
	l := active()
	if l == nil {
		return nil
	}

	all := l.broker.Subscribe(ctx, pubsub.CreatedEvent)
	if minLevel <= LevelDebug {
		return all
	}

	filtered := make(chan LogEvent, cap(all))
	go func() {
		defer close(filtered)
		for ev := range all {
			if ev.Payload.Level < minLevel {
				continue
			}
			select {
			case filtered <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return filtered
}
