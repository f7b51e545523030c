package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrLoggerClosed is returned by Log after Close.
var ErrLoggerClosed = errors.New("run log is closed")

// Logger records run events.
type Logger interface {
	Log(event Event) error
	Close() error
}

// JSONLogger writes one precompute run as newline-delimited JSON. Events are
// numbered in the order they are written, which can differ from timestamp
// order when workers report concurrently.
type JSONLogger struct {
	path string
	now  func() time.Time

	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	seq    int
	closed bool
}

// NewJSONLogger creates the run log at path. Parent directories are created;
// an existing file is an error since every run gets its own log.
func NewJSONLogger(path string) (*JSONLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating run log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating run log: %w", err)
	}

	return &JSONLogger{
		path: path,
		now:  time.Now,
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Log numbers the event, stamps it when it has no timestamp, and appends it.
func (l *JSONLogger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLoggerClosed
	}

	l.seq++
	event.Seq = l.seq
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	if err := l.enc.Encode(event); err != nil {
		return fmt.Errorf("writing %s event: %w", event.Type, err)
	}
	return nil
}

// Count returns the number of events written so far.
func (l *JSONLogger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Close syncs the log to disk and closes it. Calling Close twice is a no-op.
func (l *JSONLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	syncErr := l.file.Sync()
	if err := l.file.Close(); err != nil {
		return err
	}
	return syncErr
}

// Path returns the file path of the run log.
func (l *JSONLogger) Path() string {
	return l.path
}

// NopLogger discards all events. It is used when --session-log is off.
type NopLogger struct{}

func (NopLogger) Log(Event) error { return nil }

func (NopLogger) Close() error { return nil }

// LogSuffix ends every run log file name.
const LogSuffix = "-run.jsonl"

// runIDLen is how much of the run ID goes into the file name.
const runIDLen = 8

// RunLogPath names the log of a run started at start inside dir. Names sort
// by start time, so ListSessions order matches run order.
func RunLogPath(dir, runID string, start time.Time) string {
	name := start.UTC().Format("20060102T150405Z")
	if len(runID) > runIDLen {
		runID = runID[:runIDLen]
	}
	if runID != "" {
		name += "-" + runID
	}
	return filepath.Join(dir, name+LogSuffix)
}

// DefaultLogPath returns the log path of a run starting now.
func DefaultLogPath(dir, runID string) string {
	return RunLogPath(dir, runID, time.Now())
}
