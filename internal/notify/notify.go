// Package notify is the sink for user-visible success/error toasts.
// Delivery is fire-and-forget: a notifier is always called after the state
// transition it reports has been committed, and never returns an error.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclinic/patient-portal/pkg/logging"
)

// Notifier surfaces outcome messages to the user.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Level tags a feed entry.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Toast is one queued notification.
type Toast struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// LogNotifier writes toasts to the structured log. Used when the portal runs
// headless.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(message string) {
	n.logger.Info("notification", "level", LevelSuccess, "message", message)
}

func (n *LogNotifier) Error(message string) {
	n.logger.Warn("notification", "level", LevelError, "message", message)
}

// Feed retains the most recent toasts in memory so the rendering layer can
// drain them over the API. Oldest entries fall off when the cap is reached.
type Feed struct {
	mu      sync.Mutex
	entries []Toast
	cap     int
	now     func() time.Time
}

// NewFeed creates a feed keeping at most capacity entries.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = 50
	}
	return &Feed{cap: capacity, now: time.Now}
}

func (f *Feed) Success(message string) { f.push(LevelSuccess, message) }
func (f *Feed) Error(message string)   { f.push(LevelError, message) }

func (f *Feed) push(level Level, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, Toast{
		ID:      uuid.NewString(),
		Level:   level,
		Message: message,
		At:      f.now(),
	})
	if len(f.entries) > f.cap {
		f.entries = f.entries[len(f.entries)-f.cap:]
	}
}

// Recent returns the retained toasts, newest last.
func (f *Feed) Recent() []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Toast, len(f.entries))
	copy(out, f.entries)
	return out
}

// Multi fans a notification out to several sinks.
type Multi []Notifier

func (m Multi) Success(message string) {
	for _, n := range m {
		n.Success(message)
	}
}

func (m Multi) Error(message string) {
	for _, n := range m {
		n.Error(message)
	}
}

// Stub records calls for tests.
type Stub struct {
	mu        sync.Mutex
	Successes []string
	Errors    []string
}

func (s *Stub) Success(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Successes = append(s.Successes, message)
}

func (s *Stub) Error(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, message)
}

var _ Notifier = (*LogNotifier)(nil)
var _ Notifier = (*Feed)(nil)
var _ Notifier = (Multi)(nil)
var _ Notifier = (*Stub)(nil)
