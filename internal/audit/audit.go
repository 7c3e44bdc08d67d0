// Package audit provides the append-only debug trail for gateway processing,
// keyed by order increment id.
package audit

import (
	"log/slog"
	"time"
)

// Sink receives audit entries. Appends are best effort; implementations must
// never fail the caller.
type Sink interface {
	Append(orderRef, message string)
}

// Logger writes audit entries through the application logger.
type Logger struct {
	log *slog.Logger
}

// NewLogger creates a slog-backed audit sink.
func NewLogger(log *slog.Logger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) Append(orderRef, message string) {
	l.log.Debug(message, slog.String("order_ref", orderRef))
}

// Entry is one recorded audit line.
type Entry struct {
	OrderRef string
	Message  string
	At       time.Time
}

// Memory collects audit entries in order of arrival. Intended for tests and
// for the single-request scope this module runs in; it is not synchronized.
type Memory struct {
	Entries []Entry
}

// NewMemory creates an in-memory audit sink.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(orderRef, message string) {
	m.Entries = append(m.Entries, Entry{OrderRef: orderRef, Message: message, At: time.Now()})
}

// Messages returns the recorded messages for one order ref.
func (m *Memory) Messages(orderRef string) []string {
	var out []string
	for _, e := range m.Entries {
		if e.OrderRef == orderRef {
			out = append(out, e.Message)
		}
	}
	return out
}
