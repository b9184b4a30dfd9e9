package testing

import (
	"context"
	"log/slog"
	"sync"
)

// LogCapture is a slog.Handler that keeps every record for inspection.
type LogCapture struct {
	mu      *sync.Mutex
	records *[]slog.Record
	attrs   []slog.Attr
}

// NewLogCapture returns a capturing handler and a logger writing to it.
func NewLogCapture() (*LogCapture, *slog.Logger) {
	h := &LogCapture{mu: &sync.Mutex{}, records: &[]slog.Record{}}
	return h, slog.New(h)
}

// Enabled accepts every level.
func (h *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

// Handle stores the record.
func (h *LogCapture) Handle(_ context.Context, r slog.Record) error {
	r = r.Clone()
	r.AddAttrs(h.attrs...)
	h.mu.Lock()
	*h.records = append(*h.records, r)
	h.mu.Unlock()
	return nil
}

// WithAttrs returns a handler sharing storage with h.
func (h *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &LogCapture{mu: h.mu, records: h.records, attrs: merged}
}

// WithGroup ignores groups.
func (h *LogCapture) WithGroup(string) slog.Handler { return h }

// Messages returns the messages of all captured records in order.
func (h *LogCapture) Messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := make([]string, len(*h.records))
	for i, r := range *h.records {
		msgs[i] = r.Message
	}
	return msgs
}

// Count returns how many records have the given message and level.
func (h *LogCapture) Count(level slog.Level, msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range *h.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

// Has reports whether any record has the given message.
func (h *LogCapture) Has(msg string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range *h.records {
		if r.Message == msg {
			return true
		}
	}
	return false
}
