package log

import "sync"

// MemoryLogger keeps the most recent events in a fixed-size ring.
// It is safe for concurrent use.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
}

// NewMemoryLogger creates a MemoryLogger holding up to capacity events.
// A capacity below 1 is treated as 1.
func NewMemoryLogger(capacity int) *MemoryLogger {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryLogger{events: make([]Event, capacity)}
}

// Log stores the event, evicting the oldest when full.
func (m *MemoryLogger) Log(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[m.next] = event
	m.next = (m.next + 1) % len(m.events)
	if m.next == 0 {
		m.full = true
	}
}

// Events returns the stored events, oldest first.
func (m *MemoryLogger) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.full {
		return append([]Event(nil), m.events[:m.next]...)
	}
	out := make([]Event, 0, len(m.events))
	out = append(out, m.events[m.next:]...)
	return append(out, m.events[:m.next]...)
}

// Len returns the number of stored events.
func (m *MemoryLogger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return len(m.events)
	}
	return m.next
}

// Compile-time interface satisfaction check.
var _ Logger = (*MemoryLogger)(nil)
