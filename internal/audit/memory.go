package audit

import (
	"context"
	"sync"
)

// MemoryLogger keeps audit entries in memory. Used when no database is configured and in tests.
type MemoryLogger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLogger constructs a logger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log stores the entry.
func (l *MemoryLogger) Log(ctx context.Context, entry Entry) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, normalize(entry))
	return nil
}

// Entries returns a copy of the stored entries.
func (l *MemoryLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// ForStation returns the entries recorded against stationCode, oldest first.
func (l *MemoryLogger) ForStation(stationCode string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, entry := range l.entries {
		if entry.StationCode == stationCode {
			out = append(out, entry)
		}
	}
	return out
}
