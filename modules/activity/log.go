package activity

import (
	"sync"
	"time"
)

// DefaultCapacity is how many entries the log retains.
const DefaultCapacity = 500

// Entry is one recorded task event.
type Entry struct {
	Event     string    `json:"event"`
	TaskID    string    `json:"task_id"`
	ActorID   string    `json:"actor_id"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// Log keeps the most recent entries in a fixed-size ring.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
	total   uint64
}

// NewLog creates a log holding up to capacity entries.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{entries: make([]Entry, capacity)}
}

// Append records e, evicting the oldest entry when full.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	l.total++
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (l *Log) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.full {
		size = len(l.entries)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.next - 1 - i + len(l.entries)) % len(l.entries)
		out = append(out, l.entries[idx])
	}
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}

// Total returns how many entries were ever appended.
func (l *Log) Total() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}
