// Package activity keeps the most recent planning decisions in memory.
package activity

import (
	"sync"
	"time"
)

type EventType string

const (
	EventEvict    EventType = "evict"
	EventAdmit    EventType = "admit"
	EventRejected EventType = "rejected"
)

type Event struct {
	At      time.Time
	Type    EventType
	Site    string
	Torrent string // hash for evictions, site-id for admissions
	Name    string
	Bytes   int64
	Note    string
}

type Log struct {
	mu   sync.RWMutex
	buf  []Event
	next int
	full bool
}

func New(size int) *Log {
	if size <= 0 {
		size = 200
	}
	return &Log{
		buf: make([]Event, size),
	}
}

func (l *Log) Add(e Event) {
	if l == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.next] = e
	l.next++
	if l.next >= len(l.buf) {
		l.next = 0
		l.full = true
	}
}

// List returns the retained events, newest first.
func (l *Log) List() []Event {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.next
	if l.full {
		n = len(l.buf)
	}
	if n == 0 {
		return nil
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, l.buf[(l.next-i+len(l.buf))%len(l.buf)])
	}
	return out
}

// Count returns how many retained events have type t.
func (l *Log) Count(t EventType) int {
	n := 0
	for _, e := range l.List() {
		if e.Type == t {
			n++
		}
	}
	return n
}
