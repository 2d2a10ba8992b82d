// Package actionlog holds recorded input sessions and their text encoding.
package actionlog

import (
	"sort"
	"sync"
	"time"

	"markestedt/keyrecorder/keymap"
)

// Kind is the kind of an action.
type Kind int

const (
	Press Kind = iota
	Release
	Move
)

func (k Kind) String() string {
	switch k {
	case Press:
		return "press"
	case Release:
		return "release"
	case Move:
		return "move"
	default:
		return "unknown"
	}
}

// Event is a single recorded action.
type Event struct {
	At      time.Duration // since session start
	Subject string        // key name or keymap.MouseMove
	Kind    Kind
	DX, DY  int // Move only
}

// KeyEvent builds a press or release event for a catalog key.
func KeyEvent(at time.Duration, k keymap.Key, release bool) Event {
	kind := Press
	if release {
		kind = Release
	}
	return Event{At: at, Subject: k.Name, Kind: kind}
}

// MoveEvent builds a relative mouse motion event.
func MoveEvent(at time.Duration, dx, dy int) Event {
	return Event{At: at, Subject: keymap.MouseMove, Kind: Move, DX: dx, DY: dy}
}

// Point is a screen position.
type Point struct {
	X, Y int
}

// Log is an initial cursor position plus an append-only sequence of events.
// Events are kept in the order appenders acquired the lock, which is not
// necessarily timestamp order when several producers feed the same log.
type Log struct {
	mu      sync.Mutex
	initial Point
	events  []Event
	frozen  bool
}

// New creates an empty log.
func New(initial Point) *Log {
	return &Log{initial: initial}
}

// Append adds an event. It returns false once the log has been frozen.
func (l *Log) Append(e Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen {
		return false
	}
	l.events = append(l.events, e)
	return true
}

// Freeze rejects all further appends.
func (l *Log) Freeze() {
	l.mu.Lock()
	l.frozen = true
	l.mu.Unlock()
}

// InitialCursor returns the cursor position captured when the log was created.
func (l *Log) InitialCursor() Point {
	return l.initial
}

// Events returns a copy of the events in stored order.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Duration returns the timestamp of the latest event.
func (l *Log) Duration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	var d time.Duration
	for _, e := range l.events {
		if e.At > d {
			d = e.At
		}
	}
	return d
}

// SortByTime stable-sorts the events by timestamp, merging the sampler and
// raw mouse streams into one chronological sequence.
func (l *Log) SortByTime() {
	l.mu.Lock()
	defer l.mu.Unlock()

	sort.SliceStable(l.events, func(i, j int) bool {
		return l.events[i].At < l.events[j].At
	})
}
