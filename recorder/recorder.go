// Package recorder captures keyboard and mouse input into an action log.
//
// Two producers feed one session: a polling loop over key and button state,
// and the raw mouse notifications delivered on the input thread. Both append
// to the session's log under the log's own lock.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"markestedt/keyrecorder/actionlog"
	"markestedt/keyrecorder/keymap"
	"markestedt/keyrecorder/timing"
)

// DefaultInterval is the key polling interval.
const DefaultInterval = 10 * time.Millisecond

// Cursor reads the current pointer position.
type Cursor interface {
	CursorPos() (x, y int, err error)
}

// Session is one recording in progress.
type Session struct {
	log   *actionlog.Log
	watch timing.Stopwatch
}

func newSession(initial actionlog.Point, clock timing.Clock) *Session {
	return &Session{
		log:   actionlog.New(initial),
		watch: timing.Start(clock),
	}
}

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration {
	return s.watch.Elapsed()
}

// Log returns the session's log.
func (s *Session) Log() *actionlog.Log {
	return s.log
}

// AppendMove records relative mouse motion at the current time.
func (s *Session) AppendMove(dx, dy int) bool {
	return s.log.Append(actionlog.MoveEvent(s.Elapsed(), dx, dy))
}

// ErrAlreadyRecording is returned when Record is called while a session is
// still active.
var ErrAlreadyRecording = errors.New("already recording")

// Config controls a Recorder.
type Config struct {
	Interval time.Duration
	// Exclude lists key names that are never recorded, typically the hotkeys.
	Exclude []string
}

// Recorder runs recording sessions. At most one session is active at a time;
// the active session is what raw mouse notifications are routed to.
type Recorder struct {
	keys     []keymap.Key
	interval time.Duration
	state    KeyState
	cursor   Cursor
	clock    timing.Clock
	timer    timing.Resolution

	current atomic.Pointer[Session]
}

// New creates a recorder. A nil resolution leaves the timer untouched.
func New(cfg Config, state KeyState, cursor Cursor, clock timing.Clock, timer timing.Resolution) *Recorder {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if timer == nil {
		timer = timing.DefaultResolution{}
	}

	return &Recorder{
		keys:     keymap.Tracked(cfg.Exclude...),
		interval: cfg.Interval,
		state:    state,
		cursor:   cursor,
		clock:    clock,
		timer:    timer,
	}
}

// Active returns the session being recorded, or nil.
func (r *Recorder) Active() *Session {
	return r.current.Load()
}

// OnRawMouse receives relative motion from the raw input thread. It is a
// no-op unless a session is active. It never blocks beyond the log lock.
func (r *Recorder) OnRawMouse(dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	if s := r.current.Load(); s != nil {
		s.AppendMove(dx, dy)
	}
}

// Record captures input until ctx is cancelled and returns the frozen log.
func (r *Recorder) Record(ctx context.Context) (*actionlog.Log, error) {
	x, y, err := r.cursor.CursorPos()
	if err != nil {
		return nil, fmt.Errorf("failed to read cursor position: %w", err)
	}

	sess := newSession(actionlog.Point{X: x, Y: y}, r.clock)
	if !r.current.CompareAndSwap(nil, sess) {
		return nil, ErrAlreadyRecording
	}

	release := r.timer.Acquire()
	defer release()

	sampler := NewSampler(r.keys, r.state)
	slog.Info("Recording started", "keys", len(r.keys), "interval", r.interval, "cursor_x", x, "cursor_y", y)

	for ctx.Err() == nil {
		for _, e := range sampler.Poll(sess.Elapsed()) {
			sess.log.Append(e)
		}
		r.clock.Sleep(r.interval)
	}

	r.current.Store(nil)
	sess.log.Freeze()

	if held := sampler.Pressed(); len(held) > 0 {
		slog.Warn("Recording stopped with keys still down", "keys", held)
	}
	slog.Info("Recording stopped", "events", sess.log.Len(), "duration", sess.Elapsed())

	return sess.log, nil
}
