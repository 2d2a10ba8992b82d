// Package session serializes record and play toggles onto one owner
// goroutine and keeps the recorder and player mutually exclusive.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"markestedt/keyrecorder/actionlog"
)

// State is the machine's current activity. Exactly one value holds at a time.
type State int32

const (
	Idle State = iota
	Recording
	Playing
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Playing:
		return "playing"
	default:
		return "idle"
	}
}

var (
	// ErrNoSelection is returned when play is toggled with no recording chosen.
	ErrNoSelection = errors.New("no recording selected")
	// ErrUnknownRecording is returned when selecting a name the store lacks.
	ErrUnknownRecording = errors.New("unknown recording")
)

// Recorder captures input until ctx is cancelled.
type Recorder interface {
	Record(ctx context.Context) (*actionlog.Log, error)
}

// Player replays a named recording until ctx is cancelled.
type Player interface {
	Play(ctx context.Context, name string) error
}

// Store lists and writes saved recordings.
type Store interface {
	List() ([]string, error)
	Exists(name string) bool
	ValidName(name string) error
	Create(name string) (io.WriteCloser, error)
}

// Result describes one finished recording or playback.
type Result struct {
	Kind      State
	Name      string
	StartedAt time.Time
	Duration  time.Duration
	Events    int
	Err       error
}

// Hooks are called on the owner goroutine. They must not call back into the
// machine's toggle methods.
type Hooks struct {
	StateChanged     func(State)
	Selected         func(name string)
	RecordingSaved   func(Result)
	PlaybackFinished func(Result)
	Error            func(error)
}

// CommandKind names a request to the owner goroutine.
type CommandKind int

const (
	CmdToggleRecord CommandKind = iota
	CmdTogglePlay
	CmdSelect
)

// Command is a request to the owner goroutine. Name is the save name for
// CmdToggleRecord (empty for a generated one) and the recording for CmdSelect.
type Command struct {
	Kind CommandKind
	Name string
}

type request struct {
	cmd   Command
	reply chan error
}

type outcome struct {
	log *actionlog.Log
	err error
}

type worker struct {
	kind    State
	name    string
	started time.Time
	cancel  context.CancelFunc
	done    chan outcome
}

// Status is a snapshot for user interfaces.
type Status struct {
	State    State     `json:"-"`
	Name     string    `json:"state"`
	Selected string    `json:"selected"`
	Active   string    `json:"active,omitempty"`
	Since    time.Time `json:"since,omitzero"`
}

// Machine owns the session state. Toggles from hotkeys and user interfaces
// are all funnelled through Run's command channel.
type Machine struct {
	recorder Recorder
	player   Player
	store    Store
	hooks    Hooks
	now      func() time.Time

	state    atomic.Int32
	commands chan request

	mu       sync.Mutex
	selected string
	active   string
	since    time.Time

	// owned by the Run goroutine
	current *worker
}

// New creates a machine in Idle.
func New(rec Recorder, player Player, store Store, hooks Hooks) *Machine {
	return &Machine{
		recorder: rec,
		player:   player,
		store:    store,
		hooks:    hooks,
		now:      time.Now,
		commands: make(chan request),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return State(m.state.Load())
}

// Status returns a snapshot of the state and selection.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.State()
	return Status{
		State:    s,
		Name:     s.String(),
		Selected: m.selected,
		Active:   m.active,
		Since:    m.since,
	}
}

// List returns the saved recording names.
func (m *Machine) List() ([]string, error) {
	return m.store.List()
}

// ToggleRecord starts recording, or stops and saves under name. An empty
// name saves under a generated one. A name the store rejects leaves the
// recording running so the caller can retry with another.
func (m *Machine) ToggleRecord(ctx context.Context, name string) error {
	return m.Submit(ctx, Command{Kind: CmdToggleRecord, Name: name})
}

// TogglePlay starts playing the selected recording, or stops playback.
func (m *Machine) TogglePlay(ctx context.Context) error {
	return m.Submit(ctx, Command{Kind: CmdTogglePlay})
}

// Select chooses the recording the next TogglePlay will play.
func (m *Machine) Select(ctx context.Context, name string) error {
	return m.Submit(ctx, Command{Kind: CmdSelect, Name: name})
}

// Submit hands cmd to the owner goroutine and waits until it is applied.
func (m *Machine) Submit(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case m.commands <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes commands until ctx is done. On the way out it stops whatever
// is active; a live recording is saved under a generated name.
func (m *Machine) Run(ctx context.Context) {
	for {
		var done chan outcome
		if m.current != nil {
			done = m.current.done
		}

		select {
		case <-ctx.Done():
			if m.current != nil {
				if err := m.stop(""); err != nil {
					slog.Error("Failed to stop session on shutdown", "error", err)
				}
			}
			return

		case req := <-m.commands:
			err := m.handle(ctx, req.cmd)
			if err != nil && !errors.Is(err, ErrNoSelection) && !errors.Is(err, ErrUnknownRecording) {
				m.reportError(err)
			}
			req.reply <- err

		case o := <-done:
			// The worker ended without being asked to.
			w := m.current
			m.current = nil
			if err := m.finish(w, o, ""); err != nil {
				m.reportError(err)
			}
		}
	}
}

func (m *Machine) handle(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CmdToggleRecord:
		return m.toggleRecord(ctx, cmd.Name)
	case CmdTogglePlay:
		return m.togglePlay(ctx)
	case CmdSelect:
		return m.selectRecording(cmd.Name)
	default:
		return fmt.Errorf("unknown command %d", cmd.Kind)
	}
}

func (m *Machine) toggleRecord(ctx context.Context, name string) error {
	switch m.State() {
	case Playing:
		slog.Debug("Ignoring record toggle while playing")
		return nil
	case Recording:
		if name != "" {
			if err := m.store.ValidName(name); err != nil {
				return err
			}
		}
		return m.stop(name)
	}

	m.start(ctx, Recording, "", func(wctx context.Context) outcome {
		l, err := m.recorder.Record(wctx)
		return outcome{log: l, err: err}
	})
	return nil
}

func (m *Machine) togglePlay(ctx context.Context) error {
	switch m.State() {
	case Recording:
		slog.Debug("Ignoring play toggle while recording")
		return nil
	case Playing:
		return m.stop("")
	}

	m.mu.Lock()
	name := m.selected
	m.mu.Unlock()
	if name == "" {
		slog.Warn("Play toggled with no recording selected")
		return ErrNoSelection
	}

	m.start(ctx, Playing, name, func(wctx context.Context) outcome {
		return outcome{err: m.player.Play(wctx, name)}
	})
	return nil
}

func (m *Machine) selectRecording(name string) error {
	if !m.store.Exists(name) {
		return fmt.Errorf("%w: %s", ErrUnknownRecording, name)
	}

	m.mu.Lock()
	m.selected = name
	m.mu.Unlock()

	slog.Info("Recording selected", "name", name)
	if m.hooks.Selected != nil {
		m.hooks.Selected(name)
	}
	return nil
}

func (m *Machine) start(ctx context.Context, kind State, name string, fn func(context.Context) outcome) {
	wctx, cancel := context.WithCancel(ctx)
	w := &worker{
		kind:    kind,
		name:    name,
		started: m.now(),
		cancel:  cancel,
		done:    make(chan outcome, 1),
	}
	m.current = w

	m.setState(kind, name, w.started)

	go func() {
		w.done <- fn(wctx)
	}()
}

// stop cancels the active worker and waits for it to wind down, which for
// playback includes releasing held input.
func (m *Machine) stop(name string) error {
	w := m.current
	m.current = nil
	w.cancel()
	return m.finish(w, <-w.done, name)
}

func (m *Machine) finish(w *worker, o outcome, name string) error {
	w.cancel()
	res := Result{
		Kind:      w.kind,
		Name:      w.name,
		StartedAt: w.started,
		Duration:  m.now().Sub(w.started),
		Err:       o.err,
	}

	var err error
	switch w.kind {
	case Recording:
		saved := false
		if o.err == nil && o.log != nil {
			res.Events = o.log.Len()
			res.Name, err = m.save(o.log, name)
			if err != nil && name != "" {
				// Keep the capture under a generated name rather than lose it.
				if fallback, ferr := m.save(o.log, ""); ferr == nil {
					slog.Warn("Saved recording under a generated name", "rejected", name, "name", fallback, "error", err)
					err = fmt.Errorf("%w; saved as %s instead", err, fallback)
					res.Name = fallback
					saved = true
				}
			} else {
				saved = err == nil
			}
			if !saved {
				res.Err = err
			}
		} else {
			err = fmt.Errorf("recording failed: %w", o.err)
		}
		m.setState(Idle, "", time.Time{})
		if saved {
			m.selectIfNone(res.Name)
		}
		if m.hooks.RecordingSaved != nil {
			m.hooks.RecordingSaved(res)
		}

	case Playing:
		if o.err != nil {
			err = fmt.Errorf("playback of %s failed: %w", w.name, o.err)
		}
		m.setState(Idle, "", time.Time{})
		if m.hooks.PlaybackFinished != nil {
			m.hooks.PlaybackFinished(res)
		}
	}

	return err
}

func (m *Machine) save(l *actionlog.Log, name string) (string, error) {
	l.Freeze()
	if name == "" {
		name = m.generateName()
	}

	w, err := m.store.Create(name)
	if err != nil {
		return name, fmt.Errorf("failed to save recording: %w", err)
	}
	if err := actionlog.Encode(w, l); err != nil {
		w.Close()
		return name, fmt.Errorf("failed to save recording: %w", err)
	}
	if err := w.Close(); err != nil {
		return name, fmt.Errorf("failed to save recording: %w", err)
	}

	slog.Info("Recording saved", "name", name, "events", l.Len(), "duration", l.Duration())
	return name, nil
}

// generateName returns record_YYYYMMDD_HHMMSS, suffixed when that name is
// already taken.
func (m *Machine) generateName() string {
	base := "record_" + m.now().Format("20060102_150405")
	names, err := m.store.List()
	if err != nil {
		return base
	}
	name := base
	for i := 2; slices.Contains(names, name); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	return name
}

func (m *Machine) selectIfNone(name string) {
	m.mu.Lock()
	if m.selected != "" {
		m.mu.Unlock()
		return
	}
	m.selected = name
	m.mu.Unlock()

	if m.hooks.Selected != nil {
		m.hooks.Selected(name)
	}
}

func (m *Machine) setState(s State, active string, since time.Time) {
	m.mu.Lock()
	m.state.Store(int32(s))
	m.active = active
	m.since = since
	m.mu.Unlock()

	slog.Info("Session state changed", "state", s.String(), "name", active)
	if m.hooks.StateChanged != nil {
		m.hooks.StateChanged(s)
	}
}

func (m *Machine) reportError(err error) {
	slog.Error("Session failed", "error", err)
	if m.hooks.Error != nil {
		m.hooks.Error(err)
	}
}
