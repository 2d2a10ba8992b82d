// Package player replays recorded action logs through synthetic input.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"markestedt/keyrecorder/actionlog"
	"markestedt/keyrecorder/keymap"
	"markestedt/keyrecorder/storage"
	"markestedt/keyrecorder/timing"
)

// ErrMissing is returned when the recording to play is no longer on disk.
var ErrMissing = errors.New("recording not found")

// Injector emits single synthetic input events.
type Injector interface {
	Key(code uint16, release bool) error
	MouseRelative(dx, dy int) error
	MouseAbsolute(x, y int) error
	MouseButton(button string, release bool) error
}

// KeyState reports the live pressed state of a key or mouse button.
type KeyState interface {
	IsPressed(k keymap.Key) bool
}

// Cursor reads the current pointer position.
type Cursor interface {
	CursorPos() (x, y int, err error)
}

// MouseSettings switches pointer speed and acceleration to values that make
// relative moves replay at their recorded distance.
type MouseSettings interface {
	Normalize(speed int) (restore func() error, err error)
}

// Source opens saved logs by name.
type Source interface {
	Open(name string) (io.ReadCloser, error)
}

// Config controls playback.
type Config struct {
	PositionStep int
	PositionTick time.Duration
	LoopDelay    time.Duration
	MouseSpeed   int
	// SortByTime merges the key and mouse streams chronologically at load
	// time instead of replaying them in append order.
	SortByTime bool
}

// DefaultConfig returns the standard playback settings.
func DefaultConfig() Config {
	return Config{
		PositionStep: 10,
		PositionTick: 15 * time.Millisecond,
		LoopDelay:    500 * time.Millisecond,
		MouseSpeed:   10,
	}
}

// Engine plays logs. One Engine may run one playback at a time.
type Engine struct {
	cfg      Config
	source   Source
	injector Injector
	keys     KeyState
	cursor   Cursor
	mouse    MouseSettings
	clock    timing.Clock
	waiter   *timing.Waiter
	timer    timing.Resolution
}

// Deps bundles the platform services the engine drives.
type Deps struct {
	Source   Source
	Injector Injector
	Keys     KeyState
	Cursor   Cursor
	Mouse    MouseSettings
	Clock    timing.Clock
	Timer    timing.Resolution
}

// New creates an engine.
func New(cfg Config, d Deps) *Engine {
	def := DefaultConfig()
	if cfg.PositionStep <= 0 {
		cfg.PositionStep = def.PositionStep
	}
	if cfg.PositionTick <= 0 {
		cfg.PositionTick = def.PositionTick
	}
	if cfg.LoopDelay < 0 {
		cfg.LoopDelay = def.LoopDelay
	}
	if cfg.MouseSpeed <= 0 {
		cfg.MouseSpeed = def.MouseSpeed
	}
	if d.Clock == nil {
		d.Clock = timing.SystemClock{}
	}
	if d.Timer == nil {
		d.Timer = timing.DefaultResolution{}
	}

	return &Engine{
		cfg:      cfg,
		source:   d.Source,
		injector: d.Injector,
		keys:     d.Keys,
		cursor:   d.Cursor,
		mouse:    d.Mouse,
		clock:    d.Clock,
		waiter:   timing.NewWaiter(d.Clock),
		timer:    d.Timer,
	}
}

// action is a parsed event resolved against the key catalog.
type action struct {
	at    time.Duration
	key   keymap.Key
	move  bool
	dx    int
	dy    int
	isRel bool
}

// Play loads the named log and replays it in a loop until ctx is cancelled.
// Whatever the exit path, it finishes by restoring the pointer settings and
// releasing every key and button the hardware still reports as down.
// Cancellation is not an error.
func (e *Engine) Play(ctx context.Context, name string) (err error) {
	defer e.releaseAll()

	initial, actions, err := e.load(name)
	if err != nil {
		return err
	}

	restore, err := e.mouse.Normalize(e.cfg.MouseSpeed)
	if err != nil {
		slog.Warn("Failed to normalize mouse settings", "error", err)
	} else {
		defer func() {
			if err := restore(); err != nil {
				slog.Warn("Failed to restore mouse settings", "error", err)
			}
		}()
	}

	release := e.timer.Acquire()
	defer release()

	slog.Info("Playback started", "name", name, "actions", len(actions))

	loops := 0
	for {
		if !e.moveTo(ctx, initial) {
			break
		}
		if !e.run(ctx, actions) {
			break
		}
		loops++
		if !e.waiter.Sleep(ctx, e.cfg.LoopDelay) {
			break
		}
	}

	slog.Info("Playback stopped", "name", name, "loops", loops)
	return nil
}

func (e *Engine) load(name string) (actionlog.Point, []action, error) {
	rc, err := e.source.Open(name)
	if err != nil {
		if storage.IsNotExist(err) {
			return actionlog.Point{}, nil, fmt.Errorf("%w: %w", ErrMissing, err)
		}
		return actionlog.Point{}, nil, err
	}
	defer rc.Close()

	l, err := actionlog.Parse(rc)
	if err != nil {
		return actionlog.Point{}, nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	if e.cfg.SortByTime {
		l.SortByTime()
	}

	events := l.Events()
	actions := make([]action, 0, len(events))
	for _, ev := range events {
		if ev.Kind == actionlog.Move {
			actions = append(actions, action{at: ev.At, move: true, dx: ev.DX, dy: ev.DY})
			continue
		}
		k, ok := keymap.Lookup(ev.Subject)
		if !ok {
			continue
		}
		actions = append(actions, action{at: ev.At, key: k, isRel: ev.Kind == actionlog.Release})
	}

	if len(actions) == 0 {
		return actionlog.Point{}, nil, &actionlog.MalformedLogError{Reason: "no actions in " + name}
	}
	return l.InitialCursor(), actions, nil
}

// moveTo walks the cursor to target in bounded steps instead of jumping.
func (e *Engine) moveTo(ctx context.Context, target actionlog.Point) bool {
	step := e.cfg.PositionStep
	for {
		if ctx.Err() != nil {
			return false
		}

		x, y, err := e.cursor.CursorPos()
		if err != nil {
			slog.Warn("Failed to read cursor position", "error", err)
		} else {
			nx := approach(x, target.X, step)
			ny := approach(y, target.Y, step)
			if err := e.injector.MouseAbsolute(nx, ny); err != nil {
				slog.Warn("Failed to move cursor", "error", err)
			}
			if nx == target.X && ny == target.Y {
				return true
			}
		}

		if !e.waiter.Sleep(ctx, e.cfg.PositionTick) {
			return false
		}
	}
}

func approach(from, to, step int) int {
	switch {
	case to > from:
		return min(from+step, to)
	case to < from:
		return max(from-step, to)
	default:
		return to
	}
}

// run replays one pass over actions. It returns false if cancelled.
func (e *Engine) run(ctx context.Context, actions []action) bool {
	sw := timing.Start(e.clock)
	for _, a := range actions {
		if ctx.Err() != nil {
			return false
		}
		if !e.waiter.WaitUntil(ctx, sw, a.at) {
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		if err := e.dispatch(a); err != nil {
			slog.Warn("Failed to inject action", "key", a.key.Name, "error", err)
		}
	}
	return true
}

func (e *Engine) dispatch(a action) error {
	switch {
	case a.move:
		return e.injector.MouseRelative(a.dx, a.dy)
	case a.key.IsMouse():
		return e.injector.MouseButton(a.key.Name, a.isRel)
	default:
		return e.injector.Key(a.key.Code, a.isRel)
	}
}

// releaseAll lifts every key and button the hardware reports as down.
func (e *Engine) releaseAll() {
	var released []string
	for _, k := range keymap.All() {
		if !e.keys.IsPressed(k) {
			continue
		}

		var err error
		if k.IsMouse() {
			err = e.injector.MouseButton(k.Name, true)
		} else {
			err = e.injector.Key(k.Code, true)
		}
		if err != nil {
			slog.Warn("Failed to release input", "key", k.Name, "error", err)
			continue
		}
		released = append(released, k.Name)
	}

	if len(released) > 0 {
		slog.Info("Released held input", "keys", released)
	}
}
