package recorder

import (
	"time"

	"markestedt/keyrecorder/actionlog"
	"markestedt/keyrecorder/keymap"
)

// KeyState reports the live pressed state of a key or mouse button.
type KeyState interface {
	IsPressed(k keymap.Key) bool
}

// Sampler turns polled key state into press/release transitions.
type Sampler struct {
	keys    []keymap.Key
	state   KeyState
	pressed map[string]bool
}

// NewSampler creates a sampler over the given keys.
func NewSampler(keys []keymap.Key, state KeyState) *Sampler {
	return &Sampler{
		keys:    keys,
		state:   state,
		pressed: make(map[string]bool),
	}
}

// Poll queries every tracked key once and returns the transitions since the
// previous poll, all stamped with at. A key held across polls yields nothing.
func (s *Sampler) Poll(at time.Duration) []actionlog.Event {
	var events []actionlog.Event

	for _, k := range s.keys {
		down := s.state.IsPressed(k)
		switch {
		case down && !s.pressed[k.Name]:
			s.pressed[k.Name] = true
			events = append(events, actionlog.KeyEvent(at, k, false))
		case !down && s.pressed[k.Name]:
			delete(s.pressed, k.Name)
			events = append(events, actionlog.KeyEvent(at, k, true))
		}
	}

	return events
}

// Pressed returns the names of the keys currently considered down.
func (s *Sampler) Pressed() []string {
	names := make([]string, 0, len(s.pressed))
	for _, k := range s.keys {
		if s.pressed[k.Name] {
			names = append(names, k.Name)
		}
	}
	return names
}
