package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/keyrecorder/actionlog"
	"markestedt/keyrecorder/keymap"
	"markestedt/keyrecorder/storage"
)

type fakeRecorder struct {
	err error
}

func (r *fakeRecorder) Record(ctx context.Context) (*actionlog.Log, error) {
	if r.err != nil {
		return nil, r.err
	}
	l := actionlog.New(actionlog.Point{X: 5, Y: 6})
	a, _ := keymap.Lookup("A")
	l.Append(actionlog.KeyEvent(0, a, false))
	<-ctx.Done()
	l.Append(actionlog.KeyEvent(time.Millisecond, a, true))
	return l, nil
}

type fakePlayer struct {
	err      error
	released atomic.Bool
	played   atomic.Value
}

func (p *fakePlayer) Play(ctx context.Context, name string) error {
	p.played.Store(name)
	if p.err != nil {
		return p.err
	}
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)
	p.released.Store(true)
	return nil
}

type memStore struct {
	mu    sync.Mutex
	files map[string]string
	fail  error
	// failName makes Create fail only for this name
	failName string
}

func newMemStore(names ...string) *memStore {
	s := &memStore{files: make(map[string]string)}
	for _, n := range names {
		s.files[n] = "initialPos:0,0\n"
	}
	return s
}

func (s *memStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for n := range s.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memStore) Exists(name string) bool {
	_, ok := s.get(name)
	return ok
}

func (s *memStore) ValidName(name string) error {
	if strings.Contains(name, "/") {
		return errors.New("invalid name")
	}
	return nil
}

func (s *memStore) Create(name string) (io.WriteCloser, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	if s.failName != "" && name == s.failName {
		return nil, errors.New("rename refused")
	}
	return &memFile{store: s, name: name}, nil
}

func (s *memStore) get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.files[name]
	return v, ok
}

type memFile struct {
	bytes.Buffer
	store *memStore
	name  string
}

func (f *memFile) Close() error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.files[f.name] = f.String()
	return nil
}

type hookLog struct {
	mu       sync.Mutex
	states   []State
	saved    []Result
	finished []Result
	errs     []error
	selected []string
}

func (h *hookLog) hooks() Hooks {
	return Hooks{
		StateChanged: func(s State) {
			h.mu.Lock()
			h.states = append(h.states, s)
			h.mu.Unlock()
		},
		Selected: func(name string) {
			h.mu.Lock()
			h.selected = append(h.selected, name)
			h.mu.Unlock()
		},
		RecordingSaved: func(r Result) {
			h.mu.Lock()
			h.saved = append(h.saved, r)
			h.mu.Unlock()
		},
		PlaybackFinished: func(r Result) {
			h.mu.Lock()
			h.finished = append(h.finished, r)
			h.mu.Unlock()
		},
		Error: func(err error) {
			h.mu.Lock()
			h.errs = append(h.errs, err)
			h.mu.Unlock()
		},
	}
}

func (h *hookLog) errCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.errs)
}

func startMachine(t *testing.T, m *Machine) (context.Context, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(stopped)
	}()
	shutdown := func() {
		cancel()
		<-stopped
	}
	t.Cleanup(shutdown)
	return ctx, shutdown
}

func fixedNow(m *Machine) {
	m.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local) }
}

func TestRecordAndSave(t *testing.T) {
	store := newMemStore()
	var h hookLog
	m := New(&fakeRecorder{}, &fakePlayer{}, store, h.hooks())
	ctx, _ := startMachine(t, m)

	require.NoError(t, m.ToggleRecord(ctx, ""))
	assert.Equal(t, Recording, m.State())

	require.NoError(t, m.ToggleRecord(ctx, "walk"))
	assert.Equal(t, Idle, m.State())

	data, ok := store.get("walk")
	require.True(t, ok)
	assert.Equal(t, "initialPos:5,6\n0 A:press\n1000000 A:release\n", data)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []State{Recording, Idle}, h.states)
	require.Len(t, h.saved, 1)
	assert.Equal(t, "walk", h.saved[0].Name)
	assert.Equal(t, 2, h.saved[0].Events)
	assert.NoError(t, h.saved[0].Err)
	assert.Equal(t, []string{"walk"}, h.selected)
	assert.Equal(t, "walk", m.Status().Selected)
}

func TestGeneratedNames(t *testing.T) {
	store := newMemStore()
	m := New(&fakeRecorder{}, &fakePlayer{}, store, Hooks{})
	fixedNow(m)
	ctx, _ := startMachine(t, m)

	for range 2 {
		require.NoError(t, m.ToggleRecord(ctx, ""))
		require.NoError(t, m.ToggleRecord(ctx, ""))
	}

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"record_20240102_030405", "record_20240102_030405_2"}, names)
}

func TestMutualExclusion(t *testing.T) {
	store := newMemStore("walk")
	player := &fakePlayer{}
	m := New(&fakeRecorder{}, player, store, Hooks{})
	ctx, _ := startMachine(t, m)

	require.NoError(t, m.Select(ctx, "walk"))

	require.NoError(t, m.ToggleRecord(ctx, ""))
	require.NoError(t, m.TogglePlay(ctx))
	assert.Equal(t, Recording, m.State())
	assert.Nil(t, player.played.Load())

	require.NoError(t, m.ToggleRecord(ctx, "second"))
	require.Equal(t, Idle, m.State())

	require.NoError(t, m.TogglePlay(ctx))
	assert.Equal(t, Playing, m.State())
	assert.Equal(t, "walk", m.Status().Active)

	require.NoError(t, m.ToggleRecord(ctx, ""))
	assert.Equal(t, Playing, m.State())

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "walk"}, names)

	require.NoError(t, m.TogglePlay(ctx))
	assert.Equal(t, Idle, m.State())
}

func TestStopPlaybackWaitsForRelease(t *testing.T) {
	player := &fakePlayer{}
	var h hookLog
	m := New(&fakeRecorder{}, player, newMemStore("walk"), h.hooks())
	ctx, _ := startMachine(t, m)

	require.NoError(t, m.Select(ctx, "walk"))
	require.NoError(t, m.TogglePlay(ctx))
	require.NoError(t, m.TogglePlay(ctx))

	assert.True(t, player.released.Load())
	assert.Equal(t, Idle, m.State())

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.finished, 1)
	assert.Equal(t, "walk", h.finished[0].Name)
	assert.NoError(t, h.finished[0].Err)
}

func TestPlayWithoutSelection(t *testing.T) {
	player := &fakePlayer{}
	m := New(&fakeRecorder{}, player, newMemStore("walk"), Hooks{})
	ctx, _ := startMachine(t, m)

	err := m.TogglePlay(ctx)
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Equal(t, Idle, m.State())
	assert.Nil(t, player.played.Load())
}

func TestSelectUnknown(t *testing.T) {
	m := New(&fakeRecorder{}, &fakePlayer{}, newMemStore("walk"), Hooks{})
	ctx, _ := startMachine(t, m)

	err := m.Select(ctx, "run")
	assert.ErrorIs(t, err, ErrUnknownRecording)
	assert.Empty(t, m.Status().Selected)
}

func TestPlaybackFailureReturnsToIdle(t *testing.T) {
	loadErr := &actionlog.MalformedLogError{Line: 1, Reason: "bad header"}
	var h hookLog
	m := New(&fakeRecorder{}, &fakePlayer{err: loadErr}, newMemStore("walk"), h.hooks())
	ctx, _ := startMachine(t, m)

	require.NoError(t, m.Select(ctx, "walk"))
	require.NoError(t, m.TogglePlay(ctx))

	assert.Eventually(t, func() bool { return m.State() == Idle && h.errCount() == 1 },
		time.Second, 5*time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	var malformed *actionlog.MalformedLogError
	assert.True(t, errors.As(h.errs[0], &malformed))
	require.Len(t, h.finished, 1)
	assert.ErrorIs(t, h.finished[0].Err, loadErr)
}

func TestRecordingFailureReturnsToIdle(t *testing.T) {
	var h hookLog
	m := New(&fakeRecorder{err: errors.New("no cursor")}, &fakePlayer{}, newMemStore(), h.hooks())
	ctx, _ := startMachine(t, m)

	require.NoError(t, m.ToggleRecord(ctx, ""))
	assert.Eventually(t, func() bool { return m.State() == Idle && h.errCount() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestSaveFailureReported(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("disk full")
	var h hookLog
	m := New(&fakeRecorder{}, &fakePlayer{}, store, h.hooks())
	ctx, _ := startMachine(t, m)

	require.NoError(t, m.ToggleRecord(ctx, ""))
	err := m.ToggleRecord(ctx, "walk")
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, 1, h.errCount())
}

func TestRejectedNameKeepsRecording(t *testing.T) {
	store, err := storage.NewRecordStore(t.TempDir())
	require.NoError(t, err)
	var h hookLog
	m := New(&fakeRecorder{}, &fakePlayer{}, store, h.hooks())
	ctx, _ := startMachine(t, m)

	require.NoError(t, m.ToggleRecord(ctx, ""))

	err = m.ToggleRecord(ctx, "trip/home")
	assert.ErrorIs(t, err, storage.ErrInvalidName)
	assert.Equal(t, Recording, m.State())

	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, m.ToggleRecord(ctx, "trip home"))
	assert.Equal(t, Idle, m.State())

	names, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"trip home"}, names)
	assert.Equal(t, "trip home", m.Status().Selected)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.saved, 1)
	assert.Equal(t, 2, h.saved[0].Events)
}

func TestSaveFallsBackToGeneratedName(t *testing.T) {
	store := newMemStore()
	store.failName = "walk"
	var h hookLog
	m := New(&fakeRecorder{}, &fakePlayer{}, store, h.hooks())
	fixedNow(m)
	ctx, _ := startMachine(t, m)

	require.NoError(t, m.ToggleRecord(ctx, ""))
	err := m.ToggleRecord(ctx, "walk")
	assert.ErrorContains(t, err, "rename refused")
	assert.ErrorContains(t, err, "saved as record_20240102_030405")
	assert.Equal(t, Idle, m.State())

	_, ok := store.get("record_20240102_030405")
	assert.True(t, ok)
	_, ok = store.get("walk")
	assert.False(t, ok)
	assert.Equal(t, "record_20240102_030405", m.Status().Selected)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.saved, 1)
	assert.Equal(t, "record_20240102_030405", h.saved[0].Name)
	assert.NoError(t, h.saved[0].Err)
}

func TestShutdownSavesRecording(t *testing.T) {
	store := newMemStore()
	m := New(&fakeRecorder{}, &fakePlayer{}, store, Hooks{})
	fixedNow(m)
	ctx, shutdown := startMachine(t, m)

	require.NoError(t, m.ToggleRecord(ctx, ""))
	shutdown()

	data, ok := store.get("record_20240102_030405")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(data, "initialPos:5,6\n"))
	assert.Equal(t, Idle, m.State())
}

func TestSubmitHonoursContext(t *testing.T) {
	m := New(&fakeRecorder{}, &fakePlayer{}, newMemStore(), Hooks{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.ToggleRecord(ctx, ""), context.DeadlineExceeded)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "recording", Recording.String())
	assert.Equal(t, "playing", Playing.String())
}
