package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecord(t *testing.T, s *RecordStore, name, body string) {
	t.Helper()
	w, err := s.Create(name)
	require.NoError(t, err)
	_, err = io.WriteString(w, body)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestRecordStoreCreateOpenList(t *testing.T) {
	s, err := NewRecordStore(filepath.Join(t.TempDir(), "records"))
	require.NoError(t, err)

	writeRecord(t, s, "walk", "initialPos:1,2\n")
	writeRecord(t, s, "farm loop", "initialPos:3,4\n")
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "sub.record"), 0755))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"farm loop", "walk"}, names)

	rc, err := s.Open("walk")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "initialPos:1,2\n", string(data))

	assert.True(t, s.Exists("walk"))
	assert.False(t, s.Exists("run"))
}

func TestRecordStoreCreateReplacesOnClose(t *testing.T) {
	s, err := NewRecordStore(t.TempDir())
	require.NoError(t, err)

	writeRecord(t, s, "walk", "old")

	w, err := s.Create("walk")
	require.NoError(t, err)
	_, err = io.WriteString(w, "new")
	require.NoError(t, err)

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"walk"}, names, "pending writes are not listed")

	data, err := os.ReadFile(filepath.Join(s.Dir(), "walk.record"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	require.NoError(t, w.Close())
	data, err = os.ReadFile(filepath.Join(s.Dir(), "walk.record"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestRecordStoreRejectsPaths(t *testing.T) {
	s, err := NewRecordStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "a/b", `a\b`, "../escape", "trip:home", "what?", "a*", "tab\there", "trailing."} {
		_, err := s.Create(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)

		_, err = s.Open(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)

		assert.ErrorIs(t, s.ValidName(name), ErrInvalidName, name)
		assert.False(t, s.Exists(name), name)
	}

	for _, name := range []string{"walk", "farm loop", "record_20240102_030405", "v1.2"} {
		assert.NoError(t, s.ValidName(name), name)
	}

	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names, "validation never writes")
}

func TestRecordStoreOpenMissing(t *testing.T) {
	s, err := NewRecordStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open("missing")
	require.Error(t, err)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "open", se.Op)
	assert.Equal(t, "missing", se.Name)
	assert.True(t, IsNotExist(err))
}

func TestRecordStoreListMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "records")
	s, err := NewRecordStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	_, err = s.List()
	var se *Error
	assert.True(t, errors.As(err, &se))
}

func TestRecordStoreWatch(t *testing.T) {
	s, err := NewRecordStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	require.NoError(t, s.Watch(ctx, func() { changes.Add(1) }))

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "ignored.txt"), []byte("x"), 0644))
	writeRecord(t, s, "walk", "initialPos:0,0\n")

	assert.Eventually(t, func() bool { return changes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	before := changes.Load()
	require.NoError(t, os.Remove(filepath.Join(s.Dir(), "walk.record")))
	assert.Eventually(t, func() bool { return changes.Load() > before }, 2*time.Second, 10*time.Millisecond)
}
