package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"markestedt/keyrecorder/session"
	"markestedt/keyrecorder/storage"
)

func TestSessionEntry(t *testing.T) {
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	rec := sessionEntry(session.Result{
		Kind:      session.Recording,
		Name:      "walk",
		StartedAt: started,
		Duration:  2500 * time.Millisecond,
		Events:    12,
	})
	assert.Equal(t, storage.Session{
		Kind:       storage.KindRecord,
		LogName:    "walk",
		StartedAt:  started,
		DurationMs: 2500,
		EventCount: 12,
		Success:    true,
	}, rec)

	play := sessionEntry(session.Result{
		Kind:      session.Playing,
		Name:      "walk",
		StartedAt: started,
		Err:       errors.New("line 1: bad header"),
	})
	assert.Equal(t, storage.KindPlay, play.Kind)
	assert.False(t, play.Success)
	assert.Equal(t, "line 1: bad header", play.ErrorMessage)
}
