package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/keyrecorder/session"
	"markestedt/keyrecorder/storage"
)

type fakeController struct {
	mu       sync.Mutex
	state    session.State
	selected string
	names    []string
	saved    []string
}

func (c *fakeController) Status() session.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return session.Status{State: c.state, Name: c.state.String(), Selected: c.selected}
}

func (c *fakeController) List() ([]string, error) {
	return c.names, nil
}

func (c *fakeController) Select(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.names {
		if n == name {
			c.selected = name
			return nil
		}
	}
	return session.ErrUnknownRecording
}

func (c *fakeController) ToggleRecord(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case session.Idle:
		c.state = session.Recording
	case session.Recording:
		if strings.Contains(name, "/") {
			c.state = session.Idle
			return &storage.Error{Op: "create", Name: name, Err: storage.ErrInvalidName}
		}
		c.saved = append(c.saved, name)
		c.state = session.Idle
	}
	return nil
}

func (c *fakeController) TogglePlay(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case session.Idle:
		if c.selected == "" {
			return session.ErrNoSelection
		}
		c.state = session.Playing
	case session.Playing:
		c.state = session.Idle
	}
	return nil
}

func newTestServer(t *testing.T, withDB bool) (*Server, *fakeController, *storage.DB, http.Handler) {
	t.Helper()
	ctrl := &fakeController{names: []string{"jump", "walk"}}

	var db *storage.DB
	var journal Journal
	if withDB {
		var err error
		db, err = storage.Open(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		journal = db
	}

	s := NewServer(ctrl, journal, 0)
	t.Cleanup(s.hub.Close)

	h, err := s.Handler()
	require.NoError(t, err)
	return s, ctrl, db, h
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestStatusAndRecords(t *testing.T) {
	_, _, _, h := newTestServer(t, false)

	rec := do(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decode[map[string]any](t, rec)["state"])

	rec = do(t, h, http.MethodGet, "/api/records", "")
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[RecordsMessage](t, rec)
	assert.Equal(t, []string{"jump", "walk"}, records.Records)

	rec = do(t, h, http.MethodPost, "/api/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSelectAndToggle(t *testing.T) {
	_, ctrl, _, h := newTestServer(t, false)

	rec := do(t, h, http.MethodPost, "/api/play/toggle", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/select", `{"name":"run"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/select", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/select", `{"name":"walk"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "walk", decode[map[string]any](t, rec)["selected"])

	rec = do(t, h, http.MethodPost, "/api/play/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "playing", decode[map[string]any](t, rec)["state"])

	rec = do(t, h, http.MethodPost, "/api/play/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decode[map[string]any](t, rec)["state"])

	rec = do(t, h, http.MethodPost, "/api/record/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "recording", decode[map[string]any](t, rec)["state"])

	rec = do(t, h, http.MethodPost, "/api/record/toggle", `{"name":" farm "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"farm"}, ctrl.saved)

	do(t, h, http.MethodPost, "/api/record/toggle", "")
	rec = do(t, h, http.MethodPost, "/api/record/toggle", `{"name":"a/b"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/record/toggle", `{bad`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryUnavailableWithoutJournal(t *testing.T) {
	_, _, _, h := newTestServer(t, false)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/history", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/stats", "").Code)
}

func TestHistoryAndStats(t *testing.T) {
	_, _, db, h := newTestServer(t, true)

	sess := &storage.Session{
		Kind:       storage.KindPlay,
		LogName:    "walk",
		StartedAt:  time.Now(),
		DurationMs: 1500,
		EventCount: 4,
		Success:    true,
	}
	require.NoError(t, db.SaveSession(sess))

	rec := do(t, h, http.MethodGet, "/api/history?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct {
		Sessions []storage.Session `json:"sessions"`
		Total    int               `json:"total"`
		Limit    int               `json:"limit"`
	}](t, rec)
	assert.Equal(t, 1, history.Total)
	assert.Equal(t, 10, history.Limit)
	require.Len(t, history.Sessions, 1)
	assert.Equal(t, sess.ID, history.Sessions[0].ID)

	rec = do(t, h, http.MethodGet, "/api/stats?days=30", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[struct {
		Overall storage.OverallStats `json:"overall"`
		Logs    []storage.LogStats   `json:"logs"`
	}](t, rec)
	assert.Equal(t, 1, stats.Overall.Playbacks)
	require.Len(t, stats.Logs, 1)
	assert.Equal(t, "walk", stats.Logs[0].LogName)

	from := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	to := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	rec = do(t, h, http.MethodGet, "/api/stats?from="+from+"&to="+to, "")
	require.Equal(t, http.StatusOK, rec.Code)
	ranged := decode[struct {
		Overall storage.OverallStats `json:"overall"`
		From    string               `json:"from"`
		To      string               `json:"to"`
	}](t, rec)
	assert.Equal(t, 1, ranged.Overall.Playbacks)
	assert.Equal(t, from, ranged.From)
	assert.Equal(t, to, ranged.To)

	rec = do(t, h, http.MethodGet, "/api/stats?from=2000-01-01&to=2000-12-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[struct {
		Overall storage.OverallStats `json:"overall"`
	}](t, rec).Overall.TotalSessions)

	for _, q := range []string{"from=2000-01-01", "from=yesterday&to=2000-01-01", "from=2000-02-01&to=2000-01-01"} {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/stats?"+q, "").Code, q)
	}

	rec = do(t, h, http.MethodDelete, "/api/history/"+sess.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/history/"+sess.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/history/", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaticIndex(t *testing.T) {
	_, _, _, h := newTestServer(t, false)

	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "KeyRecorder")
}

func TestWebSocketPushes(t *testing.T) {
	s, _, _, h := newTestServer(t, false)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg struct {
			Type MessageType     `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		return Message{Type: msg.Type, Data: msg.Data}
	}

	assert.Equal(t, MessageTypeStatus, read().Type)

	s.BroadcastRecords()
	msg := read()
	require.Equal(t, MessageTypeRecords, msg.Type)
	var records RecordsMessage
	require.NoError(t, json.Unmarshal(msg.Data.(json.RawMessage), &records))
	assert.Equal(t, []string{"jump", "walk"}, records.Records)

	s.BroadcastError(errors.New("disk full"))
	msg = read()
	require.Equal(t, MessageTypeError, msg.Type)
	assert.Contains(t, string(msg.Data.(json.RawMessage)), "disk full")
}
