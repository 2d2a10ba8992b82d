package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"markestedt/keyrecorder/session"
	"markestedt/keyrecorder/storage"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		host, _, err := net.SplitHostPort(r.Host)
		if err != nil {
			host = r.Host
		}
		return host == "localhost" || host == "127.0.0.1"
	},
}

// Controller is the session surface the dashboard drives
type Controller interface {
	Status() session.Status
	List() ([]string, error)
	Select(ctx context.Context, name string) error
	ToggleRecord(ctx context.Context, name string) error
	TogglePlay(ctx context.Context) error
}

// Journal is the session history store
type Journal interface {
	GetSessions(limit, offset int) ([]storage.Session, error)
	GetSessionCount() (int, error)
	DeleteSession(id string) error
	GetOverallStats(days int) (*storage.OverallStats, error)
	GetStatsForDateRange(start, end time.Time) (*storage.OverallStats, error)
	GetDailyStats(days int) ([]storage.DailyStats, error)
	GetLogStats(days int) ([]storage.LogStats, error)
}

// Server represents the web server
type Server struct {
	ctrl Controller
	db   Journal
	port int
	hub  *Hub
}

// NewServer creates a new web server. db may be nil when the journal is
// unavailable.
func NewServer(ctrl Controller, db Journal, port int) *Server {
	hub := NewHub()
	go hub.Run()

	return &Server{
		ctrl: ctrl,
		db:   db,
		port: port,
		hub:  hub,
	}
}

// Handler returns the routes served by Start
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/records", s.handleRecords)
	mux.HandleFunc("/api/select", s.handleSelect)
	mux.HandleFunc("/api/record/toggle", s.handleRecordToggle)
	mux.HandleFunc("/api/play/toggle", s.handlePlayToggle)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/history/", s.handleHistory)
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	return mux, nil
}

// Start serves the dashboard on localhost until ctx is done
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.hub.Close()
	}()

	slog.Info("Starting web server", "port", s.port, "url", s.URL())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// URL returns the dashboard address
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// BroadcastStatus broadcasts the session state to all connected clients
func (s *Server) BroadcastStatus(status session.Status) {
	s.hub.BroadcastMessage(Message{
		Type: MessageTypeStatus,
		Data: status,
	})
}

// BroadcastRecords broadcasts the recording list to all connected clients
func (s *Server) BroadcastRecords() {
	names, err := s.ctrl.List()
	if err != nil {
		slog.Error("Failed to list recordings", "error", err)
		return
	}
	s.hub.BroadcastMessage(Message{
		Type: MessageTypeRecords,
		Data: RecordsMessage{Records: names, Selected: s.ctrl.Status().Selected},
	})
}

// BroadcastSession broadcasts a finished session to all connected clients
func (s *Server) BroadcastSession(sess storage.Session) {
	s.hub.BroadcastMessage(Message{
		Type: MessageTypeSession,
		Data: sess,
	})
}

// BroadcastError broadcasts a failure to all connected clients
func (s *Server) BroadcastError(err error) {
	s.hub.BroadcastMessage(Message{
		Type: MessageTypeError,
		Data: ErrorMessage{Error: err.Error()},
	})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()

	// New clients get the current state straight away
	s.BroadcastStatus(s.ctrl.Status())
}
