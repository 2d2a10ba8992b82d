package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"markestedt/keyrecorder/session"
	"markestedt/keyrecorder/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleStatus returns the current session state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleRecords lists the saved recordings
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names, err := s.ctrl.List()
	if err != nil {
		slog.Error("Failed to list recordings", "error", err)
		http.Error(w, "Failed to list recordings", http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}

	writeJSON(w, http.StatusOK, RecordsMessage{Records: names, Selected: s.ctrl.Status().Selected})
}

// handleSelect chooses the recording to play
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.ctrl.Select(r.Context(), req.Name); err != nil {
		if errors.Is(err, session.ErrUnknownRecording) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		slog.Error("Failed to select recording", "error", err, "name", req.Name)
		http.Error(w, "Failed to select recording", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleRecordToggle starts or stops recording. The optional name is used
// when stopping.
func (s *Server) handleRecordToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.ctrl.ToggleRecord(r.Context(), strings.TrimSpace(req.Name)); err != nil {
		if errors.Is(err, storage.ErrInvalidName) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Failed to toggle recording", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handlePlayToggle starts or stops playback of the selected recording
func (s *Server) handlePlayToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.ctrl.TogglePlay(r.Context()); err != nil {
		if errors.Is(err, session.ErrNoSelection) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		slog.Error("Failed to toggle playback", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

const dateLayout = "2006-01-02"

// parseRange reads the optional from/to dates. Both bounds are inclusive
// local calendar days.
func parseRange(r *http.Request) (start, end time.Time, ok bool, err error) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" && to == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, false, errors.New("from and to must be given together")
	}

	start, err = time.ParseInLocation(dateLayout, from, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	end, err = time.ParseInLocation(dateLayout, to, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, false, errors.New("to is before from")
	}
	return start, end.AddDate(0, 0, 1).Add(-time.Second), true, nil
}

// handleStats returns statistics for the last N days, or for from..to when
// both are given
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.db == nil {
		http.Error(w, "History unavailable", http.StatusServiceUnavailable)
		return
	}

	daysStr := r.URL.Query().Get("days")
	days := 7 // default to 7 days
	if daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 {
			days = d
		}
	}

	start, end, ranged, err := parseRange(r)
	if err != nil {
		http.Error(w, "Invalid date range: "+err.Error(), http.StatusBadRequest)
		return
	}

	var overall *storage.OverallStats
	if ranged {
		overall, err = s.db.GetStatsForDateRange(start, end)
	} else {
		overall, err = s.db.GetOverallStats(days)
	}
	if err != nil {
		slog.Error("Failed to get overall stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	daily, err := s.db.GetDailyStats(days)
	if err != nil {
		slog.Error("Failed to get daily stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	logs, err := s.db.GetLogStats(days)
	if err != nil {
		slog.Error("Failed to get recording stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	response := map[string]any{
		"overall": overall,
		"daily":   daily,
		"logs":    logs,
	}
	if ranged {
		response["from"] = start.Format(dateLayout)
		response["to"] = end.Format(dateLayout)
	}

	writeJSON(w, http.StatusOK, response)
}

// handleHistory handles GET and DELETE requests for session history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, "History unavailable", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetHistory(w, r)
	case http.MethodDelete:
		s.handleDeleteHistory(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGetHistory returns paginated session history
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	limit := 50 // default
	offset := 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	sessions, err := s.db.GetSessions(limit, offset)
	if err != nil {
		slog.Error("Failed to get sessions", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []storage.Session{}
	}

	total, err := s.db.GetSessionCount()
	if err != nil {
		slog.Error("Failed to get session count", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	response := map[string]any{
		"sessions": sessions,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	}

	writeJSON(w, http.StatusOK, response)
}

// handleDeleteHistory deletes a session by ID
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	// Extract ID from path (e.g., /api/history/<uuid>)
	id := strings.TrimPrefix(r.URL.Path, "/api/history/")
	if id == "" || id == r.URL.Path || strings.Contains(id, "/") {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	if err := s.db.DeleteSession(id); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to delete session", "error", err, "id", id)
		http.Error(w, "Failed to delete session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
