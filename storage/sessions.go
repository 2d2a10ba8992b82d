package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session kinds.
const (
	KindRecord = "record"
	KindPlay   = "play"
)

// timeLayout matches what SQLite date functions expect.
const timeLayout = "2006-01-02 15:04:05"

// Session is one journaled recording or playback run
type Session struct {
	ID           string
	Kind         string
	LogName      string
	StartedAt    time.Time
	DurationMs   int64
	EventCount   int
	Success      bool
	ErrorMessage string
}

// SaveSession saves a session to the database, assigning an ID if it has none
func (db *DB) SaveSession(s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	query := `
		INSERT INTO sessions (
			id, kind, log_name, started_at, duration_ms, event_count,
			success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.Exec(query,
		s.ID, s.Kind, s.LogName, s.StartedAt.UTC().Format(timeLayout), s.DurationMs, s.EventCount,
		s.Success, s.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// GetSessions retrieves sessions with pagination, newest first
func (db *DB) GetSessions(limit, offset int) ([]Session, error) {
	query := `
		SELECT
			id, kind, log_name, started_at, duration_ms, event_count,
			success, error_message
		FROM sessions
		ORDER BY started_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var errorMessage sql.NullString

		err := rows.Scan(
			&s.ID, &s.Kind, &s.LogName, &s.StartedAt, &s.DurationMs, &s.EventCount,
			&s.Success, &errorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		if errorMessage.Valid {
			s.ErrorMessage = errorMessage.String
		}

		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// DeleteSession deletes a session by ID
func (db *DB) DeleteSession(id string) error {
	query := `DELETE FROM sessions WHERE id = ?`

	result, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// GetSessionCount returns the total number of sessions
func (db *DB) GetSessionCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count)
	return count, err
}
