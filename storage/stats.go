package storage

import (
	"fmt"
	"time"
)

// DailyStats represents statistics for a single day
type DailyStats struct {
	Date         string
	Recordings   int
	Playbacks    int
	SuccessCount int
	FailureCount int
}

// LogStats represents statistics grouped by recording name
type LogStats struct {
	LogName       string
	Playbacks     int
	TotalPlayedMs int64
	FailureCount  int
}

// OverallStats represents overall statistics
type OverallStats struct {
	TotalSessions   int
	Recordings      int
	Playbacks       int
	SuccessCount    int
	FailureCount    int
	TotalEvents     int64
	AvgRecordingMs  float64
	TotalRecordedMs int64
	TotalPlayedMs   int64
}

// GetDailyStats retrieves statistics grouped by date for the last N days
func (db *DB) GetDailyStats(days int) ([]DailyStats, error) {
	query := `
		SELECT
			DATE(started_at) as date,
			SUM(CASE WHEN kind = 'record' THEN 1 ELSE 0 END) as recordings,
			SUM(CASE WHEN kind = 'play' THEN 1 ELSE 0 END) as playbacks,
			SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END) as success_count,
			SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) as failure_count
		FROM sessions
		WHERE started_at >= datetime('now', '-' || ? || ' days')
		GROUP BY DATE(started_at)
		ORDER BY date DESC
	`

	rows, err := db.conn.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStats
	for rows.Next() {
		var s DailyStats
		err := rows.Scan(&s.Date, &s.Recordings, &s.Playbacks, &s.SuccessCount, &s.FailureCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetLogStats retrieves playback statistics grouped by recording for the last N days
func (db *DB) GetLogStats(days int) ([]LogStats, error) {
	query := `
		SELECT
			log_name,
			COUNT(*) as playbacks,
			COALESCE(SUM(duration_ms), 0) as total_played_ms,
			SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) as failure_count
		FROM sessions
		WHERE kind = 'play' AND started_at >= datetime('now', '-' || ? || ' days')
		GROUP BY log_name
		ORDER BY playbacks DESC, log_name
	`

	rows, err := db.conn.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query log stats: %w", err)
	}
	defer rows.Close()

	var stats []LogStats
	for rows.Next() {
		var s LogStats
		err := rows.Scan(&s.LogName, &s.Playbacks, &s.TotalPlayedMs, &s.FailureCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

const overallColumns = `
	COUNT(*) as total_sessions,
	COALESCE(SUM(CASE WHEN kind = 'record' THEN 1 ELSE 0 END), 0) as recordings,
	COALESCE(SUM(CASE WHEN kind = 'play' THEN 1 ELSE 0 END), 0) as playbacks,
	COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0) as success_count,
	COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0) as failure_count,
	COALESCE(SUM(event_count), 0) as total_events,
	COALESCE(AVG(CASE WHEN kind = 'record' THEN duration_ms END), 0) as avg_recording_ms,
	COALESCE(SUM(CASE WHEN kind = 'record' THEN duration_ms ELSE 0 END), 0) as total_recorded_ms,
	COALESCE(SUM(CASE WHEN kind = 'play' THEN duration_ms ELSE 0 END), 0) as total_played_ms
`

// GetOverallStats retrieves overall statistics for the last N days
func (db *DB) GetOverallStats(days int) (*OverallStats, error) {
	query := `SELECT` + overallColumns + `
		FROM sessions
		WHERE started_at >= datetime('now', '-' || ? || ' days')
	`

	var stats OverallStats
	if err := db.scanOverall(&stats, query, days); err != nil {
		return nil, fmt.Errorf("failed to query overall stats: %w", err)
	}

	return &stats, nil
}

// GetStatsForDateRange retrieves overall stats for a custom date range
func (db *DB) GetStatsForDateRange(startTime, endTime time.Time) (*OverallStats, error) {
	query := `SELECT` + overallColumns + `
		FROM sessions
		WHERE started_at >= ? AND started_at <= ?
	`

	var stats OverallStats
	if err := db.scanOverall(&stats, query, startTime.UTC().Format(timeLayout), endTime.UTC().Format(timeLayout)); err != nil {
		return nil, fmt.Errorf("failed to query date range stats: %w", err)
	}

	return &stats, nil
}

func (db *DB) scanOverall(stats *OverallStats, query string, args ...any) error {
	return db.conn.QueryRow(query, args...).Scan(
		&stats.TotalSessions,
		&stats.Recordings,
		&stats.Playbacks,
		&stats.SuccessCount,
		&stats.FailureCount,
		&stats.TotalEvents,
		&stats.AvgRecordingMs,
		&stats.TotalRecordedMs,
		&stats.TotalPlayedMs,
	)
}
