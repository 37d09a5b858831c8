// Package db persists session lifecycle and drift events to sqlite. It is an
// audit log, not recovery state: the daemon never reads it back to restore
// in-memory state after a restart.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/benchbot-data/simd/internal/pose"
)

// DB wraps the sqlite connection.
type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the sqlite store at path and applies pending
// schema migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	// One writer at a time; the daemon is effectively single-threaded behind
	// the scheduler lock anyway.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	db := &DB{conn}
	if err := db.MigrateUp(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// SessionStarted records the start of a simulation session.
func (db *DB) SessionStarted(id, mapAsset, robotAsset string, placement pose.Pose) error {
	_, err := db.Exec(`
		INSERT INTO sessions (session_id, map_asset, robot_asset, placement_pose)
		VALUES (?, ?, ?, ?)`,
		id, mapAsset, robotAsset, placement.String())
	if err != nil {
		return fmt.Errorf("failed to record session start: %w", err)
	}
	return nil
}

// SessionStopped stamps the session's stop time.
func (db *DB) SessionStopped(id string) error {
	_, err := db.Exec(`UPDATE sessions SET stopped_at = CURRENT_TIMESTAMP WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to record session stop: %w", err)
	}
	return nil
}

// Event records a lifecycle or drift event. sessionID may be empty for
// instance-level events.
func (db *DB) Event(sessionID, kind, detail string) error {
	var sid interface{}
	if sessionID != "" {
		sid = sessionID
	}
	_, err := db.Exec(`INSERT INTO events (session_id, kind, detail) VALUES (?, ?, ?)`,
		sid, kind, detail)
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", kind, err)
	}
	return nil
}

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	SessionID     string     `json:"session_id"`
	MapAsset      string     `json:"map_asset"`
	RobotAsset    string     `json:"robot_asset"`
	PlacementPose string     `json:"placement_pose"`
	StartedAt     time.Time  `json:"started_at"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty"`
}

// ListSessions returns the most recent sessions, newest first.
func (db *DB) ListSessions(limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT session_id, map_asset, robot_asset, placement_pose, started_at, stopped_at
		FROM sessions ORDER BY started_at DESC, session_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		var stopped sql.NullTime
		if err := rows.Scan(&r.SessionID, &r.MapAsset, &r.RobotAsset, &r.PlacementPose, &r.StartedAt, &stopped); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		if stopped.Valid {
			t := stopped.Time
			r.StoppedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// EventRecord is one row of the events table.
type EventRecord struct {
	SessionID string    `json:"session_id,omitempty"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListEvents returns a session's events in insertion order. An empty
// sessionID selects instance-level events.
func (db *DB) ListEvents(sessionID string) ([]EventRecord, error) {
	var rows *sql.Rows
	var err error
	if sessionID == "" {
		rows, err = db.Query(`
			SELECT COALESCE(session_id, ''), kind, COALESCE(detail, ''), created_at
			FROM events WHERE session_id IS NULL ORDER BY event_id`)
	} else {
		rows, err = db.Query(`
			SELECT COALESCE(session_id, ''), kind, COALESCE(detail, ''), created_at
			FROM events WHERE session_id = ? ORDER BY event_id`, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var r EventRecord
		if err := rows.Scan(&r.SessionID, &r.Kind, &r.Detail, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
