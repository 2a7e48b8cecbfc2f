// Package audit is a supplemental append-only event log of register/
// heartbeat-miss/unregister/sweep events, queryable by the admin surface.
// It is deliberately NOT the system of record for nodes/licenses (that
// stays JSON-file-backed per spec §4.3) — only history/forensics live here.
// Grounded on the teacher's internal/db (WAL-mode sqlite, single writer).
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Log is an append-only event journal backed by SQLite.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the audit database at path with WAL mode enabled.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		ts            DATETIME NOT NULL,
		kind          TEXT NOT NULL,
		node_id       TEXT,
		license_code  TEXT,
		detail        TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	return &Log{db: db}, nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

// Kind enumerates the event kinds recorded.
type Kind string

const (
	KindRegister      Kind = "register"
	KindHeartbeatMiss Kind = "heartbeat_miss"
	KindUnregister    Kind = "unregister"
	KindSweep         Kind = "sweep"
)

// Record appends one event. Failures are logged by the caller, never
// propagated — an audit-log write must never break the protocol operation
// it's observing.
func (l *Log) Record(kind Kind, nodeID, licenseCode, detail string) error {
	_, err := l.db.Exec(
		`INSERT INTO events (ts, kind, node_id, license_code, detail) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC(), string(kind), nodeID, licenseCode, detail,
	)
	return err
}

// Event is one row from the log, for the admin listing endpoint.
type Event struct {
	ID          int64     `json:"id"`
	Ts          time.Time `json:"ts"`
	Kind        string    `json:"kind"`
	NodeID      string    `json:"nodeId,omitempty"`
	LicenseCode string    `json:"licenseCode,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

// Recent returns up to limit most recent events, newest first.
func (l *Log) Recent(limit int) ([]Event, error) {
	rows, err := l.db.Query(
		`SELECT id, ts, kind, COALESCE(node_id,''), COALESCE(license_code,''), COALESCE(detail,'')
		 FROM events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Ts, &e.Kind, &e.NodeID, &e.LicenseCode, &e.Detail); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
