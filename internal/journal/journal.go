package journal

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Event is one recorded orchestrator operation.
type Event struct {
	At        time.Time `json:"at"`
	Operation string    `json:"operation"`
	Target    string    `json:"target,omitempty"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
}

// Outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Journal appends operation events to a local SQLite database
// (modernc.org/sqlite, CGO-free). It is strictly best-effort: callers log
// journal errors and move on, an unwritable journal never fails an operation.
type Journal struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the journal at path. Use ":memory:"
// for tests.
func Open(path string) (*Journal, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty journal path")
	}
	// The journal may be opened before the working directory layout exists.
	if p != ":memory:" && !strings.HasPrefix(p, "file:") {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, err
			}
		}
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	_, _ = db.Exec("PRAGMA busy_timeout=3000;")
	schema := `CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TIMESTAMP NOT NULL,
		operation TEXT NOT NULL,
		target TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT ''
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Record appends one event.
func (j *Journal) Record(ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO events(at, operation, target, outcome, detail) VALUES(?,?,?,?,?)`,
		ev.At.UTC(), ev.Operation, ev.Target, ev.Outcome, ev.Detail,
	)
	return err
}

// Recent returns up to n events, newest first.
func (j *Journal) Recent(n int) ([]Event, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := j.db.Query(
		`SELECT at, operation, target, outcome, detail FROM events ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.At, &ev.Operation, &ev.Target, &ev.Outcome, &ev.Detail); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error { return j.db.Close() }
