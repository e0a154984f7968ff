// Package journal keeps a sqlite log of everything the bridge did during a
// dive: connection sessions, button events, dispatched actions, and status
// transitions. Writes are best-effort and never fail the event path; the
// journal exists for post-dive debriefs, not for correctness.
package journal

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/pafech/kraken-bridge/internal/button"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	session_id TEXT NOT NULL,
	at         TIMESTAMP NOT NULL,
	raw        INTEGER NOT NULL,
	identity   TEXT NOT NULL,
	phase      TEXT NOT NULL,
	accepted   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS actions (
	session_id TEXT NOT NULL,
	at         TIMESTAMP NOT NULL,
	kind       TEXT NOT NULL,
	detail     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS status (
	session_id TEXT NOT NULL,
	at         TIMESTAMP NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL
);
`

// Journal is safe for concurrent use; database/sql serializes access.
type Journal struct {
	db  *sql.DB
	log zerolog.Logger

	mu      sync.Mutex
	session string // current session id, "" before the first StartSession
}

func (j *Journal) currentSession() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.session
}

// Open creates or opens the journal database, creating parent directories as
// needed.
func Open(path string, log zerolog.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}
	return &Journal{db: db, log: log}, nil
}

// StartSession opens a new session, returning its id. Called on every BLE
// (re)connect.
func (j *Journal) StartSession() string {
	id := uuid.NewString()
	j.mu.Lock()
	j.session = id
	j.mu.Unlock()
	j.exec("insert session",
		`INSERT INTO sessions (id, started_at) VALUES (?, ?)`, id, time.Now())
	return id
}

// ButtonEvent records one decoded button notification and whether the
// deduplicator accepted it.
func (j *Journal) ButtonEvent(ev button.Event, accepted bool) {
	j.exec("insert event",
		`INSERT INTO events (session_id, at, raw, identity, phase, accepted) VALUES (?, ?, ?, ?, ?, ?)`,
		j.currentSession(), ev.At, int(ev.Raw), ev.Identity.String(), ev.Phase.String(), boolInt(accepted))
}

// Action records one dispatched action.
func (j *Journal) Action(kind, detail string) {
	j.exec("insert action",
		`INSERT INTO actions (session_id, at, kind, detail) VALUES (?, ?, ?, ?)`,
		j.currentSession(), time.Now(), kind, detail)
}

// Status records a connection status transition.
func (j *Journal) Status(status, message string) {
	j.exec("insert status",
		`INSERT INTO status (session_id, at, status, message) VALUES (?, ?, ?, ?)`,
		j.currentSession(), time.Now(), status, message)
}

func (j *Journal) exec(what, query string, args ...any) {
	if _, err := j.db.Exec(query, args...); err != nil {
		j.log.Warn().Err(err).Str("op", what).Msg("journal write failed")
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Dump writes a plain-text debrief of the most recent session to w.
func (j *Journal) Dump(w io.Writer) error {
	var session string
	var started time.Time
	err := j.db.QueryRow(
		`SELECT id, started_at FROM sessions ORDER BY started_at DESC LIMIT 1`).
		Scan(&session, &started)
	if err == sql.ErrNoRows {
		fmt.Fprintln(w, "journal is empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("journal: read sessions: %w", err)
	}

	fmt.Fprintf(w, "session %s started %s\n", session, started.Format(time.RFC3339))

	rows, err := j.db.Query(
		`SELECT at, identity, phase, accepted FROM events WHERE session_id = ? ORDER BY at`, session)
	if err != nil {
		return fmt.Errorf("journal: read events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var at time.Time
		var identity, phase string
		var accepted int
		if err := rows.Scan(&at, &identity, &phase, &accepted); err != nil {
			return err
		}
		note := ""
		if accepted == 0 {
			note = " (duplicate, dropped)"
		}
		fmt.Fprintf(w, "  %s button %s %s%s\n", at.Format("15:04:05.000"), identity, phase, note)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	arows, err := j.db.Query(
		`SELECT at, kind, detail FROM actions WHERE session_id = ? ORDER BY at`, session)
	if err != nil {
		return fmt.Errorf("journal: read actions: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var at time.Time
		var kind, detail string
		if err := arows.Scan(&at, &kind, &detail); err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s action %s %s\n", at.Format("15:04:05.000"), kind, detail)
	}
	return arows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
