// Package workspace maps plan steps to isolated branch/worktree pairs.
package workspace

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Ledger is the small persistent store backing workspace-name uniqueness and
// run history. SQLite keeps it safe against partial writes without inventing
// a file format.
type Ledger struct {
	conn *sql.DB
	mu   sync.Mutex
}

// RunRecord is one orchestration run noted in the ledger.
type RunRecord struct {
	ID        string
	Title     string
	StartedAt time.Time
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS workspace_names (
	name       TEXT PRIMARY KEY,
	branch     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// OpenLedger opens (creating if necessary) the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec(ledgerSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{conn: conn}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.conn.Close()
}

// NameTaken reports whether a workspace name has already been handed out.
func (l *Ledger) NameTaken(name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var count int
	err := l.conn.QueryRow("SELECT COUNT(*) FROM workspace_names WHERE name = ?", name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query name: %w", err)
	}
	return count > 0, nil
}

// ReserveName records a workspace name for a branch. Fails if the name is
// already reserved.
func (l *Ledger) ReserveName(name, branch string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.conn.Exec("INSERT INTO workspace_names (name, branch) VALUES (?, ?)", name, branch)
	if err != nil {
		return fmt.Errorf("reserve name %q: %w", name, err)
	}
	return nil
}

// RecordRun notes the start of an orchestration run.
func (l *Ledger) RecordRun(id, title string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.conn.Exec("INSERT INTO runs (id, title) VALUES (?, ?)", id, title)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (l *Ledger) RecentRuns(limit int) ([]RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rows, err := l.conn.Query(
		"SELECT id, title, started_at FROM runs ORDER BY started_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.StartedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
