// Package store persists conversation context and a mutation audit
// trail in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

const contextDepth = 10

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

// AuditEntry is one applied cell mutation, tagged with the batch that
// carried it.
type AuditEntry struct {
	BatchID   string
	User      int64
	Name      string
	Date      string
	Old       string
	New       string
	AppliedAt time.Time
}

// New opens or creates the database at path and prepares the schema.
func New(path string, log *zap.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		log.Debug("failed to set sqlite synchronous=NORMAL", zap.Error(err))
	}

	s := &Store{db: db, log: log}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_context (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		message TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_context_user ON user_context(user_id);

	CREATE TABLE IF NOT EXISTS mutation_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_batch ON mutation_audit(batch_id);
	CREATE INDEX IF NOT EXISTS idx_audit_user ON mutation_audit(user_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendContext records a user's utterance and trims the per-user
// backlog to the last few entries.
func (s *Store) AppendContext(user int64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(
		"INSERT INTO user_context (user_id, message) VALUES (?, ?)",
		user, message); err != nil {
		return fmt.Errorf("failed to append context: %w", err)
	}
	_, err := s.db.Exec(`
		DELETE FROM user_context WHERE user_id = ? AND id NOT IN (
			SELECT id FROM user_context WHERE user_id = ?
			ORDER BY id DESC LIMIT ?)`,
		user, user, contextDepth)
	if err != nil {
		return fmt.Errorf("failed to trim context: %w", err)
	}
	return nil
}

// RecentContext returns the user's last n utterances, oldest first.
func (s *Store) RecentContext(user int64, n int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT message FROM (
			SELECT id, message FROM user_context WHERE user_id = ?
			ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC`, user, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query context: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("failed to scan context row: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// RecordMutations writes one audit row per applied update under the
// given batch id.
func (s *Store) RecordMutations(batchID string, user int64, applied []schedule.Update, old map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO mutation_audit (batch_id, user_id, name, date, old_value, new_value)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range applied {
		if _, err := stmt.Exec(batchID, user, u.Name, u.Date, old[u.Name+"_"+u.Date], u.Value); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert audit row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}
	return nil
}

// BatchMutations returns the audit rows for one batch, oldest first.
func (s *Store) BatchMutations(batchID string) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT batch_id, user_id, name, date, old_value, new_value, applied_at
		FROM mutation_audit WHERE batch_id = ? ORDER BY id ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.BatchID, &e.User, &e.Name, &e.Date, &e.Old, &e.New, &e.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
