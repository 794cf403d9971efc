// This file implements an SQLite-backed archive.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/CardDesk/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store. The DSN is a file path; its directory
// is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "dir", dir)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddTurnReceipt(r models.TurnReceipt) error {
	_, err := s.db.Exec(`INSERT INTO turn_receipts (session_id, channel, utterance, reply, intent, time) VALUES (?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Channel, r.Utterance, r.Reply, r.Intent, r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddTurnReceipt failed", "error", err, "sessionID", r.SessionID)
		return fmt.Errorf("failed to insert turn receipt for %s: %w", r.SessionID, err)
	}
	slog.Debug("SQLiteStore AddTurnReceipt succeeded", "sessionID", r.SessionID, "intent", r.Intent)
	return nil
}

// GetTurnReceipts returns receipts for sessionID in insertion order, or all receipts
// when sessionID is empty.
func (s *SQLiteStore) GetTurnReceipts(sessionID string) ([]models.TurnReceipt, error) {
	query := `SELECT session_id, channel, utterance, reply, intent, time FROM turn_receipts`
	var args []interface{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetTurnReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query turn receipts: %w", err)
	}
	defer rows.Close()
	return scanTurnReceipts(rows)
}

func (s *SQLiteStore) AddFeedback(f models.Feedback) error {
	_, err := s.db.Exec(`INSERT INTO feedback (session_id, rating, comment, time) VALUES (?, ?, ?, ?)`,
		f.SessionID, f.Rating, f.Comment, f.Time)
	if err != nil {
		slog.Error("SQLiteStore AddFeedback failed", "error", err, "sessionID", f.SessionID)
		return fmt.Errorf("failed to insert feedback for %s: %w", f.SessionID, err)
	}
	slog.Debug("SQLiteStore AddFeedback succeeded", "sessionID", f.SessionID, "rating", f.Rating)
	return nil
}

func (s *SQLiteStore) GetFeedback() ([]models.Feedback, error) {
	rows, err := s.db.Query(`SELECT session_id, rating, comment, time FROM feedback ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore GetFeedback query failed", "error", err)
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()
	return scanFeedback(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	} else {
		slog.Debug("SQLite database connection closed successfully")
	}
	return err
}
