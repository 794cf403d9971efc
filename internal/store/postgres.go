// This file implements a PostgreSQL-backed archive.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/CardDesk/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddTurnReceipt(r models.TurnReceipt) error {
	_, err := s.db.Exec(`INSERT INTO turn_receipts (session_id, channel, utterance, reply, intent, time) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.SessionID, r.Channel, r.Utterance, r.Reply, r.Intent, r.Time)
	if err != nil {
		slog.Error("PostgresStore AddTurnReceipt failed", "error", err, "sessionID", r.SessionID)
		return fmt.Errorf("failed to insert turn receipt for %s: %w", r.SessionID, err)
	}
	slog.Debug("PostgresStore AddTurnReceipt succeeded", "sessionID", r.SessionID, "intent", r.Intent)
	return nil
}

func (s *PostgresStore) GetTurnReceipts(sessionID string) ([]models.TurnReceipt, error) {
	query := `SELECT session_id, channel, utterance, reply, intent, time FROM turn_receipts`
	var args []interface{}
	if sessionID != "" {
		query += ` WHERE session_id = $1`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore GetTurnReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query turn receipts: %w", err)
	}
	defer rows.Close()
	return scanTurnReceipts(rows)
}

func (s *PostgresStore) AddFeedback(f models.Feedback) error {
	_, err := s.db.Exec(`INSERT INTO feedback (session_id, rating, comment, time) VALUES ($1, $2, $3, $4)`,
		f.SessionID, f.Rating, f.Comment, f.Time)
	if err != nil {
		slog.Error("PostgresStore AddFeedback failed", "error", err, "sessionID", f.SessionID)
		return fmt.Errorf("failed to insert feedback for %s: %w", f.SessionID, err)
	}
	slog.Debug("PostgresStore AddFeedback succeeded", "sessionID", f.SessionID, "rating", f.Rating)
	return nil
}

func (s *PostgresStore) GetFeedback() ([]models.Feedback, error) {
	rows, err := s.db.Query(`SELECT session_id, rating, comment, time FROM feedback ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore GetFeedback query failed", "error", err)
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()
	return scanFeedback(rows)
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
