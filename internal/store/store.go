// Package store provides storage backends for CardDesk.
//
// It archives turn receipts and feedback, deduplicates inbound channel messages,
// and queues outbound channel replies. Conversation state itself is never stored here.
package store

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CardDesk/internal/models"
)

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the Postgres connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// Store is the archive used by the API server and the channel bridges.
type Store interface {
	ArchiveRepo
	DedupRepo
	OutboxRepo
	Close() error
}

// ArchiveRepo stores audit records. Nothing in it is read back into a session.
type ArchiveRepo interface {
	AddTurnReceipt(r models.TurnReceipt) error
	GetTurnReceipts(sessionID string) ([]models.TurnReceipt, error)
	AddFeedback(f models.Feedback) error
	GetFeedback() ([]models.Feedback, error)
}

// DetectDSNType returns the database/sql driver name for a DSN: "postgres" for
// postgres URLs or key=value connection strings, "sqlite3" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// TurnArchiver writes every completed turn to an ArchiveRepo. It satisfies the
// dispatcher's TurnRecorder interface.
type TurnArchiver struct {
	repo ArchiveRepo
}

// NewTurnArchiver wraps repo.
func NewTurnArchiver(repo ArchiveRepo) *TurnArchiver {
	return &TurnArchiver{repo: repo}
}

// RecordTurn archives the receipt.
func (a *TurnArchiver) RecordTurn(ctx context.Context, r models.TurnReceipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.repo.AddTurnReceipt(r)
}

// Open returns the store selected by the DSN: in-memory when none is set, otherwise
// Postgres or SQLite according to DetectDSNType.
func Open(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		slog.Info("Store Open: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	case DetectDSNType(cfg.DSN) == "postgres":
		slog.Info("Store Open: using PostgreSQL store")
		return NewPostgresStore(opts...)
	default:
		slog.Info("Store Open: using SQLite store", "path", cfg.DSN)
		return NewSQLiteStore(opts...)
	}
}
