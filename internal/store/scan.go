package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/CardDesk/internal/models"
)

// nilIfEmpty maps "" to NULL for nullable columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func scanTurnReceipts(rows *sql.Rows) ([]models.TurnReceipt, error) {
	var out []models.TurnReceipt
	for rows.Next() {
		var r models.TurnReceipt
		if err := rows.Scan(&r.SessionID, &r.Channel, &r.Utterance, &r.Reply, &r.Intent, &r.Time); err != nil {
			return nil, fmt.Errorf("failed to scan turn receipt row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn receipt rows: %w", err)
	}
	return out, nil
}

func scanFeedback(rows *sql.Rows) ([]models.Feedback, error) {
	var out []models.Feedback
	for rows.Next() {
		var f models.Feedback
		if err := rows.Scan(&f.SessionID, &f.Rating, &f.Comment, &f.Time); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}
	return out, nil
}

const outboxColumns = `id, channel, recipient, body, status, attempts, next_attempt_at, dedupe_key, locked_at, last_error, created_at, updated_at`

func scanOutboxMessage(rows *sql.Rows) (OutboxMessage, error) {
	var m OutboxMessage
	var dedupeKey, lastError sql.NullString
	var nextAttemptAt, lockedAt sql.NullTime
	err := rows.Scan(
		&m.ID, &m.Channel, &m.Recipient, &m.Body, &m.Status, &m.Attempts,
		&nextAttemptAt, &dedupeKey, &lockedAt, &lastError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, fmt.Errorf("scan outbox message failed: %w", err)
	}
	m.DedupeKey = dedupeKey.String
	m.LastError = lastError.String
	if nextAttemptAt.Valid {
		m.NextAttemptAt = &nextAttemptAt.Time
	}
	if lockedAt.Valid {
		m.LockedAt = &lockedAt.Time
	}
	return m, nil
}
