package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore records inbound message ids that were already turned into dialogue turns,
// so a redelivered webhook or queue message is not applied twice.
type ProcessedStore struct {
	db rowQuerier
}

func NewProcessedStore(db rowQuerier) *ProcessedStore {
	if db == nil {
		panic("events: db required")
	}
	return &ProcessedStore{db: db}
}

// AlreadyProcessed checks if we've seen this source message id.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, source, messageID string) (bool, error) {
	query := `SELECT 1 FROM processed_messages WHERE source = $1 AND message_id = $2`
	var exists int
	if err := s.db.QueryRow(ctx, query, source, messageID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts a message id, returning false if it already exists.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, source, messageID string) (bool, error) {
	query := `
		INSERT INTO processed_messages (source, message_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.db.Exec(ctx, query, source, messageID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
