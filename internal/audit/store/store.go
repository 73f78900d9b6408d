package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pmckenzie/trustline/internal/audit"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InsertEvent(ctx context.Context, e audit.Event) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encoding event details: %w", err)
	}

	query := `
		INSERT INTO audit_events (actor, action, subject, details, occurred_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`

	if _, err := s.db.ExecContext(ctx, query, e.ActorID, e.Action, e.Subject, details, e.OccurredAt); err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}

	return nil
}
