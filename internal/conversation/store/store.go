package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/pmckenzie/trustline/internal/conversation"
	"github.com/pmckenzie/trustline/internal/invoice"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) IsMember(ctx context.Context, conversationID, accountID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND account_id = $2
		)
	`

	var member bool

	err := s.db.QueryRowContext(ctx, query, conversationID, accountID).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}

	return member, nil
}

func (s *Store) Participants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	query := `
		SELECT account_id, role, joined_at
		FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY joined_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	var participants []conversation.Participant

	for rows.Next() {
		var p conversation.Participant

		var roleStr string

		if err := rows.Scan(&p.AccountID, &roleStr, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}

		p.Role = invoice.Role(roleStr)
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participant rows: %w", err)
	}

	return participants, nil
}
