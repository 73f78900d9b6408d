package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pmckenzie/trustline/internal/invoice"
)

// Participant is one account's seat in a conversation.
type Participant struct {
	AccountID uuid.UUID
	Role      invoice.Role
	JoinedAt  time.Time
}

type Repository interface {
	IsMember(ctx context.Context, conversationID, accountID uuid.UUID) (bool, error)
	Participants(ctx context.Context, conversationID uuid.UUID) ([]Participant, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// IsMember reports whether the account participates in the conversation.
func (s *Service) IsMember(ctx context.Context, conversationID, accountID uuid.UUID) (bool, error) {
	return s.repo.IsMember(ctx, conversationID, accountID)
}

// Participants returns the conversation's member list.
func (s *Service) Participants(ctx context.Context, conversationID uuid.UUID) ([]Participant, error) {
	return s.repo.Participants(ctx, conversationID)
}
