package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of an invoice.
type Status string

const (
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusReleased  Status = "released"
	StatusCancelled Status = "cancelled"
)

// Invoice is a request for payment between two conversation participants.
// All monetary fields are integer cents; ServiceFeeCents and EscrowCents
// partition AmountCents exactly once the invoice is accepted.
type Invoice struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	CreatorID      uuid.UUID
	RecipientID    uuid.UUID
	AmountCents    int64
	Currency       string
	Description    string
	Status         Status

	ServiceFeeCents int64
	EscrowCents     int64
	RefundedCents   int64

	// FeeRate and EscrowAccount are captured from the platform settings at
	// acceptance and never change afterwards.
	FeeRate       decimal.Decimal
	EscrowAccount string

	CreatedAt   time.Time
	AcceptedAt  *time.Time
	ReleasedAt  *time.Time
	CancelledAt *time.Time
}

// Terminal reports whether no further transition exists out of the
// invoice's current status.
func (inv *Invoice) Terminal() bool {
	return inv.Status == StatusReleased || inv.Status == StatusCancelled
}
