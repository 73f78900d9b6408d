package invoice

import (
	"time"

	"github.com/google/uuid"

	"github.com/pmckenzie/trustline/internal/invoice"
)

type invoiceResponse struct {
	ID             uuid.UUID      `json:"id"`
	ConversationID uuid.UUID      `json:"conversation_id"`
	CreatorID      uuid.UUID      `json:"creator_id"`
	RecipientID    uuid.UUID      `json:"recipient_id"`
	AmountCents    int64          `json:"amount_cents"`
	Currency       string         `json:"currency"`
	Description    string         `json:"description"`
	Status         invoice.Status `json:"status"`

	ServiceFeeCents int64  `json:"service_fee_cents"`
	EscrowCents     int64  `json:"escrow_cents"`
	RefundedCents   int64  `json:"refunded_cents"`
	FeeRate         string `json:"fee_rate,omitempty"`
	EscrowAccount   string `json:"escrow_account,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func toResponse(inv *invoice.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:              inv.ID,
		ConversationID:  inv.ConversationID,
		CreatorID:       inv.CreatorID,
		RecipientID:     inv.RecipientID,
		AmountCents:     inv.AmountCents,
		Currency:        inv.Currency,
		Description:     inv.Description,
		Status:          inv.Status,
		ServiceFeeCents: inv.ServiceFeeCents,
		EscrowCents:     inv.EscrowCents,
		RefundedCents:   inv.RefundedCents,
		EscrowAccount:   inv.EscrowAccount,
		CreatedAt:       inv.CreatedAt,
		AcceptedAt:      inv.AcceptedAt,
		ReleasedAt:      inv.ReleasedAt,
		CancelledAt:     inv.CancelledAt,
	}

	if !inv.FeeRate.IsZero() {
		resp.FeeRate = inv.FeeRate.String()
	}

	return resp
}

func toResponseList(invs []*invoice.Invoice) []invoiceResponse {
	resp := make([]invoiceResponse, len(invs))
	for i, inv := range invs {
		resp[i] = toResponse(inv)
	}

	return resp
}
