package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/pmckenzie/trustline/internal/invoice"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectInvoiceColumns = `
	id, conversation_id, creator_id, recipient_id, amount_cents, currency,
	description, status, service_fee_cents, escrow_cents, refunded_cents,
	fee_rate, escrow_account, created_at, accepted_at, released_at, cancelled_at
`

// scanInvoice reads an invoice row in selectInvoiceColumns order.
func scanInvoice(s scanner) (*invoice.Invoice, error) {
	var inv invoice.Invoice

	var statusStr string

	var escrowAccount sql.NullString

	if err := s.Scan(
		&inv.ID, &inv.ConversationID, &inv.CreatorID, &inv.RecipientID,
		&inv.AmountCents, &inv.Currency, &inv.Description, &statusStr,
		&inv.ServiceFeeCents, &inv.EscrowCents, &inv.RefundedCents,
		&inv.FeeRate, &escrowAccount,
		&inv.CreatedAt, &inv.AcceptedAt, &inv.ReleasedAt, &inv.CancelledAt,
	); err != nil {
		return nil, err
	}

	inv.Status = invoice.Status(statusStr)
	inv.EscrowAccount = escrowAccount.String

	return &inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (conversation_id, creator_id, recipient_id, amount_cents, currency, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		inv.ConversationID,
		inv.CreatorID,
		inv.RecipientID,
		inv.AmountCents,
		inv.Currency,
		inv.Description,
		inv.Status,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating invoice: %w", err)
	}

	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, invoice.ErrNotFound
		}

		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	return inv, nil
}

func (s *Store) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices
		WHERE conversation_id = $1
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invs []*invoice.Invoice

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}

		invs = append(invs, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoice rows: %w", err)
	}

	return invs, nil
}

// ApplyTransition writes the invoice's mutable fields in one statement
// conditioned on the stored status still being expected, so no reader ever
// observes a partially updated row and racing writers get exactly one
// winner. Zero affected rows means either the row vanished (ErrNotFound) or
// the status moved first (ErrConflict).
func (s *Store) ApplyTransition(ctx context.Context, inv *invoice.Invoice, expected invoice.Status) error {
	query := `
		UPDATE invoices
		SET status = $1, service_fee_cents = $2, escrow_cents = $3, refunded_cents = $4,
			fee_rate = $5, escrow_account = $6, accepted_at = $7, released_at = $8, cancelled_at = $9
		WHERE id = $10 AND status = $11
	`

	var escrowAccount sql.NullString
	if inv.EscrowAccount != "" {
		escrowAccount = sql.NullString{String: inv.EscrowAccount, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, query,
		inv.Status,
		inv.ServiceFeeCents,
		inv.EscrowCents,
		inv.RefundedCents,
		inv.FeeRate,
		escrowAccount,
		inv.AcceptedAt,
		inv.ReleasedAt,
		inv.CancelledAt,
		inv.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("applying transition: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("applying transition: %w", err)
	}

	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, inv.ID).Scan(&exists); err != nil {
			return fmt.Errorf("checking invoice existence: %w", err)
		}

		if !exists {
			return invoice.ErrNotFound
		}

		return invoice.ErrConflict
	}

	return nil
}
