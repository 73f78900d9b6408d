package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=invoice
type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*Invoice, error)

	// ApplyTransition persists the invoice's mutable fields in a single
	// statement conditioned on the stored status still being expected.
	// It returns ErrConflict when the status moved underneath us and
	// ErrNotFound when the row is gone.
	ApplyTransition(ctx context.Context, inv *Invoice, expected Status) error
}

// FeePolicy is the platform's cut and trust account label in force at the
// moment money moves.
type FeePolicy struct {
	Rate          decimal.Decimal
	EscrowAccount string
}

// FeePolicySource supplies the current fee policy. It is queried once, at
// acceptance, never at creation.
type FeePolicySource interface {
	FeePolicy(ctx context.Context) (FeePolicy, error)
}

// Membership answers whether an account participates in a conversation.
type Membership interface {
	IsMember(ctx context.Context, conversationID, accountID uuid.UUID) (bool, error)
}

// AuditLog records a transition for compliance review. Implementations must
// not fail the transition; a sink outage is handled inside the emitter.
type AuditLog interface {
	Record(ctx context.Context, actorID uuid.UUID, action string, subject string, details map[string]any)
}

type Service struct {
	repo    Repository
	members Membership
	fees    FeePolicySource
	audit   AuditLog
}

func NewService(repo Repository, members Membership, fees FeePolicySource, audit AuditLog) *Service {
	return &Service{repo: repo, members: members, fees: fees, audit: audit}
}

type CreateParams struct {
	ConversationID uuid.UUID
	RecipientID    uuid.UUID
	AmountCents    int64
	Currency       string
	Description    string
}

// Create issues a new invoice from the actor to the recipient inside an
// existing conversation. The invoice starts in StatusSent with no fee or
// escrow attached; the fee policy is not consulted until acceptance.
func (s *Service) Create(ctx context.Context, actor Actor, params CreateParams) (*Invoice, error) {
	if params.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := currency.ParseISO(params.Currency); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCurrency, params.Currency)
	}

	if !CanTransition(nil, actor, OpCreate) {
		return nil, ErrForbidden
	}

	if actor.ID == params.RecipientID {
		return nil, ErrInvalidParticipants
	}

	for _, accountID := range []uuid.UUID{actor.ID, params.RecipientID} {
		member, err := s.members.IsMember(ctx, params.ConversationID, accountID)
		if err != nil {
			return nil, fmt.Errorf("checking conversation membership: %w", err)
		}

		if !member {
			return nil, ErrInvalidParticipants
		}
	}

	inv := &Invoice{
		ConversationID: params.ConversationID,
		CreatorID:      actor.ID,
		RecipientID:    params.RecipientID,
		AmountCents:    params.AmountCents,
		Currency:       params.Currency,
		Description:    params.Description,
		Status:         StatusSent,
	}

	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("creating invoice: %w", err)
	}

	s.audit.Record(ctx, actor.ID, "invoice.created", inv.ID.String(), map[string]any{
		"conversation_id": inv.ConversationID.String(),
		"recipient_id":    inv.RecipientID.String(),
		"amount_cents":    inv.AmountCents,
		"currency":        inv.Currency,
	})

	return inv, nil
}

// Accept locks in the current fee policy and moves the invoice from sent to
// accepted. The fee split is computed from the policy rate in force now, not
// at creation, and is frozen on the row together with the rate and the trust
// account label.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, actor Actor) (*Invoice, error) {
	return s.transition(ctx, id, actor, OpAccept, []Status{StatusSent}, func(inv *Invoice) error {
		policy, err := s.fees.FeePolicy(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPolicyUnavailable, err)
		}

		fee, escrow := SplitFee(inv.AmountCents, policy.Rate)

		now := time.Now().UTC()
		inv.Status = StatusAccepted
		inv.ServiceFeeCents = fee
		inv.EscrowCents = escrow
		inv.FeeRate = policy.Rate
		inv.EscrowAccount = policy.EscrowAccount
		inv.AcceptedAt = &now

		return nil
	})
}

// Release moves an accepted invoice to released, recording that the escrow
// balance is authorized to move to the provider. The engine does not move
// money itself; the settlement rail consumes the recorded transition.
func (s *Service) Release(ctx context.Context, id uuid.UUID, actor Actor) (*Invoice, error) {
	return s.transition(ctx, id, actor, OpRelease, []Status{StatusAccepted}, func(inv *Invoice) error {
		now := time.Now().UTC()
		inv.Status = StatusReleased
		inv.ReleasedAt = &now

		return nil
	})
}

// Cancel moves a sent or accepted invoice to cancelled. When funds were
// already held the full escrow balance is returned to the payer; the service
// fee is retained.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*Invoice, error) {
	return s.transition(ctx, id, actor, OpCancel, []Status{StatusSent, StatusAccepted}, func(inv *Invoice) error {
		now := time.Now().UTC()
		if inv.Status == StatusAccepted {
			inv.RefundedCents = inv.EscrowCents
		}

		inv.Status = StatusCancelled
		inv.CancelledAt = &now

		return nil
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*Invoice, error) {
	return s.repo.ListByConversation(ctx, conversationID)
}

// transitionAttempts bounds the compare-and-set loop: the initial attempt
// plus one retry after losing a race.
const transitionAttempts = 2

// transition runs the load / guard / compute / compare-and-set cycle shared
// by every state change. The apply function mutates a fresh snapshot; the
// write is conditioned on the stored status still matching the snapshot, so
// two racing transitions have exactly one winner. The whole operation is
// retried once when the race is lost; a reload that shows a status outside
// `from` fails with ErrInvalidState instead.
func (s *Service) transition(ctx context.Context, id uuid.UUID, actor Actor, op Op, from []Status, apply func(*Invoice) error) (*Invoice, error) {
	for attempt := 0; attempt < transitionAttempts; attempt++ {
		inv, err := s.repo.GetInvoice(ctx, id)
		if err != nil {
			return nil, err
		}

		if !CanTransition(inv, actor, op) {
			return nil, ErrForbidden
		}

		expected := inv.Status
		if !statusIn(expected, from) {
			return nil, ErrInvalidState
		}

		if err := apply(inv); err != nil {
			return nil, err
		}

		err = s.repo.ApplyTransition(ctx, inv, expected)
		if err == nil {
			s.audit.Record(ctx, actor.ID, "invoice."+string(inv.Status), inv.ID.String(), map[string]any{
				"conversation_id":   inv.ConversationID.String(),
				"status":            string(inv.Status),
				"service_fee_cents": inv.ServiceFeeCents,
				"escrow_cents":      inv.EscrowCents,
				"refunded_cents":    inv.RefundedCents,
			})

			return inv, nil
		}

		if errors.Is(err, ErrConflict) {
			continue
		}

		return nil, err
	}

	return nil, ErrConflict
}

func statusIn(status Status, allowed []Status) bool {
	for _, s := range allowed {
		if status == s {
			return true
		}
	}

	return false
}
