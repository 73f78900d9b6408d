package invoice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/pmckenzie/trustline/internal/invoice"
)

type serviceMocks struct {
	repo    *invoice.MockRepository
	members *invoice.MockMembership
	fees    *invoice.MockFeePolicySource
	audit   *invoice.MockAuditLog
}

func newServiceWithMocks(t *testing.T) (*invoice.Service, serviceMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)

	m := serviceMocks{
		repo:    invoice.NewMockRepository(ctrl),
		members: invoice.NewMockMembership(ctrl),
		fees:    invoice.NewMockFeePolicySource(ctrl),
		audit:   invoice.NewMockAuditLog(ctrl),
	}

	return invoice.NewService(m.repo, m.members, m.fees, m.audit), m
}

var (
	conversationID = uuid.New()
	creatorID      = uuid.New()
	recipientID    = uuid.New()

	creator   = invoice.Actor{ID: creatorID, Role: invoice.RoleConveyancer}
	recipient = invoice.Actor{ID: recipientID, Role: invoice.RoleBuyer}
	admin     = invoice.Actor{ID: uuid.New(), Role: invoice.RoleAdmin}
	stranger  = invoice.Actor{ID: uuid.New(), Role: invoice.RoleSeller}
)

// sentInvoice returns a fresh snapshot in StatusSent, the way the store
// would hand it back.
func sentInvoice(id uuid.UUID) *invoice.Invoice {
	return &invoice.Invoice{
		ID:             id,
		ConversationID: conversationID,
		CreatorID:      creatorID,
		RecipientID:    recipientID,
		AmountCents:    10000,
		Currency:       "AUD",
		Description:    "Contract review milestone",
		Status:         invoice.StatusSent,
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
	}
}

func acceptedInvoice(id uuid.UUID) *invoice.Invoice {
	inv := sentInvoice(id)
	now := time.Now().UTC().Add(-time.Minute)
	inv.Status = invoice.StatusAccepted
	inv.ServiceFeeCents = 500
	inv.EscrowCents = 9500
	inv.FeeRate = decimal.RequireFromString("0.05")
	inv.EscrowAccount = "Trustline Escrow Trust Account"
	inv.AcceptedAt = &now

	return inv
}

func TestService_Create(t *testing.T) {
	params := invoice.CreateParams{
		ConversationID: conversationID,
		RecipientID:    recipientID,
		AmountCents:    10000,
		Currency:       "AUD",
		Description:    "Contract review milestone",
	}

	type testCase struct {
		name      string
		actor     invoice.Actor
		params    invoice.CreateParams
		setupMock func(m serviceMocks)
		wantErr   bool
		wantErrIs error
	}

	tests := []testCase{
		{
			name:   "Success",
			actor:  creator,
			params: params,
			setupMock: func(m serviceMocks) {
				m.members.EXPECT().
					IsMember(gomock.Any(), conversationID, creatorID).
					Return(true, nil)
				m.members.EXPECT().
					IsMember(gomock.Any(), conversationID, recipientID).
					Return(true, nil)
				m.repo.EXPECT().
					CreateInvoice(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, inv *invoice.Invoice) error {
						inv.ID = uuid.New()
						inv.CreatedAt = time.Now().UTC()
						return nil
					})
				m.audit.EXPECT().
					Record(gomock.Any(), creatorID, "invoice.created", gomock.Any(), gomock.Any())
			},
		},
		{
			name:  "ZeroAmount",
			actor: creator,
			params: invoice.CreateParams{
				ConversationID: conversationID,
				RecipientID:    recipientID,
				AmountCents:    0,
				Currency:       "AUD",
			},
			wantErr:   true,
			wantErrIs: invoice.ErrInvalidAmount,
		},
		{
			name:  "NegativeAmount",
			actor: creator,
			params: invoice.CreateParams{
				ConversationID: conversationID,
				RecipientID:    recipientID,
				AmountCents:    -500,
				Currency:       "AUD",
			},
			wantErr:   true,
			wantErrIs: invoice.ErrInvalidAmount,
		},
		{
			name:  "UnknownCurrency",
			actor: creator,
			params: invoice.CreateParams{
				ConversationID: conversationID,
				RecipientID:    recipientID,
				AmountCents:    10000,
				Currency:       "ZZZ",
			},
			wantErr:   true,
			wantErrIs: invoice.ErrInvalidCurrency,
		},
		{
			name:      "RecipientRoleCannotIssue",
			actor:     recipient,
			params:    params,
			wantErr:   true,
			wantErrIs: invoice.ErrForbidden,
		},
		{
			name:  "CreatorEqualsRecipient",
			actor: creator,
			params: invoice.CreateParams{
				ConversationID: conversationID,
				RecipientID:    creatorID,
				AmountCents:    10000,
				Currency:       "AUD",
			},
			wantErr:   true,
			wantErrIs: invoice.ErrInvalidParticipants,
		},
		{
			name:   "CreatorNotMember",
			actor:  creator,
			params: params,
			setupMock: func(m serviceMocks) {
				m.members.EXPECT().
					IsMember(gomock.Any(), conversationID, creatorID).
					Return(false, nil)
			},
			wantErr:   true,
			wantErrIs: invoice.ErrInvalidParticipants,
		},
		{
			name:   "RecipientNotMember",
			actor:  creator,
			params: params,
			setupMock: func(m serviceMocks) {
				m.members.EXPECT().
					IsMember(gomock.Any(), conversationID, creatorID).
					Return(true, nil)
				m.members.EXPECT().
					IsMember(gomock.Any(), conversationID, recipientID).
					Return(false, nil)
			},
			wantErr:   true,
			wantErrIs: invoice.ErrInvalidParticipants,
		},
		{
			name:   "RepoError",
			actor:  creator,
			params: params,
			setupMock: func(m serviceMocks) {
				m.members.EXPECT().
					IsMember(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(true, nil).
					Times(2)
				m.repo.EXPECT().
					CreateInvoice(gomock.Any(), gomock.Any()).
					Return(errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newServiceWithMocks(t)
			if tt.setupMock != nil {
				tt.setupMock(m)
			}

			got, err := svc.Create(context.Background(), tt.actor, tt.params)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)

				if tt.wantErrIs != nil {
					assert.ErrorIs(t, err, tt.wantErrIs)
				}

				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, invoice.StatusSent, got.Status)
			assert.NotEmpty(t, got.ID)
			assert.Zero(t, got.ServiceFeeCents)
			assert.Zero(t, got.EscrowCents)
			assert.Zero(t, got.RefundedCents)
			assert.Nil(t, got.AcceptedAt)
		})
	}
}

func TestService_Accept(t *testing.T) {
	id := uuid.New()
	policy := invoice.FeePolicy{
		Rate:          decimal.RequireFromString("0.05"),
		EscrowAccount: "Trustline Escrow Trust Account",
	}

	t.Run("Success", func(t *testing.T) {
		svc, m := newServiceWithMocks(t)

		m.repo.EXPECT().
			GetInvoice(gomock.Any(), id).
			Return(sentInvoice(id), nil)
		m.fees.EXPECT().
			FeePolicy(gomock.Any()).
			Return(policy, nil)
		m.repo.EXPECT().
			ApplyTransition(gomock.Any(), gomock.Any(), invoice.StatusSent).
			DoAndReturn(func(_ context.Context, inv *invoice.Invoice, _ invoice.Status) error {
				assert.Equal(t, invoice.StatusAccepted, inv.Status)
				return nil
			})
		m.audit.EXPECT().
			Record(gomock.Any(), recipientID, "invoice.accepted", id.String(), gomock.Any())

		got, err := svc.Accept(context.Background(), id, recipient)

		require.NoError(t, err)
		assert.Equal(t, invoice.StatusAccepted, got.Status)
		assert.Equal(t, int64(500), got.ServiceFeeCents)
		assert.Equal(t, int64(9500), got.EscrowCents)
		assert.Equal(t, got.AmountCents, got.ServiceFeeCents+got.EscrowCents)
		assert.Equal(t, "Trustline Escrow Trust Account", got.EscrowAccount)
		assert.True(t, policy.Rate.Equal(got.FeeRate))
		require.NotNil(t, got.AcceptedAt)
		assert.False(t, got.AcceptedAt.Before(got.CreatedAt))
	})

	t.Run("OnlyRecipientMayAccept", func(t *testing.T) {
		for _, actor := range []invoice.Actor{creator, admin, stranger} {
			svc, m := newServiceWithMocks(t)

			m.repo.EXPECT().
				GetInvoice(gomock.Any(), id).
				Return(sentInvoice(id), nil)

			_, err := svc.Accept(context.Background(), id, actor)
			assert.ErrorIs(t, err, invoice.ErrForbidden)
		}
	})

	t.Run("AlreadyAccepted", func(t *testing.T) {
		svc, m := newServiceWithMocks(t)

		m.repo.EXPECT().
			GetInvoice(gomock.Any(), id).
			Return(acceptedInvoice(id), nil)

		_, err := svc.Accept(context.Background(), id, recipient)
		assert.ErrorIs(t, err, invoice.ErrInvalidState)
	})

	t.Run("PolicyUnavailableLeavesInvoiceUntouched", func(t *testing.T) {
		svc, m := newServiceWithMocks(t)

		m.repo.EXPECT().
			GetInvoice(gomock.Any(), id).
			Return(sentInvoice(id), nil)
		m.fees.EXPECT().
			FeePolicy(gomock.Any()).
			Return(invoice.FeePolicy{}, errors.New("settings store down"))
		// No ApplyTransition, no audit event.

		_, err := svc.Accept(context.Background(), id, recipient)
		assert.ErrorIs(t, err, invoice.ErrPolicyUnavailable)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, m := newServiceWithMocks(t)

		m.repo.EXPECT().
			GetInvoice(gomock.Any(), id).
			Return(nil, invoice.ErrNotFound)

		_, err := svc.Accept(context.Background(), id, recipient)
		assert.ErrorIs(t, err, invoice.ErrNotFound)
	})

	t.Run("LostRaceThenStatusIllegal", func(t *testing.T) {
		// A concurrent cancel wins the compare-and-set; the retry reloads a
		// cancelled invoice and reports the state, not a conflict.
		svc, m := newServiceWithMocks(t)

		cancelled := sentInvoice(id)
		cancelled.Status = invoice.StatusCancelled

		gomock.InOrder(
			m.repo.EXPECT().GetInvoice(gomock.Any(), id).Return(sentInvoice(id), nil),
			m.fees.EXPECT().FeePolicy(gomock.Any()).Return(policy, nil),
			m.repo.EXPECT().ApplyTransition(gomock.Any(), gomock.Any(), invoice.StatusSent).Return(invoice.ErrConflict),
			m.repo.EXPECT().GetInvoice(gomock.Any(), id).Return(cancelled, nil),
		)

		_, err := svc.Accept(context.Background(), id, recipient)
		assert.ErrorIs(t, err, invoice.ErrInvalidState)
	})

	t.Run("LostRaceTwice", func(t *testing.T) {
		svc, m := newServiceWithMocks(t)

		m.repo.EXPECT().GetInvoice(gomock.Any(), id).Return(sentInvoice(id), nil).Times(2)
		m.fees.EXPECT().FeePolicy(gomock.Any()).Return(policy, nil).Times(2)
		m.repo.EXPECT().
			ApplyTransition(gomock.Any(), gomock.Any(), invoice.StatusSent).
			Return(invoice.ErrConflict).
			Times(2)

		_, err := svc.Accept(context.Background(), id, recipient)
		assert.ErrorIs(t, err, invoice.ErrConflict)
	})
}

func TestService_Release(t *testing.T) {
	id := uuid.New()

	type testCase struct {
		name      string
		actor     invoice.Actor
		setupMock func(m serviceMocks)
		wantErr   error
	}

	releaseOK := func(actor invoice.Actor) func(m serviceMocks) {
		return func(m serviceMocks) {
			m.repo.EXPECT().
				GetInvoice(gomock.Any(), id).
				Return(acceptedInvoice(id), nil)
			m.repo.EXPECT().
				ApplyTransition(gomock.Any(), gomock.Any(), invoice.StatusAccepted).
				Return(nil)
			m.audit.EXPECT().
				Record(gomock.Any(), actor.ID, "invoice.released", id.String(), gomock.Any())
		}
	}

	tests := []testCase{
		{
			name:      "CreatorReleases",
			actor:     creator,
			setupMock: releaseOK(creator),
		},
		{
			name:      "AdminReleases",
			actor:     admin,
			setupMock: releaseOK(admin),
		},
		{
			name:  "RecipientForbidden",
			actor: recipient,
			setupMock: func(m serviceMocks) {
				m.repo.EXPECT().
					GetInvoice(gomock.Any(), id).
					Return(acceptedInvoice(id), nil)
			},
			wantErr: invoice.ErrForbidden,
		},
		{
			name:  "NotYetAccepted",
			actor: creator,
			setupMock: func(m serviceMocks) {
				m.repo.EXPECT().
					GetInvoice(gomock.Any(), id).
					Return(sentInvoice(id), nil)
			},
			wantErr: invoice.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newServiceWithMocks(t)
			if tt.setupMock != nil {
				tt.setupMock(m)
			}

			got, err := svc.Release(context.Background(), id, tt.actor)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, invoice.StatusReleased, got.Status)
			require.NotNil(t, got.ReleasedAt)
			require.NotNil(t, got.AcceptedAt)
			assert.False(t, got.ReleasedAt.Before(*got.AcceptedAt))
			assert.Nil(t, got.CancelledAt)
			// The fee split stays frozen through release.
			assert.Equal(t, int64(500), got.ServiceFeeCents)
			assert.Equal(t, int64(9500), got.EscrowCents)
			assert.Zero(t, got.RefundedCents)
		})
	}
}

func TestService_Cancel(t *testing.T) {
	id := uuid.New()

	t.Run("FromSentNoRefund", func(t *testing.T) {
		svc, m := newServiceWithMocks(t)

		m.repo.EXPECT().
			GetInvoice(gomock.Any(), id).
			Return(sentInvoice(id), nil)
		m.repo.EXPECT().
			ApplyTransition(gomock.Any(), gomock.Any(), invoice.StatusSent).
			Return(nil)
		m.audit.EXPECT().
			Record(gomock.Any(), creatorID, "invoice.cancelled", id.String(), gomock.Any())

		got, err := svc.Cancel(context.Background(), id, creator)

		require.NoError(t, err)
		assert.Equal(t, invoice.StatusCancelled, got.Status)
		assert.Zero(t, got.RefundedCents)
		assert.Zero(t, got.ServiceFeeCents)
		require.NotNil(t, got.CancelledAt)
	})

	t.Run("FromAcceptedRefundsEscrowKeepsFee", func(t *testing.T) {
		svc, m := newServiceWithMocks(t)

		m.repo.EXPECT().
			GetInvoice(gomock.Any(), id).
			Return(acceptedInvoice(id), nil)
		m.repo.EXPECT().
			ApplyTransition(gomock.Any(), gomock.Any(), invoice.StatusAccepted).
			Return(nil)
		m.audit.EXPECT().
			Record(gomock.Any(), recipientID, "invoice.cancelled", id.String(), gomock.Any())

		got, err := svc.Cancel(context.Background(), id, recipient)

		require.NoError(t, err)
		assert.Equal(t, invoice.StatusCancelled, got.Status)
		assert.Equal(t, int64(9500), got.RefundedCents)
		assert.Equal(t, got.EscrowCents, got.RefundedCents)
		assert.Equal(t, int64(500), got.ServiceFeeCents, "service fee is retained on cancellation")
		require.NotNil(t, got.CancelledAt)
		assert.Nil(t, got.ReleasedAt)
	})

	t.Run("AdminCancels", func(t *testing.T) {
		svc, m := newServiceWithMocks(t)

		m.repo.EXPECT().
			GetInvoice(gomock.Any(), id).
			Return(acceptedInvoice(id), nil)
		m.repo.EXPECT().
			ApplyTransition(gomock.Any(), gomock.Any(), invoice.StatusAccepted).
			Return(nil)
		m.audit.EXPECT().
			Record(gomock.Any(), admin.ID, "invoice.cancelled", id.String(), gomock.Any())

		_, err := svc.Cancel(context.Background(), id, admin)
		require.NoError(t, err)
	})

	t.Run("AlreadyReleased", func(t *testing.T) {
		svc, m := newServiceWithMocks(t)

		released := acceptedInvoice(id)
		now := time.Now().UTC()
		released.Status = invoice.StatusReleased
		released.ReleasedAt = &now

		m.repo.EXPECT().
			GetInvoice(gomock.Any(), id).
			Return(released, nil)

		_, err := svc.Cancel(context.Background(), id, creator)
		assert.ErrorIs(t, err, invoice.ErrInvalidState)
	})

	t.Run("StrangerForbidden", func(t *testing.T) {
		svc, m := newServiceWithMocks(t)

		m.repo.EXPECT().
			GetInvoice(gomock.Any(), id).
			Return(sentInvoice(id), nil)

		_, err := svc.Cancel(context.Background(), id, stranger)
		assert.ErrorIs(t, err, invoice.ErrForbidden)
	})
}
