package invoice

import "errors"

var (
	// ErrNotFound is returned when no invoice exists for the given id.
	ErrNotFound = errors.New("invoice not found")

	// ErrInvalidAmount is returned when the requested amount is not positive.
	ErrInvalidAmount = errors.New("invoice amount must be positive")

	// ErrInvalidCurrency is returned when the currency is not a known ISO
	// 4217 code.
	ErrInvalidCurrency = errors.New("unknown currency code")

	// ErrInvalidParticipants is returned when creator and recipient are the
	// same account or either is not a member of the conversation.
	ErrInvalidParticipants = errors.New("invalid invoice participants")

	// ErrInvalidState is returned when the requested transition is not legal
	// from the invoice's current status.
	ErrInvalidState = errors.New("operation not allowed in current status")

	// ErrForbidden is returned when the actor may not request the transition.
	ErrForbidden = errors.New("actor not allowed to perform operation")

	// ErrPolicyUnavailable is returned when the fee policy lookup fails
	// during acceptance. The invoice is left untouched.
	ErrPolicyUnavailable = errors.New("fee policy unavailable")

	// ErrConflict is returned when a transition lost a concurrent
	// compare-and-set race after one retry.
	ErrConflict = errors.New("invoice was modified concurrently")
)
