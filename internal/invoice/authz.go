package invoice

import "github.com/google/uuid"

// Role is the marketplace role carried by an authenticated actor.
type Role string

const (
	RoleConveyancer Role = "conveyancer"
	RoleBuyer       Role = "buyer"
	RoleSeller      Role = "seller"
	RoleAdmin       Role = "admin"
)

// Actor is the caller-resolved identity requesting an operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// Admin reports whether the actor holds administrator privilege. Admin
// bypass exists for dispute resolution and is itself audited.
func (a Actor) Admin() bool {
	return a.Role == RoleAdmin
}

// ProviderSide reports whether the actor's role is entitled to issue
// invoices.
func (a Actor) ProviderSide() bool {
	return a.Role == RoleConveyancer
}

// Op identifies a ledger transition for authorization checks.
type Op string

const (
	OpCreate  Op = "create"
	OpAccept  Op = "accept"
	OpRelease Op = "release"
	OpCancel  Op = "cancel"
)

// CanTransition reports whether the actor may request the given operation on
// the invoice. It is a pure function of its inputs; conversation membership
// for create is checked separately by the service.
func CanTransition(inv *Invoice, actor Actor, op Op) bool {
	switch op {
	case OpCreate:
		return actor.ProviderSide()
	case OpAccept:
		return actor.ID == inv.RecipientID
	case OpRelease:
		return actor.ID == inv.CreatorID || actor.Admin()
	case OpCancel:
		return actor.ID == inv.CreatorID || actor.ID == inv.RecipientID || actor.Admin()
	}

	return false
}
