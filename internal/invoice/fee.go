package invoice

import "github.com/shopspring/decimal"

// SplitFee computes the platform's cut of amountCents at the given rate and
// the remainder held in escrow. The fee is rounded half-to-even so repeated
// splits carry no systematic bias, and fee + escrow always equals the amount.
func SplitFee(amountCents int64, rate decimal.Decimal) (feeCents, escrowCents int64) {
	feeCents = decimal.NewFromInt(amountCents).Mul(rate).RoundBank(0).IntPart()
	escrowCents = amountCents - feeCents

	return feeCents, escrowCents
}
