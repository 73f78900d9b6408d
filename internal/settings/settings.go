package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pmckenzie/trustline/internal/invoice"
)

// Setting keys consumed by the ledger.
const (
	KeyServiceFeeRate = "service_fee_rate"
	KeyEscrowAccount  = "escrow_account"
)

// maxFeeRate caps the platform's cut. Rates above this are treated as a
// misconfigured settings row, not applied.
var maxFeeRate = decimal.NewFromFloat(0.25)

//go:generate mockgen -source=settings.go -destination=repository_mock.go -package=settings
type Repository interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// Service reads platform settings. The fee policy lookup is bounded by a
// short timeout so a slow settings store fails an acceptance instead of
// hanging it.
type Service struct {
	repo    Repository
	timeout time.Duration
}

func NewService(repo Repository, timeout time.Duration) *Service {
	return &Service{repo: repo, timeout: timeout}
}

// FeePolicy returns the service-fee rate and escrow account label currently
// in force. Errors here surface to the caller as a policy outage; nothing is
// cached, so a rate change applies to the next acceptance.
func (s *Service) FeePolicy(ctx context.Context) (invoice.FeePolicy, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rateStr, err := s.repo.GetSetting(ctx, KeyServiceFeeRate)
	if err != nil {
		return invoice.FeePolicy{}, fmt.Errorf("reading %s: %w", KeyServiceFeeRate, err)
	}

	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return invoice.FeePolicy{}, fmt.Errorf("parsing %s %q: %w", KeyServiceFeeRate, rateStr, err)
	}

	if rate.IsNegative() || rate.GreaterThan(maxFeeRate) {
		return invoice.FeePolicy{}, fmt.Errorf("%s %s outside [0, %s]", KeyServiceFeeRate, rate, maxFeeRate)
	}

	account, err := s.repo.GetSetting(ctx, KeyEscrowAccount)
	if err != nil {
		return invoice.FeePolicy{}, fmt.Errorf("reading %s: %w", KeyEscrowAccount, err)
	}

	return invoice.FeePolicy{Rate: rate, EscrowAccount: account}, nil
}
