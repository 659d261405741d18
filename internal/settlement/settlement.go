package settlement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned for a negative gross amount or a rate outside [0, 1].
var ErrInvalidInput = errors.New("invalid settlement input")

// Split is the result of dividing a gross amount between platform and payee.
type Split struct {
	GrossAmount      int64           `json:"gross_amount"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	CommissionAmount int64           `json:"commission_amount"`
	PayoutAmount     int64           `json:"payout_amount"`
}

// Calculate splits gross into commission and payout.
//
//	commission = floor(gross * rate)
//	payout     = gross - commission
//
// Commission is always floored so it is never rounded up against the payee,
// and commission + payout always equals gross.
func Calculate(gross int64, rate decimal.Decimal) (Split, error) {
	if gross < 0 {
		return Split{}, fmt.Errorf("%w: gross amount %d is negative", ErrInvalidInput, gross)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return Split{}, fmt.Errorf("%w: commission rate %s out of range [0,1]", ErrInvalidInput, rate)
	}

	commission := decimal.NewFromInt(gross).Mul(rate).Floor().IntPart()

	return Split{
		GrossAmount:      gross,
		CommissionRate:   rate,
		CommissionAmount: commission,
		PayoutAmount:     gross - commission,
	}, nil
}

// Rates holds the commission rate of each product line.
type Rates struct {
	WorkRequest  decimal.Decimal
	ServiceOrder decimal.Decimal
}

// DefaultRates are the rates used when nothing is configured.
func DefaultRates() Rates {
	return Rates{
		WorkRequest:  decimal.RequireFromString("0.10"),
		ServiceOrder: decimal.RequireFromString("0.05"),
	}
}

// Validate checks that both rates are within [0, 1].
func (r Rates) Validate() error {
	one := decimal.NewFromInt(1)
	if r.WorkRequest.IsNegative() || r.WorkRequest.GreaterThan(one) {
		return fmt.Errorf("%w: work request rate %s", ErrInvalidInput, r.WorkRequest)
	}
	if r.ServiceOrder.IsNegative() || r.ServiceOrder.GreaterThan(one) {
		return fmt.Errorf("%w: service order rate %s", ErrInvalidInput, r.ServiceOrder)
	}
	return nil
}

// Verify recomputes a stored split from its gross amount and rate. It
// returns the expected split and whether stored matches it.
func Verify(stored Split) (Split, bool, error) {
	want, err := Calculate(stored.GrossAmount, stored.CommissionRate)
	if err != nil {
		return Split{}, false, err
	}
	match := want.CommissionAmount == stored.CommissionAmount && want.PayoutAmount == stored.PayoutAmount
	return want, match, nil
}
