package types

import (
	"strings"

	"github.com/shopspring/decimal"
	ierr "github.com/sitequote/billing/internal/errors"
)

// DefaultCurrency is the ISO code every amount in this service is billed in
const DefaultCurrency = "cad"

// minorUnitExponent is the number of decimal places of the supported currencies
const minorUnitExponent = 2

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts an amount in main currency units (12.50) into the
// integer minor units (1250) the billing provider expects. Amounts with more
// precision than the currency supports are rejected rather than rounded.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.Equal(amount.Truncate(minorUnitExponent)) {
		return 0, ierr.NewError("amount has more than two decimal places").
			WithHint("Amount cannot be split into whole cents").
			WithReportableDetails(map[string]any{
				"amount": amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return amount.Mul(hundred).IntPart(), nil
}

// FromMinorUnits converts provider minor units back to main currency units
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(hundred)
}

// ValidateChargeAmount is the last line of defense before money moves:
// the amount must be strictly positive and expressible in minor units.
func ValidateChargeAmount(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ierr.NewError("amount must be greater than zero").
			WithHint("Amount must be greater than zero").
			WithReportableDetails(map[string]any{
				"amount": amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return ToMinorUnits(amount)
}

// NormalizeCurrency lowercases an ISO code, falling back to DefaultCurrency
func NormalizeCurrency(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}
