package kernel

import (
	"fmt"

	"fulfillment/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for every amount.
const MoneyScale = 2

// RoundMoney rounds half away from zero to MoneyScale places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// ValidatePositiveAmount rejects zero, negative and over-precise amounts.
func ValidatePositiveAmount(paramName string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errs.NewValueIsInvalidErrorWithCause(paramName, fmt.Errorf("%s is not greater than 0", amount))
	}
	if !amount.Equal(RoundMoney(amount)) {
		return errs.NewValueIsInvalidErrorWithCause(paramName, fmt.Errorf("%s has more than %d decimal places", amount, MoneyScale))
	}
	return nil
}

// ValidateNonNegativeAmount is ValidatePositiveAmount that also admits zero.
func ValidateNonNegativeAmount(paramName string, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	return ValidatePositiveAmount(paramName, amount)
}

// Percentage returns amount * pct / 100, rounded.
func Percentage(amount, pct decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(pct).Div(decimal.NewFromInt(100)))
}
