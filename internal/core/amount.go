// Package core holds the domain types shared by the stores, the HTTP layer
// and the export pipeline.
//
// This file contains amount parsing and validation. Amounts are decimal
// currency values; float math is never used on them.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmountDigits bounds the integer part of an amount; anything larger is
// almost certainly a client bug rather than a real expense.
const maxAmountDigits = 12

// ParseAmount converts a decimal string to an amount. It accepts both dot
// (12.34) and comma (12,34) separators. The policy for this store is strictly
// positive amounts; zero and negative values are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrValidation)
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount must be a number", ErrValidation)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount enforces the amount policy: positive, at most two decimal
// places of currency precision, and a sane magnitude.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsZero() || d.IsNegative() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	if d.Exponent() < -2 {
		return fmt.Errorf("%w: amount has more than two decimal places", ErrValidation)
	}
	if len(d.Truncate(0).String()) > maxAmountDigits {
		return fmt.Errorf("%w: amount out of range", ErrValidation)
	}
	return nil
}
