// Package units converts between on-chain minor units and human-scale amounts.
//
// Ledger amounts are carried as canonical base-10 integer strings. Conversion to
// float64 happens only through ToDecimal, for score inputs and display.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of the chain's native currency
const Decimals = 18

// DefaultPrecision is the number of digits FormatDecimal renders by default
const DefaultPrecision = 4

var (
	// ErrEmptyAmount is returned for blank input
	ErrEmptyAmount = errors.New("amount is empty")
	// ErrNegativeAmount is returned for amounts below zero
	ErrNegativeAmount = errors.New("amount is negative")
	// ErrFractionalMinorUnits is returned when a minor-unit amount has a fractional part
	ErrFractionalMinorUnits = errors.New("minor-unit amount must be an integer")
)

// ParseMinorUnits parses a non-negative integer amount of minor units
func ParseMinorUnits(minorUnits string) (decimal.Decimal, error) {
	s := strings.TrimSpace(minorUnits)
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid minor-unit amount %q: %w", minorUnits, err)
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	if !d.IsInteger() {
		return decimal.Zero, ErrFractionalMinorUnits
	}

	return d, nil
}

// Canonical returns the canonical integer-string form of a minor-unit amount ("007" -> "7")
func Canonical(minorUnits string) (string, error) {
	d, err := ParseMinorUnits(minorUnits)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// ToDecimal converts minor units to a human-scale float64. Precision loss is
// acceptable here; the result must never be written back to the ledger.
func ToDecimal(minorUnits string) (float64, error) {
	d, err := ParseMinorUnits(minorUnits)
	if err != nil {
		return 0, err
	}
	f, _ := d.Shift(-Decimals).Float64()
	return f, nil
}

// ToMinorUnits converts a human-scale decimal string to minor units,
// truncating toward zero.
func ToMinorUnits(amount string) (string, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return "", ErrEmptyAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("invalid decimal amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return "", ErrNegativeAmount
	}

	return d.Shift(Decimals).Truncate(0).String(), nil
}

// FormatDecimal renders minor units as a fixed-precision human-scale string
func FormatDecimal(minorUnits string, precision int32) (string, error) {
	d, err := ParseMinorUnits(minorUnits)
	if err != nil {
		return "", err
	}
	return d.Shift(-Decimals).StringFixed(precision), nil
}

// Sum adds minor-unit amounts exactly and returns the canonical integer string
func Sum(amounts ...string) (string, error) {
	total := decimal.Zero
	for _, a := range amounts {
		d, err := ParseMinorUnits(a)
		if err != nil {
			return "", err
		}
		total = total.Add(d)
	}
	return total.String(), nil
}
