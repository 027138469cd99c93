// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Parsing from user-supplied decimal strings
// and percentage math go through shopspring/decimal so no float rounding leaks
// into stored values.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (cents). Currency is carried separately
// as an opaque tag and never converted.
type Money struct {
	Cents int64
}

var (
	hundred     = decimal.NewFromInt(100)
	tenThousand = decimal.NewFromInt(10000)
)

// ParseMoney converts a decimal string to Money with half-up rounding to cents.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Negative
// values are rejected; zero is allowed here and rejected by Validate where a
// positive amount is required.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234 cents
//	ParseMoney("12,345") -> 1235 cents
//	ParseMoney("25.5")   -> 2550 cents
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d half-up to two places and returns it as cents.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Round(2).Mul(hundred)
	if !cents.IsInteger() || cents.GreaterThan(decimal.NewFromInt(maxCents)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

const maxCents = (1<<63 - 1) / 100

// Cents is a shorthand constructor used heavily in tests and fixtures.
func Cents(c int64) Money { return Money{Cents: c} }

// Validate requires a strictly positive amount.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsNegative() bool { return m.Cents < 0 }

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if o.Cents < m.Cents {
		return o
	}
	return m
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with two decimals, e.g. "39.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Percent returns part/whole*100 rounded to two places. A zero whole yields zero.
func Percent(part, whole Money) decimal.Decimal {
	if whole.Cents == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part.Cents).
		Mul(hundred).
		DivRound(decimal.NewFromInt(whole.Cents), 2)
}

// PercentFloor is Percent truncated to two places, so shares of one whole
// never add up to more than 100.
func PercentFloor(part, whole Money) decimal.Decimal {
	if whole.Cents == 0 {
		return decimal.Zero
	}
	q, _ := decimal.NewFromInt(part.Cents).
		Mul(tenThousand).
		QuoRem(decimal.NewFromInt(whole.Cents), 0)
	return q.Shift(-2)
}
