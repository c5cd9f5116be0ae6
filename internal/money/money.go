/*
Package money provides the Money value type used everywhere an amount
crosses an equality or summation boundary.

PURPOSE:
  Naive floating point, or decimals compared at inconsistent scale, yield
  false "unbalanced voucher" errors on realistic GST and payroll inputs
  (see spec §4.1). Money fixes the scale at the comparison boundary: every
  value is quantized to two decimal places with round-half-up before it is
  compared or summed.

DESIGN:
  Money wraps decimal.Decimal the same way the teacher's generic.Amount
  wraps it: a small immutable value type with arithmetic methods, no
  exported mutable state.

SEE ALSO:
  - ledger/validator.go: uses Quantize for the DR/CR balance check
*/
package money

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Zero is the additive identity.
var Zero = Money{value: decimal.Zero}

// Money is a monetary amount normalized to two decimal places on demand.
// The zero value is usable and equal to Zero.
type Money struct {
	value decimal.Decimal
}

// New wraps a decimal.Decimal without normalizing it. Use Quantize at
// comparison/summation boundaries.
func New(d decimal.Decimal) Money { return Money{value: d} }

// NewFromString parses a decimal string (e.g. from a wire payload or a DB column).
func NewFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{value: d}, nil
}

// NewFromFloat builds a Money from a float64. Reserved for test fixtures
// and demo data; production inputs should come from decimal strings.
func NewFromFloat(f float64) Money { return Money{value: decimal.NewFromFloat(f)} }

// MustParse parses a decimal string written by one of this package's own
// store layers (e.g. a column populated via Decimal().String()) and panics
// on failure — callers reading back their own writes, not user input.
func MustParse(s string) Money {
	if s == "" {
		return Zero
	}
	m, err := NewFromString(s)
	if err != nil {
		panic("money: MustParse: " + err.Error())
	}
	return m
}

// Decimal returns the underlying, un-quantized decimal.
func (m Money) Decimal() decimal.Decimal { return m.value }

// Quantize rounds to 2 decimal places, HALF_UP, per spec §4.1. This is the
// only form in which two Money values may be compared for equality or
// summed across a balance boundary.
func (m Money) Quantize() Money {
	return Money{value: m.value.Round(2)}
}

func (m Money) Add(o Money) Money { return Money{value: m.value.Add(o.value)} }
func (m Money) Sub(o Money) Money { return Money{value: m.value.Sub(o.value)} }
func (m Money) Neg() Money        { return Money{value: m.value.Neg()} }

func (m Money) IsZero() bool     { return m.Quantize().value.IsZero() }
func (m Money) IsPositive() bool { return m.Quantize().value.IsPositive() }
func (m Money) IsNegative() bool { return m.Quantize().value.IsNegative() }

// Equal compares two amounts after quantizing both — the only correct way
// to compare money in this system.
func (m Money) Equal(o Money) bool { return m.Quantize().value.Equal(o.Quantize().value) }

func (m Money) GreaterThan(o Money) bool { return m.Quantize().value.GreaterThan(o.Quantize().value) }
func (m Money) LessThan(o Money) bool    { return m.Quantize().value.LessThan(o.Quantize().value) }
func (m Money) GreaterThanOrEqual(o Money) bool {
	return m.GreaterThan(o) || m.Equal(o)
}
func (m Money) LessThanOrEqual(o Money) bool {
	return m.LessThan(o) || m.Equal(o)
}

// String renders the quantized value, e.g. "1180.00".
func (m Money) String() string { return m.Quantize().value.StringFixed(2) }

// MarshalJSON renders the quantized decimal as a JSON number, matching the
// wire format callers expect for monetary fields.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Quantize().value)
}

// UnmarshalJSON accepts either a JSON number or string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	m.value = d
	return nil
}

// Sum folds a slice of Money, quantizing the result once at the end —
// intermediate sums accumulate at full precision, matching how the
// teacher's Timeline.BalanceAt folds Amount deltas without rounding at
// every step.
func Sum(ms []Money) Money {
	total := decimal.Zero
	for _, m := range ms {
		total = total.Add(m.value)
	}
	return Money{value: total}.Quantize()
}
