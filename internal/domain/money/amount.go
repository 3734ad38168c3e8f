// Package money models token amounts and the two settlement instruments.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative whole number of token base units.
// It is arbitrary precision so day-rate multiplication cannot overflow.
type Amount struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{d: decimal.Zero}

// NewAmount creates an amount from base units.
func NewAmount(units int64) (Amount, error) {
	if units < 0 {
		return Amount{}, fmt.Errorf("amount cannot be negative: %d", units)
	}
	return Amount{d: decimal.NewFromInt(units)}, nil
}

// MustAmount is NewAmount for constants and tests.
func MustAmount(units int64) Amount {
	a, err := NewAmount(units)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAmount parses a base-10 whole number.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// FromDecimal validates d as a whole, non-negative number of units.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("amount cannot be negative: %s", d)
	}
	if !d.Equal(d.Truncate(0)) {
		return Amount{}, fmt.Errorf("amount must be a whole number of units: %s", d)
	}
	return Amount{d: d.Truncate(0)}, nil
}

// Decimal returns the underlying value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

// Sub returns a - b, or an error when b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.d.LessThan(b.d) {
		return Amount{}, fmt.Errorf("amount underflow: %s - %s", a, b)
	}
	return Amount{d: a.d.Sub(b.d)}, nil
}

// MulInt returns a * n for a non-negative n.
func (a Amount) MulInt(n int64) Amount {
	if n < 0 {
		panic("money: negative multiplier")
	}
	return Amount{d: a.d.Mul(decimal.NewFromInt(n))}
}

// SplitFloor divides a into n equal parts rounded down, returning the part and the remainder.
func (a Amount) SplitFloor(n int64) (part, remainder Amount) {
	if n <= 0 {
		panic("money: non-positive divisor")
	}
	q, r := a.d.QuoRem(decimal.NewFromInt(n), 0)
	return Amount{d: q}, Amount{d: r}
}

// Cmp compares a and b.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// LessThan reports a < b.
func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }

// Equal reports a == b.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// String returns the base-10 representation.
func (a Amount) String() string { return a.d.String() }

// MarshalJSON encodes the amount as a JSON string to keep precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.d.String())
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("amount must be a string or number: %w", err)
		}
		s = n.String()
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) { return a.d.Value() }

// Scan implements sql.Scanner.
func (a *Amount) Scan(src interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	parsed, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
