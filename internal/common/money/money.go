// Package money provides fixed-point monetary amounts with a currency tag.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents an ISO 4217 currency code
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	NGN Currency = "NGN"
	THB Currency = "THB"
	MYR Currency = "MYR"
	SGD Currency = "SGD"
)

// Scale is the number of fractional decimal digits carried by every
// amount, matching the numeric(19,4) columns in the ledger schema.
const Scale = 4

// ErrCurrencyMismatch is returned by arithmetic on amounts with
// different currency tags.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// ErrPrecision is returned when a decimal string carries more
// fractional digits than Scale.
var ErrPrecision = errors.New("too many decimal places")

// IsValidCurrency reports whether c is a known currency code.
func IsValidCurrency(c Currency) bool {
	switch c {
	case USD, EUR, GBP, NGN, THB, MYR, SGD:
		return true
	}
	return false
}

// Money is a fixed-point amount: Units holds ten-thousandths of the
// major unit. No floating point is used anywhere in amount handling.
type Money struct {
	Units    int64
	Currency Currency
}

// New creates a Money value from units (ten-thousandths).
func New(units int64, currency Currency) Money {
	return Money{Units: units, Currency: currency}
}

// FromMajor creates a Money value from whole major units.
func FromMajor(major int64, currency Currency) Money {
	return Money{Units: major * 10000, Currency: currency}
}

// Zero returns a zero amount for a currency
func Zero(currency Currency) Money {
	return Money{Units: 0, Currency: currency}
}

// Parse converts a decimal string ("12.3400") into Money. Strings with
// more than Scale fractional digits are rejected rather than rounded.
func Parse(s string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return Money{}, fmt.Errorf("amount %q: %w", s, ErrPrecision)
	}
	return Money{Units: shifted.IntPart(), Currency: currency}, nil
}

// Decimal returns the canonical decimal-string representation with
// exactly Scale fractional digits.
func (m Money) Decimal() string {
	return decimal.New(m.Units, -Scale).StringFixed(Scale)
}

// String returns the amount with its currency code.
func (m Money) String() string {
	return m.Decimal() + " " + string(m.Currency)
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.Units == 0
}

// IsPositive returns true if the amount is strictly positive
func (m Money) IsPositive() bool {
	return m.Units > 0
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.Units < 0
}

// Negate returns the negated amount
func (m Money) Negate() Money {
	return Money{Units: -m.Units, Currency: m.Currency}
}

// Add adds two amounts (must be same currency)
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Units: m.Units + other.Units, Currency: m.Currency}, nil
}

// Sub subtracts two amounts (must be same currency)
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Units: m.Units - other.Units, Currency: m.Currency}, nil
}

// MustAdd adds two amounts, panics on currency mismatch. Reserved for
// callers that have already verified both operands.
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// MustSub subtracts two amounts, panics on currency mismatch.
func (m Money) MustSub(other Money) Money {
	result, err := m.Sub(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Compare returns -1, 0, or 1
func (m Money) Compare(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	switch {
	case m.Units < other.Units:
		return -1, nil
	case m.Units > other.Units:
		return 1, nil
	}
	return 0, nil
}

// Equal checks equality of amount and currency.
func (m Money) Equal(other Money) bool {
	return m.Units == other.Units && m.Currency == other.Currency
}

// GreaterThan checks if m > other
func (m Money) GreaterThan(other Money) bool {
	cmp, err := m.Compare(other)
	return err == nil && cmp > 0
}

// LessThan checks if m < other
func (m Money) LessThan(other Money) bool {
	cmp, err := m.Compare(other)
	return err == nil && cmp < 0
}

// MarshalJSON encodes the amount as a decimal string, never a float.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}{
		Amount:   m.Decimal(),
		Currency: string(m.Currency),
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := Parse(v.Amount, Currency(v.Currency))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scan implements sql.Scanner for numeric(19,4) columns scanned as text.
func (m *Money) Scan(src interface{}) error {
	if src == nil {
		*m = Money{}
		return nil
	}
	switch v := src.(type) {
	case int64:
		m.Units = v
		return nil
	case string:
		parsed, err := Parse(v, m.Currency)
		if err != nil {
			return err
		}
		m.Units = parsed.Units
		return nil
	case []byte:
		parsed, err := Parse(string(v), m.Currency)
		if err != nil {
			return err
		}
		m.Units = parsed.Units
		return nil
	default:
		return errors.New("cannot scan into Money")
	}
}

// Value implements driver.Valuer, emitting the decimal string so the
// database stores exact numeric values.
func (m Money) Value() (driver.Value, error) {
	return m.Decimal(), nil
}

// Sum adds up multiple amounts
func Sum(amounts ...Money) (Money, error) {
	if len(amounts) == 0 {
		return Money{}, nil
	}
	result := amounts[0]
	for _, a := range amounts[1:] {
		var err error
		result, err = result.Add(a)
		if err != nil {
			return Money{}, err
		}
	}
	return result, nil
}
