package omnifolio

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money represents an exact monetary value tagged with a currency code.
//
// The zero Money is a weak additive identity: it combines with any currency.
// Every other binary operation between two Money values requires matching
// currency tags and fails with ErrCurrencyMismatch otherwise. Crossing
// currencies is only possible through Convert, with a caller-supplied rate.
type Money struct {
	value decimal.Decimal // in major units
	cur   string
}

// M builds a Money from a numeric value or a decimal string and a currency code.
func M[T float32 | float64 | int | int32 | int64 | uint | uint32 | uint64 | decimal.Decimal | string](value T, currency string) Money {
	return Money{value: newDecimal(value), cur: currency}
}

// NewMoney builds a Money and enforces a non-empty currency code.
func NewMoney(value decimal.Decimal, currency string) (Money, error) {
	if currency == "" {
		return Money{}, fmt.Errorf("money requires a currency code: %w", ErrCurrencyMismatch)
	}
	return Money{value: value, cur: currency}, nil
}

// currency returns the full go-money currency for formatting.
func (m Money) currency() money.Currency {
	// the Money constructor is the only way to get a never-nil currency
	return *money.New(0, m.cur).Currency()
}

// String returns the formatted representation of the money value.
func (m Money) String() string {
	cur := m.currency()
	dec := m.value.Shift(int32(cur.Fraction))
	return cur.Formatter().Format(dec.IntPart())
}

func (m Money) Currency() string         { return m.cur }
func (m Money) Amount() decimal.Decimal  { return m.value }
func (m Money) Equal(n Money) bool       { return m.value.Equal(n.value) && m.cur == n.cur }
func (m Money) IsZero() bool             { return m.value.IsZero() }
func (m Money) IsPositive() bool         { return m.value.IsPositive() }
func (m Money) IsNegative() bool         { return m.value.IsNegative() }
func (m Money) Neg() Money               { return Money{value: m.value.Neg(), cur: m.cur} }
func (m Money) Mul(q Quantity) Money     { return Money{value: m.value.Mul(q.value), cur: m.cur} }
func (m Money) Div(q Quantity) Money     { return Money{value: m.value.Div(q.value), cur: m.cur} }

// cur resolves the currency tag of a binary operation. The "" currency is
// weak: it takes the other side's tag.
func cur(a, b Money) (string, error) {
	if a.cur == "" {
		return b.cur, nil
	}
	if b.cur == "" {
		return a.cur, nil
	}
	if a.cur != b.cur {
		return "", fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, a.cur, b.cur)
	}
	return a.cur, nil
}

// Add returns m + n. The currencies must match.
func (m Money) Add(n Money) (Money, error) {
	c, err := cur(m, n)
	if err != nil {
		return Money{}, err
	}
	return Money{value: m.value.Add(n.value), cur: c}, nil
}

// Sub returns m - n. The currencies must match.
func (m Money) Sub(n Money) (Money, error) {
	c, err := cur(m, n)
	if err != nil {
		return Money{}, err
	}
	return Money{value: m.value.Sub(n.value), cur: c}, nil
}

// Cmp compares two Money values of the same currency. It returns -1, 0 or 1.
func (m Money) Cmp(n Money) (int, error) {
	if _, err := cur(m, n); err != nil {
		return 0, err
	}
	return m.value.Cmp(n.value), nil
}

// DivPrice returns the dimensionless ratio m / n, an exchange-rate-free
// scalar only defined for matching currencies.
func (m Money) DivPrice(n Money) (Quantity, error) {
	if _, err := cur(m, n); err != nil {
		return Quantity{}, err
	}
	return Quantity{value: m.value.Div(n.value)}, nil
}

// Convert returns a new Money in a different currency, scaled by the given
// rate. It is purely mechanical and trusts the caller's rate.
func (m Money) Convert(currency string, rate Quantity) Money {
	return Money{value: m.value.Mul(rate.value), cur: currency}
}

// MarshalJSON implements the json.Marshaler interface.
func (m Money) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("currency", m.cur)
	w.Append("amount", m.value)
	return w.MarshalJSON()
}
