// Package core defines the ledger data model: entries, funds, configuration and
// the derived statistics snapshot.
//
// This file contains the Money type and the parsing helpers used at the input
// boundary. Amounts are integer cents; percentage math goes through decimal and
// is rounded half-up back to cents.
package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in euro cents.
type Money struct {
	Cents int64
}

// Cents is a shorthand constructor.
func Cents(c int64) Money { return Money{Cents: c} }

// Euros builds Money from a whole-euro amount.
func Euros(e int64) Money { return Money{Cents: e * 100} }

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }
func (m Money) IsPositive() bool  { return m.Cents > 0 }

// Min returns the smaller of two amounts.
func Min(a, b Money) Money {
	if a.Cents < b.Cents {
		return a
	}
	return b
}

// Max returns the larger of two amounts.
func Max(a, b Money) Money {
	if a.Cents > b.Cents {
		return a
	}
	return b
}

// Validate reports ErrInvalidAmount for zero or negative amounts.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount in euros as a decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the euro value for display and spreadsheet cells only.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with two decimals and a dot separator ("12.34").
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Largest euro amount whose cents still fit in an int64.
var (
	maxEuros = decimal.New(math.MaxInt64/100, 0)
	minEuros = maxEuros.Neg()
)

// FromDecimal rounds a euro decimal half-up to cents.
func FromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// Percent returns pct% of m, rounded half-up to cents.
func (m Money) Percent(pct decimal.Decimal) Money {
	return FromDecimal(m.Decimal().Mul(pct).Div(decimal.NewFromInt(100)))
}

// Ratio returns m × num / den rounded half-up to cents. A zero denominator yields zero.
func (m Money) Ratio(num, den decimal.Decimal) Money {
	if den.IsZero() {
		return Money{}
	}
	return FromDecimal(m.Decimal().Mul(num).Div(den))
}

// MarshalJSON encodes the amount as a JSON number of euros (two decimals).
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string in euros.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = Money{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = str
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return ErrInvalidAmount
	}
	if d.GreaterThan(maxEuros) || d.LessThan(minEuros) {
		return ErrInvalidAmount
	}
	*m = FromDecimal(d)
	return nil
}

// ParseDecimalToCents converts a positive decimal string to cents.
//
// Both dot (12.34) and comma (12,34) separators are accepted and the third
// decimal place is rounded half-up. Zero, negative, signed and non-numeric
// input is rejected with ErrInvalidAmount rather than coerced.
//
//	ParseDecimalToCents("12.34")  -> 1234
//	ParseDecimalToCents("12,346") -> 1235
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseMoney is ParseDecimalToCents returning Money.
func ParseMoney(s string) (Money, error) {
	c, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: c}, nil
}
