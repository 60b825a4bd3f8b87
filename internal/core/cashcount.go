package core

import (
	"errors"
	"math"
	"sort"
)

// Banknote and coin denominations accepted in a cash count, largest first.
var denominations = []Money{
	Euros(500), Euros(200), Euros(100), Euros(50), Euros(20), Euros(10), Euros(5),
	Cents(200), Cents(100), Cents(50), Cents(20), Cents(10), Cents(5), Cents(2), Cents(1),
}

var (
	ErrUnknownDenomination = errors.New("unknown denomination")
	ErrNegativeCount       = errors.New("negative denomination count")
)

// CashCount records how many notes and coins of each denomination were
// counted for a cash offering. Keys are denominations in cents.
type CashCount struct {
	Counts map[int64]int `json:"counts"`
}

// Denominations returns the accepted denominations, largest first.
func Denominations() []Money {
	out := make([]Money, len(denominations))
	copy(out, denominations)
	return out
}

// Total sums the counted notes and coins. It is zero when the sum does not
// fit in int64 cents.
func (c CashCount) Total() Money {
	total, ok := c.sum()
	if !ok {
		return Money{}
	}
	return Money{Cents: total}
}

func (c CashCount) sum() (int64, bool) {
	var total int64
	for cents, n := range c.Counts {
		if n <= 0 || cents <= 0 {
			continue
		}
		if int64(n) > (math.MaxInt64-total)/cents {
			return 0, false
		}
		total += cents * int64(n)
	}
	return total, true
}

func (c CashCount) Validate() error {
	if _, ok := c.sum(); !ok {
		return ErrInvalidAmount
	}
	for cents, n := range c.Counts {
		if n < 0 {
			return ErrNegativeCount
		}
		if !isDenomination(cents) {
			return ErrUnknownDenomination
		}
	}
	return nil
}

// Lines returns the non-zero denominations in descending order.
func (c CashCount) Lines() []Money {
	out := make([]Money, 0, len(c.Counts))
	for cents, n := range c.Counts {
		if n > 0 {
			out = append(out, Money{Cents: cents})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cents > out[j].Cents })
	return out
}

func isDenomination(cents int64) bool {
	for _, d := range denominations {
		if d.Cents == cents {
			return true
		}
	}
	return false
}
