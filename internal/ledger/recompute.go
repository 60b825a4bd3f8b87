package ledger

import (
	"github.com/shopspring/decimal"

	"treasury/internal/core"
)

// RecomputeResult is the outcome of a full allocation recomputation.
type RecomputeResult struct {
	// Entries is the full ledger in chronological order with corrected allocations.
	Entries []core.Entry
	// Changed holds the entries whose allocations differ from the stored ones.
	Changed []core.Entry
	// Degenerate is set when EMERGENCY, UTILITIES and GENERAL percentages sum
	// to zero and every remainder was routed to GENERAL.
	Degenerate bool
}

// Err returns core.ErrConfigurationDegenerate when the result is degenerate.
func (r RecomputeResult) Err() error {
	if r.Degenerate {
		return core.ErrConfigurationDegenerate
	}
	return nil
}

// RecomputeAllocations rewrites the allocations of every income entry that is
// neither children ministry nor an internal transfer.
//
// Entries are walked chronologically while a simulated rent reserve is kept:
// income fills it up to the target first, rent payments reduce it, and
// replenishments and manual top-ups restore it. A payment and its
// replenishment leave the reserve unchanged. What is left
// of each income is split across EMERGENCY, UTILITIES and GENERAL in
// proportion to their percentages. Amounts, dates, directions and categories
// are never touched. Running it twice yields the same allocations.
func RecomputeAllocations(entries []core.Entry, cfg core.Configuration) RecomputeResult {
	var (
		res  RecomputeResult
		rent core.Money
	)

	emergencyPct := decimal.NewFromInt(int64(cfg.Percentage(core.FundEmergency)))
	utilitiesPct := decimal.NewFromInt(int64(cfg.Percentage(core.FundUtilities)))
	generalPct := decimal.NewFromInt(int64(cfg.Percentage(core.FundGeneral)))
	proportional := emergencyPct.Add(utilitiesPct).Add(generalPct)

	for _, e := range Chronological(entries) {
		if e.Direction == core.Expense {
			switch {
			case e.Category == core.Rent:
				rent = rent.Sub(e.Amount)
			case e.Category == core.RentAllocation, e.IsReplenishment():
				rent = rent.Add(e.Amount)
			}
			res.Entries = append(res.Entries, e)
			continue
		}
		if e.Category == core.ChildrenMinistry || e.IsInternalTransfer() {
			res.Entries = append(res.Entries, e)
			continue
		}

		missing := core.Max(cfg.RentTarget.Sub(rent), core.Money{})
		toRent := core.Min(e.Amount, missing)
		rent = rent.Add(toRent)
		remaining := e.Amount.Sub(toRent)

		alloc := core.Allocations{
			core.FundRentReserve: toRent,
			core.FundEmergency:   {},
			core.FundUtilities:   {},
			core.FundGeneral:     {},
		}
		if remaining.IsPositive() {
			if proportional.IsZero() {
				res.Degenerate = true
				alloc[core.FundGeneral] = remaining
			} else {
				alloc[core.FundEmergency] = remaining.Ratio(emergencyPct, proportional)
				alloc[core.FundUtilities] = remaining.Ratio(utilitiesPct, proportional)
				alloc[core.FundGeneral] = remaining.Sub(alloc[core.FundEmergency]).Sub(alloc[core.FundUtilities])
			}
		}

		changed := !alloc.Equal(e.FundAllocations)
		e.FundAllocations = alloc
		if changed {
			res.Changed = append(res.Changed, e)
		}
		res.Entries = append(res.Entries, e)
	}
	return res
}
