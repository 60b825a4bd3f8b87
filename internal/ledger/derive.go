// Package ledger is the fund-allocation and balance-derivation engine.
//
// Everything here is pure: functions take the entries, the configuration and,
// where needed, the persisted emergency seed as explicit arguments and never
// perform I/O. Balances are re-derived from scratch on every call.
package ledger

import (
	"sort"

	"treasury/internal/core"
)

// Chronological returns a copy of entries sorted by date, then by insertion
// sequence. Entries that compare equal keep their relative input order.
func Chronological(entries []core.Entry) []core.Entry {
	out := make([]core.Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.Before(b.Date.Time)
		}
		return a.Seq < b.Seq
	})
	return out
}

// balances is the replay state of one derivation.
type balances struct {
	rent      core.Money
	emergency core.Money
	utilities core.Money
	general   core.Money
	children  core.Money
}

// drawDown takes amount from *fund, flooring it at zero, and debits the
// shortfall from general.
func (b *balances) drawDown(fund *core.Money, amount core.Money) {
	available := core.Max(*fund, core.Money{})
	take := core.Min(amount, available)
	*fund = fund.Sub(take)
	b.general = b.general.Sub(amount.Sub(take))
}

// fillRent moves up to the missing part of target into the rent reserve and
// returns what is left of amount.
func (b *balances) fillRent(amount, target core.Money) core.Money {
	missing := core.Max(target.Sub(b.rent), core.Money{})
	toRent := core.Min(amount, missing)
	b.rent = b.rent.Add(toRent)
	return amount.Sub(toRent)
}

// DeriveStatistics replays entries in chronological order and returns totals
// and fund balances. Internal transfers are skipped entirely. The emergency
// fund starts from emergencySeed, the persisted running total of emergency
// contributions, and is only reduced here.
func DeriveStatistics(entries []core.Entry, cfg core.Configuration, emergencySeed core.Money) core.Statistics {
	stats := core.NewStatistics()
	b := balances{emergency: emergencySeed}

	for _, e := range Chronological(entries) {
		if e.IsInternalTransfer() {
			continue
		}
		switch e.Direction {
		case core.Income:
			if e.Category == core.ChildrenMinistry {
				b.children = b.children.Add(e.Amount)
				stats.ChildrenIncome = stats.ChildrenIncome.Add(e.Amount)
				continue
			}
			stats.TotalIncome = stats.TotalIncome.Add(e.Amount)
			remainder := b.fillRent(e.Amount, cfg.RentTarget)
			b.general = b.general.Add(remainder)

		case core.Expense:
			switch e.Category {
			case core.ChildrenMinistry:
				b.children = b.children.Sub(e.Amount)
				stats.ChildrenExpenses = stats.ChildrenExpenses.Add(e.Amount)
			case core.Rent:
				stats.TotalExpenses = stats.TotalExpenses.Add(e.Amount)
				b.drawDown(&b.rent, e.Amount)
			case core.UtilityBill:
				stats.TotalExpenses = stats.TotalExpenses.Add(e.Amount)
				b.drawDown(&b.utilities, e.Amount)
			case core.EmergencyWithdrawal:
				stats.TotalExpenses = stats.TotalExpenses.Add(e.Amount)
				b.drawDown(&b.emergency, e.Amount)
			case core.RentAllocation:
				b.general = b.general.Sub(e.Amount)
				b.rent = b.rent.Add(e.Amount)
			default:
				stats.TotalExpenses = stats.TotalExpenses.Add(e.Amount)
				b.general = b.general.Sub(e.Amount)
			}
		}
	}

	stats.NetBalance = stats.TotalIncome.Sub(stats.TotalExpenses)
	stats.FundBalances[core.FundRentReserve] = b.rent
	stats.FundBalances[core.FundEmergency] = b.emergency
	stats.FundBalances[core.FundUtilities] = b.utilities
	stats.FundBalances[core.FundGeneral] = b.general
	stats.FundBalances[core.FundChildren] = b.children
	return stats
}
