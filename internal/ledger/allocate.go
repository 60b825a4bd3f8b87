package ledger

import (
	"github.com/shopspring/decimal"

	"treasury/internal/core"
)

// emergencyShare is the part of every tithe and offering set aside for the
// emergency fund when the entry is recorded.
var emergencyShare = decimal.NewFromInt(10)

// EmergencyContribution returns the amount added to the persisted emergency
// balance when e is recorded: 10% of tithe and offering income, zero otherwise.
func EmergencyContribution(e core.Entry) core.Money {
	if e.Direction != core.Income || e.IsInternalTransfer() {
		return core.Money{}
	}
	if e.Category != core.Tithe && e.Category != core.Offering {
		return core.Money{}
	}
	return e.Amount.Percent(emergencyShare)
}

// AllocateAtEntry computes the audit-trail allocations of a new entry.
//
// Income is split by the configured percentages. Once rentBalance has reached
// the rent target, the rent share goes to GENERAL instead. When the
// percentages sum to 100, GENERAL absorbs the cent rounding so the split adds
// up to the amount exactly. Expenses debit the fund their category draws from;
// uncategorised expenses debit source, or GENERAL when source is empty.
func AllocateAtEntry(e core.Entry, cfg core.Configuration, rentBalance core.Money, source core.FundType) core.Allocations {
	if e.Category == core.ChildrenMinistry {
		if e.Direction == core.Income {
			return core.Allocations{core.FundChildren: e.Amount}
		}
		return core.Allocations{core.FundChildren: e.Amount.Neg()}
	}
	if e.Direction == core.Income {
		return allocateIncome(e.Amount, cfg, rentBalance)
	}

	switch e.Category {
	case core.Rent:
		return core.Allocations{core.FundRentReserve: e.Amount.Neg()}
	case core.UtilityBill:
		return core.Allocations{core.FundUtilities: e.Amount.Neg()}
	case core.EmergencyWithdrawal:
		return core.Allocations{core.FundEmergency: e.Amount.Neg()}
	case core.RentAllocation:
		return core.Allocations{core.FundGeneral: e.Amount.Neg(), core.FundRentReserve: e.Amount}
	}
	if !source.IsKnown() || source == core.FundChildren {
		source = core.FundGeneral
	}
	return core.Allocations{source: e.Amount.Neg()}
}

func allocateIncome(amount core.Money, cfg core.Configuration, rentBalance core.Money) core.Allocations {
	pct := func(f core.FundType) decimal.Decimal {
		return decimal.NewFromInt(int64(cfg.Percentage(f)))
	}

	rentPct := pct(core.FundRentReserve)
	generalPct := pct(core.FundGeneral)
	if rentBalance.Cents >= cfg.RentTarget.Cents {
		generalPct = generalPct.Add(rentPct)
		rentPct = decimal.Zero
	}

	out := core.Allocations{
		core.FundRentReserve: amount.Percent(rentPct),
		core.FundEmergency:   amount.Percent(pct(core.FundEmergency)),
		core.FundUtilities:   amount.Percent(pct(core.FundUtilities)),
	}
	if cfg.Healthy() {
		out[core.FundGeneral] = amount.Sub(out.Total())
	} else {
		out[core.FundGeneral] = amount.Percent(generalPct)
	}
	return out
}
