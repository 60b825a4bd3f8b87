package ledger

import (
	"errors"

	"treasury/internal/core"
)

var (
	ErrRentTargetReached = errors.New("rent reserve already at target")
	ErrNoGeneralBalance  = errors.New("no general balance to move into the rent reserve")
)

// TopUpDescription labels the entry recorded by a manual rent reserve top-up.
const TopUpDescription = "Rent reserve top-up"

// PlanRentTopUp returns how much can be moved from GENERAL into the rent
// reserve to bring it to the target.
func PlanRentTopUp(stats core.Statistics, cfg core.Configuration) (core.Money, error) {
	missing := cfg.RentTarget.Sub(stats.Fund(core.FundRentReserve))
	if !missing.IsPositive() {
		return core.Money{}, ErrRentTargetReached
	}
	general := stats.Fund(core.FundGeneral)
	if !general.IsPositive() {
		return core.Money{}, ErrNoGeneralBalance
	}
	return core.Min(missing, general), nil
}

// TopUpRequest builds the RENT_ALLOCATION request for amount.
func TopUpRequest(amount core.Money) EntryRequest {
	return EntryRequest{
		Description: TopUpDescription,
		Amount:      amount,
		Direction:   core.Expense,
		Category:    core.RentAllocation,
	}
}
