package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"treasury/internal/core"
)

func TestAllocateAtEntryIncome(t *testing.T) {
	cfg := core.DefaultConfiguration()

	cases := []struct {
		name        string
		amount      core.Money
		rentBalance core.Money
		want        core.Allocations
	}{
		{
			name:   "below target splits every percentage",
			amount: core.Euros(100),
			want: core.Allocations{
				core.FundRentReserve: core.Euros(40),
				core.FundEmergency:   core.Euros(10),
				core.FundUtilities:   core.Euros(20),
				core.FundGeneral:     core.Euros(30),
			},
		},
		{
			name:        "target reached sends rent share to general",
			amount:      core.Euros(100),
			rentBalance: core.Euros(1350),
			want: core.Allocations{
				core.FundRentReserve: core.Money{},
				core.FundEmergency:   core.Euros(10),
				core.FundUtilities:   core.Euros(20),
				core.FundGeneral:     core.Euros(70),
			},
		},
		{
			name:   "general absorbs rounding",
			amount: core.Cents(3333),
			want: core.Allocations{
				core.FundRentReserve: core.Cents(1333),
				core.FundEmergency:   core.Cents(333),
				core.FundUtilities:   core.Cents(667),
				core.FundGeneral:     core.Cents(1000),
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := core.Entry{Amount: tc.amount, Direction: core.Income, Category: core.Tithe}
			got := AllocateAtEntry(e, cfg, tc.rentBalance, "")
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.amount, got.Total())
		})
	}
}

func TestAllocateAtEntryUnhealthyPercentages(t *testing.T) {
	cfg := core.DefaultConfiguration()
	cfg.FundPercentages[core.FundGeneral] = 20

	e := core.Entry{Amount: core.Euros(100), Direction: core.Income, Category: core.Offering}
	got := AllocateAtEntry(e, cfg, core.Money{}, "")
	assert.Equal(t, core.Euros(20), got[core.FundGeneral])
	assert.Equal(t, core.Euros(90), got.Total())
}

func TestAllocateAtEntryExpenses(t *testing.T) {
	cfg := core.DefaultConfiguration()
	amount := core.Euros(50)

	cases := []struct {
		dir    core.Direction
		cat    core.Category
		source core.FundType
		want   core.Allocations
	}{
		{core.Expense, core.Rent, "", core.Allocations{core.FundRentReserve: amount.Neg()}},
		{core.Expense, core.UtilityBill, "", core.Allocations{core.FundUtilities: amount.Neg()}},
		{core.Expense, core.EmergencyWithdrawal, "", core.Allocations{core.FundEmergency: amount.Neg()}},
		{core.Expense, core.RentAllocation, "", core.Allocations{core.FundGeneral: amount.Neg(), core.FundRentReserve: amount}},
		{core.Expense, core.ChildrenMinistry, "", core.Allocations{core.FundChildren: amount.Neg()}},
		{core.Income, core.ChildrenMinistry, "", core.Allocations{core.FundChildren: amount}},
		{core.Expense, core.Maintenance, "", core.Allocations{core.FundGeneral: amount.Neg()}},
		{core.Expense, core.SocialAid, core.FundUtilities, core.Allocations{core.FundUtilities: amount.Neg()}},
		{core.Expense, core.Other, core.FundChildren, core.Allocations{core.FundGeneral: amount.Neg()}},
	}
	for _, tc := range cases {
		e := core.Entry{Amount: amount, Direction: tc.dir, Category: tc.cat}
		assert.Equal(t, tc.want, AllocateAtEntry(e, cfg, core.Money{}, tc.source), "%s %s", tc.dir, tc.cat)
	}
}

func TestEmergencyContribution(t *testing.T) {
	cases := []struct {
		e    core.Entry
		want core.Money
	}{
		{core.Entry{Amount: core.Euros(100), Direction: core.Income, Category: core.Tithe}, core.Euros(10)},
		{core.Entry{Amount: core.Cents(10005), Direction: core.Income, Category: core.Offering}, core.Cents(1001)},
		{core.Entry{Amount: core.Euros(100), Direction: core.Income, Category: core.Other}, core.Money{}},
		{core.Entry{Amount: core.Euros(100), Direction: core.Income, Category: core.ChildrenMinistry}, core.Money{}},
		{core.Entry{Amount: core.Euros(100), Direction: core.Expense, Category: core.Maintenance}, core.Money{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EmergencyContribution(tc.e), "%s %s %s", tc.e.Direction, tc.e.Category, tc.e.Amount)
	}
}
