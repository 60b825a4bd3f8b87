package ledger

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury/internal/core"
)

var seq int64

func entry(day int, dir core.Direction, cat core.Category, euros int64, desc string) core.Entry {
	seq++
	return core.Entry{
		ID:          desc,
		Seq:         seq,
		Date:        core.NewDate(2024, 1, day),
		Description: desc,
		Amount:      core.Euros(euros),
		Direction:   dir,
		Category:    cat,
	}
}

func income(day int, cat core.Category, euros int64) core.Entry {
	return entry(day, core.Income, cat, euros, "income")
}

func expense(day int, cat core.Category, euros int64) core.Entry {
	return entry(day, core.Expense, cat, euros, "expense")
}

func TestDeriveStatisticsScenario(t *testing.T) {
	entries := []core.Entry{
		income(1, core.Tithe, 1000),
		expense(2, core.Rent, 300),
		income(3, core.Offering, 500),
	}

	stats := DeriveStatistics(entries, core.DefaultConfiguration(), core.Money{})

	assert.Equal(t, core.Euros(1200), stats.Fund(core.FundRentReserve))
	assert.Equal(t, core.Euros(0), stats.Fund(core.FundGeneral))
	assert.Equal(t, core.Euros(1500), stats.TotalIncome)
	assert.Equal(t, core.Euros(300), stats.TotalExpenses)
	assert.Equal(t, core.Euros(1200), stats.NetBalance)
	assert.Len(t, stats.FundBalances, 5)
}

func TestDeriveStatisticsDeterministic(t *testing.T) {
	entries := []core.Entry{
		income(1, core.Tithe, 2000),
		expense(2, core.UtilityBill, 75),
		expense(3, core.Maintenance, 40),
		income(4, core.ChildrenMinistry, 30),
	}
	cfg := core.DefaultConfiguration()

	first := DeriveStatistics(entries, cfg, core.Euros(10))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DeriveStatistics(entries, cfg, core.Euros(10)))
	}
}

func TestDeriveStatisticsInputOrderIndependent(t *testing.T) {
	entries := []core.Entry{
		income(1, core.Tithe, 100),
		expense(2, core.Rent, 80),
		expense(2, core.Rent, 50),
		income(3, core.Offering, 900),
		expense(4, core.SocialAid, 25),
		expense(5, core.UtilityBill, 60),
	}
	cfg := core.DefaultConfiguration()
	want := DeriveStatistics(entries, cfg, core.Money{})

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]core.Entry(nil), entries...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, DeriveStatistics(shuffled, cfg, core.Money{}))
	}

	// Two same-day rent payments exceeding the reserve: 100 in reserve,
	// 80 + 50 paid, 30 borrowed from GENERAL.
	assert.Equal(t, core.Money{}, DeriveStatistics(entries[:3], cfg, core.Money{}).Fund(core.FundRentReserve))
	assert.Equal(t, core.Euros(-30), DeriveStatistics(entries[:3], cfg, core.Money{}).Fund(core.FundGeneral))
}

func TestDeriveStatisticsSameDateReplayOrder(t *testing.T) {
	cfg := core.DefaultConfiguration()
	in := income(1, core.Offering, 500)
	rent := expense(1, core.Rent, 300)

	in.Seq, rent.Seq = 1, 2
	incomeFirst := DeriveStatistics([]core.Entry{rent, in}, cfg, core.Money{})
	assert.Equal(t, core.Euros(200), incomeFirst.Fund(core.FundRentReserve))
	assert.Equal(t, core.Euros(0), incomeFirst.Fund(core.FundGeneral))

	in.Seq, rent.Seq = 2, 1
	rentFirst := DeriveStatistics([]core.Entry{in, rent}, cfg, core.Money{})
	assert.Equal(t, core.Euros(500), rentFirst.Fund(core.FundRentReserve))
	assert.Equal(t, core.Euros(-300), rentFirst.Fund(core.FundGeneral))

	// Equal sequence numbers fall back to input order.
	in.Seq, rent.Seq = 0, 0
	stable := DeriveStatistics([]core.Entry{rent, in}, cfg, core.Money{})
	assert.Equal(t, rentFirst, stable)
}

func TestDeriveStatisticsRentWaterfallBoundary(t *testing.T) {
	stats := DeriveStatistics([]core.Entry{income(1, core.Tithe, 2000)}, core.DefaultConfiguration(), core.Money{})
	assert.Equal(t, core.Euros(1350), stats.Fund(core.FundRentReserve))
	assert.Equal(t, core.Euros(650), stats.Fund(core.FundGeneral))

	// Once full, income goes straight to GENERAL.
	stats = DeriveStatistics([]core.Entry{income(1, core.Tithe, 2000), income(2, core.Offering, 100)}, core.DefaultConfiguration(), core.Money{})
	assert.Equal(t, core.Euros(1350), stats.Fund(core.FundRentReserve))
	assert.Equal(t, core.Euros(750), stats.Fund(core.FundGeneral))
}

func TestDeriveStatisticsFloorNeverNegative(t *testing.T) {
	cfg := core.DefaultConfiguration()
	base := []core.Entry{income(1, core.Tithe, 2000)}
	before := DeriveStatistics(base, cfg, core.Euros(50))
	require.Equal(t, core.Euros(650), before.Fund(core.FundGeneral))

	after := DeriveStatistics(append(base, expense(2, core.EmergencyWithdrawal, 80)), cfg, core.Euros(50))
	assert.Equal(t, core.Money{}, after.Fund(core.FundEmergency))
	assert.Equal(t, core.Euros(620), after.Fund(core.FundGeneral))
	assert.Equal(t, core.Euros(80), after.TotalExpenses)

	bills := DeriveStatistics(append(base, expense(2, core.UtilityBill, 45)), cfg, core.Money{})
	assert.Equal(t, core.Money{}, bills.Fund(core.FundUtilities))
	assert.Equal(t, core.Euros(605), bills.Fund(core.FundGeneral))
}

func TestDeriveStatisticsChildrenIsolation(t *testing.T) {
	cfg := core.DefaultConfiguration()
	adults := []core.Entry{
		income(1, core.Tithe, 1500),
		expense(2, core.Maintenance, 40),
		expense(3, core.EmergencyWithdrawal, 5),
	}
	children := []core.Entry{
		income(1, core.ChildrenMinistry, 70),
		expense(2, core.ChildrenMinistry, 25),
		expense(4, core.ChildrenMinistry, 60),
	}

	without := DeriveStatistics(adults, cfg, core.Euros(20))
	with := DeriveStatistics(append(append([]core.Entry(nil), adults...), children...), cfg, core.Euros(20))

	for _, f := range []core.FundType{core.FundRentReserve, core.FundEmergency, core.FundUtilities, core.FundGeneral} {
		assert.Equal(t, without.Fund(f), with.Fund(f), f)
	}
	assert.Equal(t, without.TotalIncome, with.TotalIncome)
	assert.Equal(t, without.TotalExpenses, with.TotalExpenses)
	assert.Equal(t, core.Money{}, without.Fund(core.FundChildren))
	assert.Equal(t, core.Euros(-15), with.Fund(core.FundChildren))
	assert.Equal(t, core.Euros(70), with.ChildrenIncome)
	assert.Equal(t, core.Euros(85), with.ChildrenExpenses)
}

func TestDeriveStatisticsInternalTransferExclusion(t *testing.T) {
	cfg := core.DefaultConfiguration()
	base := []core.Entry{income(1, core.Tithe, 500), expense(2, core.Rent, 450)}
	want := DeriveStatistics(base, cfg, core.Money{})

	transfers := append(append([]core.Entry(nil), base...),
		entry(2, core.Expense, core.Other, 450, "AUTOMATIC REPLENISHMENT - Rent reserve"),
		entry(3, core.Income, core.Other, 999, "Transfer from savings"),
		func() core.Entry {
			e := expense(3, core.Maintenance, 10)
			e.InternalTransfer = true
			return e
		}(),
	)
	assert.Equal(t, want, DeriveStatistics(transfers, cfg, core.Money{}))
}

func TestDeriveStatisticsRentAllocation(t *testing.T) {
	entries := []core.Entry{
		income(1, core.Tithe, 2000),
		expense(2, core.Rent, 450),
		expense(3, core.RentAllocation, 300),
	}
	stats := DeriveStatistics(entries, core.DefaultConfiguration(), core.Money{})
	assert.Equal(t, core.Euros(1200), stats.Fund(core.FundRentReserve))
	assert.Equal(t, core.Euros(350), stats.Fund(core.FundGeneral))
	assert.Equal(t, core.Euros(450), stats.TotalExpenses)
}

func TestDeriveStatisticsEmptyLedger(t *testing.T) {
	stats := DeriveStatistics(nil, core.DefaultConfiguration(), core.Euros(42))
	assert.Equal(t, core.Euros(42), stats.Fund(core.FundEmergency))
	assert.Equal(t, core.Money{}, stats.NetBalance)
	assert.Len(t, stats.FundBalances, 5)
}
