package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury/internal/core"
)

func readBack(t *testing.T, raw string) [][]string {
	t.Helper()
	require.True(t, strings.HasPrefix(raw, utf8BOM), "missing BOM")
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(raw, utf8BOM)))
	r.Comma = Separator
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteEntriesStartsWithUTF8BOM(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEntries(&buf, nil))
	require.GreaterOrEqual(t, buf.Len(), 3)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, buf.Bytes()[:3])
}

func TestWriteEntries(t *testing.T) {
	entries := []core.Entry{
		{
			Date:        core.NewDate(2024, 5, 5),
			Description: `Offering; "special"`,
			Amount:      core.Cents(10050),
			Direction:   core.Income,
			Category:    core.Offering,
			FundAllocations: core.Allocations{
				core.FundRentReserve: core.Cents(4020),
				core.FundGeneral:     core.Cents(6030),
			},
		},
		{
			Date:        core.NewDate(2024, 5, 6),
			Description: "Electricity",
			Amount:      core.Euros(80),
			Direction:   core.Expense,
			Category:    core.UtilityBill,
			InvoiceRef:  "INV-7",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteEntries(&buf, entries))

	records := readBack(t, buf.String())
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Date", "Description", "Direction", "Category", "Amount",
		"Rent reserve", "Emergency", "Utilities", "General", "Children",
		"Invoice", "Internal transfer"}, records[0])
	assert.Equal(t, []string{"2024-05-05", `Offering; "special"`, "INCOME", "OFFERING", "100.50",
		"40.20", "0.00", "0.00", "60.30", "0.00", "", "false"}, records[1])
	assert.Equal(t, "INV-7", records[2][10])
}

func TestWriteSummary(t *testing.T) {
	stats := core.NewStatistics()
	stats.TotalIncome = core.Euros(500)
	stats.NetBalance = core.Euros(500)
	stats.FundBalances[core.FundRentReserve] = core.Euros(500)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, stats, core.DefaultConfiguration(), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))

	records := readBack(t, buf.String())
	assert.Equal(t, []string{"Organization", "Treasury"}, records[0])
	assert.Contains(t, records, []string{"Total income", "500.00"})
	assert.Contains(t, records, []string{"Rent reserve balance", "500.00", "40%"})
	assert.Contains(t, records, []string{"Rent target", "1350.00"})
}

func TestFilenames(t *testing.T) {
	now := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "treasury-entries-2024-05-01.csv", EntriesFilename(now))
	assert.Equal(t, "treasury-summary-2024-05-01.csv", SummaryFilename(now))
}
