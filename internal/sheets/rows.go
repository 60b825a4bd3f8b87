package sheets

import (
	"time"

	"treasury/internal/core"
)

// LedgerHeader is the first row of the ledger sheet. Column A holds the entry
// ID and is how rows are found again.
var LedgerHeader = []any{
	"ID", "Date", "Description", "Direction", "Category", "Amount",
	"Rent reserve", "Emergency", "Utilities", "General", "Children",
	"Invoice", "Internal transfer",
}

// EntryRow renders e in LedgerHeader order. Amounts are euros so the sheet
// can sum them.
func EntryRow(e core.Entry) []any {
	row := []any{
		e.ID,
		e.Date.String(),
		e.Description,
		string(e.Direction),
		string(e.Category),
		e.Amount.Float(),
	}
	for _, f := range core.Funds() {
		row = append(row, e.FundAllocations[f].Float())
	}
	transfer := "no"
	if e.IsInternalTransfer() {
		transfer = "yes"
	}
	return append(row, e.InvoiceRef, transfer)
}

// LedgerRows renders the header followed by one row per entry.
func LedgerRows(entries []core.Entry) [][]any {
	rows := make([][]any, 0, len(entries)+1)
	rows = append(rows, LedgerHeader)
	for _, e := range entries {
		rows = append(rows, EntryRow(e))
	}
	return rows
}

// SummaryRows renders totals, fund balances and the configuration.
func SummaryRows(stats core.Statistics, cfg core.Configuration, updated time.Time) [][]any {
	rows := [][]any{
		{"Organization", cfg.OrganizationName},
		{"Updated at", updated.UTC().Format(time.RFC3339)},
		{},
		{"Total income", stats.TotalIncome.Float()},
		{"Total expenses", stats.TotalExpenses.Float()},
		{"Net balance", stats.NetBalance.Float()},
		{"Children income", stats.ChildrenIncome.Float()},
		{"Children expenses", stats.ChildrenExpenses.Float()},
		{},
		{"Fund", "Balance", "Percentage"},
	}
	for _, f := range core.Funds() {
		rows = append(rows, []any{f.Label(), stats.Fund(f).Float(), cfg.Percentage(f)})
	}
	return append(rows,
		[]any{},
		[]any{"Rent target", cfg.RentTarget.Float()},
		[]any{"Monthly rent", cfg.RentAmount.Float()},
	)
}

// FindRow returns the zero-based index of the row whose first cell is id,
// or -1.
func FindRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) > 0 && row[0] == id {
			return i
		}
	}
	return -1
}
