// Package export renders the ledger as spreadsheet-friendly CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"treasury/internal/core"
)

// Separator is the field delimiter. Spreadsheets in locales with a decimal
// comma split on it without an import dialog.
const Separator = ';'

// utf8BOM makes spreadsheet applications detect the encoding.
const utf8BOM = "\uFEFF"

func newWriter(w io.Writer) (*csv.Writer, error) {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return nil, err
	}
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	return cw, nil
}

// EntriesFilename names an entries export taken at t.
func EntriesFilename(t time.Time) string {
	return fmt.Sprintf("treasury-entries-%s.csv", t.Format(time.DateOnly))
}

// SummaryFilename names a summary export taken at t.
func SummaryFilename(t time.Time) string {
	return fmt.Sprintf("treasury-summary-%s.csv", t.Format(time.DateOnly))
}

// WriteEntries writes one row per entry with its per-fund allocations.
func WriteEntries(w io.Writer, entries []core.Entry) error {
	cw, err := newWriter(w)
	if err != nil {
		return err
	}

	header := []string{"Date", "Description", "Direction", "Category", "Amount"}
	for _, f := range core.Funds() {
		header = append(header, f.Label())
	}
	header = append(header, "Invoice", "Internal transfer")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, e := range entries {
		row := []string{
			e.Date.String(),
			e.Description,
			string(e.Direction),
			string(e.Category),
			e.Amount.String(),
		}
		for _, f := range core.Funds() {
			row = append(row, e.FundAllocations[f].String())
		}
		row = append(row, e.InvoiceRef, strconv.FormatBool(e.IsInternalTransfer()))
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteSummary writes totals, fund balances and the configuration as
// label/value rows.
func WriteSummary(w io.Writer, stats core.Statistics, cfg core.Configuration, generated time.Time) error {
	cw, err := newWriter(w)
	if err != nil {
		return err
	}

	rows := [][]string{
		{"Organization", cfg.OrganizationName},
		{"Generated at", generated.UTC().Format(time.RFC3339)},
		{"Total income", stats.TotalIncome.String()},
		{"Total expenses", stats.TotalExpenses.String()},
		{"Net balance", stats.NetBalance.String()},
		{"Children income", stats.ChildrenIncome.String()},
		{"Children expenses", stats.ChildrenExpenses.String()},
		{"Available", stats.Available().String()},
	}
	for _, f := range core.Funds() {
		rows = append(rows, []string{
			f.Label() + " balance",
			stats.Fund(f).String(),
			strconv.Itoa(cfg.Percentage(f)) + "%",
		})
	}
	rows = append(rows,
		[]string{"Rent target", cfg.RentTarget.String()},
		[]string{"Monthly rent", cfg.RentAmount.String()},
	)

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
