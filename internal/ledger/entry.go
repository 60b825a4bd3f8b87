package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"treasury/internal/core"
)

// EntryRequest carries the user input for a new entry.
type EntryRequest struct {
	Date             core.Date       `json:"date"`
	Description      string          `json:"description"`
	Amount           core.Money      `json:"amount"`
	Direction        core.Direction  `json:"direction"`
	Category         core.Category   `json:"category"`
	InvoiceRef       string          `json:"invoiceRef,omitempty"`
	InternalTransfer bool            `json:"internalTransfer,omitempty"`
	CashCount        *core.CashCount `json:"cashCount,omitempty"`
	// SourceFund is the fund an uncategorised expense is paid from. Empty means GENERAL.
	SourceFund core.FundType `json:"sourceFund,omitempty"`
}

// Factory turns requests into ledger entries.
type Factory struct {
	NewID func() string
	Now   func() time.Time
}

// NewFactory returns a Factory using random UUIDs and the wall clock.
func NewFactory() *Factory {
	return &Factory{NewID: uuid.NewString, Now: time.Now}
}

// CreateEntries validates req and returns the entries to persist, in order.
//
// A rent payment returns two entries: the payment itself and the linked
// replenishment that moves the same amount from GENERAL back into the rent
// reserve. rentBalance is the current derived rent reserve, used to decide
// whether income still feeds the reserve.
func (f *Factory) CreateEntries(req EntryRequest, cfg core.Configuration, rentBalance core.Money) ([]core.Entry, error) {
	now := f.Now().UTC()

	date := req.Date
	if date.IsZero() {
		date = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}
	amount := req.Amount
	if amount.IsZero() && req.CashCount != nil && req.Direction == core.Income {
		amount = req.CashCount.Total()
	}

	e := core.Entry{
		ID:               f.NewID(),
		Date:             date,
		Description:      strings.TrimSpace(req.Description),
		Amount:           amount,
		Direction:        req.Direction,
		Category:         req.Category,
		InvoiceRef:       strings.TrimSpace(req.InvoiceRef),
		InternalTransfer: req.InternalTransfer,
		CashCount:        req.CashCount,
		CreatedAt:        now,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if req.SourceFund != "" && (!req.SourceFund.IsKnown() || req.SourceFund == core.FundChildren) {
		return nil, &core.ValidationError{Field: "sourceFund", Err: core.ErrInvalidFund}
	}
	e.FundAllocations = AllocateAtEntry(e, cfg, rentBalance, req.SourceFund)

	if e.Direction != core.Expense || e.Category != core.Rent {
		return []core.Entry{e}, nil
	}
	return []core.Entry{e, f.replenishment(e, now)}, nil
}

func (f *Factory) replenishment(rent core.Entry, now time.Time) core.Entry {
	return core.Entry{
		ID:               f.NewID(),
		Date:             rent.Date,
		Description:      core.ReplenishmentDescription,
		Amount:           rent.Amount,
		Direction:        core.Expense,
		Category:         core.Other,
		InternalTransfer: true,
		FundAllocations: core.Allocations{
			core.FundRentReserve: rent.Amount,
			core.FundGeneral:     rent.Amount.Neg(),
		},
		CreatedAt: now,
	}
}
