// Package sheets mirrors the ledger into a spreadsheet for people who read
// the books there. The store stays the source of truth; the mirror can always
// be rebuilt from it.
package sheets

import (
	"context"
	"time"

	"treasury/internal/core"
)

// Ports for outbound adapters.
type (
	EntryWriter interface {
		// AppendEntry adds e unless a row with its ID already exists.
		AppendEntry(ctx context.Context, e core.Entry) error
	}

	EntryDeleter interface {
		// DeleteEntry removes the row of entry id. A missing row is not an error.
		DeleteEntry(ctx context.Context, id string) error
	}

	LedgerWriter interface {
		// ReplaceLedger rewrites every entry row.
		ReplaceLedger(ctx context.Context, entries []core.Entry) error
	}

	SummaryWriter interface {
		WriteSummary(ctx context.Context, stats core.Statistics, cfg core.Configuration, updated time.Time) error
	}

	// LedgerSink is a complete mirror target.
	LedgerSink interface {
		EntryWriter
		EntryDeleter
		LedgerWriter
		SummaryWriter
	}
)
