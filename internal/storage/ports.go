// Package storage persists the ledger: entries, configuration, the emergency
// seed and saved reports. Every write bumps a monotonic revision counter used
// as the entry sequence and as the statistics cache key.
package storage

import (
	"context"
	"errors"

	"treasury/internal/core"
)

var ErrNotFound = errors.New("not found")

// EntryStore persists ledger entries.
type EntryStore interface {
	// AppendEntry stores e and returns it with its insertion sequence set.
	AppendEntry(ctx context.Context, e core.Entry) (core.Entry, error)
	ListEntries(ctx context.Context) ([]core.Entry, error)
	GetEntry(ctx context.Context, id string) (core.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
	// UpdateAllocations rewrites the fund allocations of the given entries.
	UpdateAllocations(ctx context.Context, entries []core.Entry) error
}

// AtomicEntryWriter is implemented by stores that can write several entries
// all-or-nothing.
type AtomicEntryWriter interface {
	AppendEntries(ctx context.Context, entries []core.Entry) ([]core.Entry, error)
}

// ConfigStore persists the administrator configuration.
type ConfigStore interface {
	// LoadConfiguration returns core.DefaultConfiguration when nothing was saved.
	LoadConfiguration(ctx context.Context) (core.Configuration, error)
	SaveConfiguration(ctx context.Context, cfg core.Configuration) error
}

// EmergencyStore holds the running total of emergency contributions.
type EmergencyStore interface {
	EmergencyBalance(ctx context.Context) (core.Money, error)
	IncrementEmergencyBalance(ctx context.Context, delta core.Money) (core.Money, error)
}

// ReportStore persists statistics snapshots.
type ReportStore interface {
	SaveReport(ctx context.Context, r core.Report) error
	// ListReports returns reports newest first.
	ListReports(ctx context.Context) ([]core.Report, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	EntryStore
	ConfigStore
	EmergencyStore
	ReportStore
	Revision(ctx context.Context) (int64, error)
	Close() error
}
