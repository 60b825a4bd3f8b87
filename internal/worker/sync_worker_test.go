package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury/internal/core"
	"treasury/internal/events"
	sheetsmem "treasury/internal/sheets/memory"
	"treasury/internal/storage"
)

type fakeLedger struct {
	entries []core.Entry
	err     error
}

func (f *fakeLedger) Entry(_ context.Context, id string) (core.Entry, error) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Entry{}, fmt.Errorf("get entry %s: %w", id, storage.ErrNotFound)
}

func (f *fakeLedger) Entries(context.Context) ([]core.Entry, error) {
	return f.entries, f.err
}

func (f *fakeLedger) Statistics(context.Context) (core.Statistics, error) {
	stats := core.NewStatistics()
	for _, e := range f.entries {
		stats.TotalIncome = stats.TotalIncome.Add(e.Amount)
	}
	return stats, nil
}

func (f *fakeLedger) Configuration(context.Context) (core.Configuration, error) {
	return core.DefaultConfiguration(), nil
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{entries: []core.Entry{
		{ID: "e-1", Amount: core.Euros(10)},
		{ID: "e-2", Amount: core.Euros(20)},
	}}
	sink := sheetsmem.New()
	w := NewSyncWorker(ledger, sink, nil)

	require.NoError(t, w.HandleEvent(ctx, events.New(events.EntryRecorded, 1).ForEntry("e-1")))
	assert.Len(t, sink.LedgerRows(), 2)
	assert.Contains(t, sink.SummaryRows(), []any{"Total income", 30.0})

	require.NoError(t, w.HandleEvent(ctx, events.New(events.EntryDeleted, 2).ForEntry("e-1")))
	assert.Len(t, sink.LedgerRows(), 1)

	// The entry may be deleted before its creation event is handled.
	require.NoError(t, w.HandleEvent(ctx, events.New(events.EntryRecorded, 3).ForEntry("gone")))
	assert.Len(t, sink.LedgerRows(), 1)

	require.NoError(t, w.HandleEvent(ctx, events.New(events.AllocationsRecomputed, 4)))
	assert.Len(t, sink.LedgerRows(), 3)

	require.NoError(t, w.HandleEvent(ctx, events.LedgerEvent{Kind: "something.else"}))
}

func TestFullSyncError(t *testing.T) {
	w := NewSyncWorker(&fakeLedger{err: errors.New("db down")}, sheetsmem.New(), nil)
	assert.Error(t, w.FullSync(context.Background()))
}

func TestRunWithoutConsumer(t *testing.T) {
	ledger := &fakeLedger{entries: []core.Entry{{ID: "e-1"}}}
	sink := sheetsmem.New()
	w := NewSyncWorker(ledger, sink, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.Run(ctx, nil, time.Hour)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, sink.LedgerRows(), 2)
}
