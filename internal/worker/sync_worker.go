// Package worker keeps the spreadsheet mirror in step with the ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"treasury/internal/core"
	"treasury/internal/events"
	"treasury/internal/log"
	"treasury/internal/sheets"
	"treasury/internal/storage"
)

// LedgerReader is the read side of the treasury service.
type LedgerReader interface {
	Entry(ctx context.Context, id string) (core.Entry, error)
	Entries(ctx context.Context) ([]core.Entry, error)
	Statistics(ctx context.Context) (core.Statistics, error)
	Configuration(ctx context.Context) (core.Configuration, error)
}

// SyncWorker applies ledger events to the spreadsheet. Single entry changes
// touch one row; anything that rewrites allocations triggers a full rewrite.
// The summary sheet is refreshed after every change.
type SyncWorker struct {
	ledger LedgerReader
	sink   sheets.LedgerSink
	logger *log.Logger
	now    func() time.Time

	// Serialises event handling with the periodic full sync.
	mu sync.Mutex
}

func NewSyncWorker(ledger LedgerReader, sink sheets.LedgerSink, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		ledger: ledger,
		sink:   sink,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// HandleEvent is an events.Handler.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev events.LedgerEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventKind, ev.Kind,
		log.FieldEntryID, ev.EntryID,
		log.FieldRevision, ev.Revision)

	switch ev.Kind {
	case events.EntryRecorded:
		e, err := w.ledger.Entry(ctx, ev.EntryID)
		if errors.Is(err, storage.ErrNotFound) {
			w.logger.InfoContext(ctx, "Entry gone before it was mirrored", log.FieldEntryID, ev.EntryID)
			return w.writeSummary(ctx)
		}
		if err != nil {
			return err
		}
		if err := w.sink.AppendEntry(ctx, e); err != nil {
			return fmt.Errorf("mirror entry: %w", err)
		}
		return w.writeSummary(ctx)

	case events.EntryDeleted:
		if err := w.sink.DeleteEntry(ctx, ev.EntryID); err != nil {
			return fmt.Errorf("remove mirrored entry: %w", err)
		}
		return w.writeSummary(ctx)

	case events.AllocationsRecomputed, events.ConfigurationUpdated:
		return w.fullSync(ctx)

	case events.ReportSaved:
		return nil

	default:
		w.logger.WarnContext(ctx, "Ignoring unknown ledger event", log.FieldEventKind, ev.Kind)
		return nil
	}
}

// FullSync rewrites both sheets from the store. It is the backup for lost
// events.
func (w *SyncWorker) FullSync(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fullSync(ctx)
}

func (w *SyncWorker) fullSync(ctx context.Context) error {
	entries, err := w.ledger.Entries(ctx)
	if err != nil {
		return err
	}
	if err := w.sink.ReplaceLedger(ctx, entries); err != nil {
		return fmt.Errorf("replace ledger sheet: %w", err)
	}
	if err := w.writeSummary(ctx); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Full sync completed", "entries", len(entries))
	return nil
}

func (w *SyncWorker) writeSummary(ctx context.Context) error {
	stats, err := w.ledger.Statistics(ctx)
	if err != nil {
		return err
	}
	cfg, err := w.ledger.Configuration(ctx)
	if err != nil {
		return err
	}
	if err := w.sink.WriteSummary(ctx, stats, cfg, w.now()); err != nil {
		return fmt.Errorf("write summary sheet: %w", err)
	}
	return nil
}

// Run performs a startup sync, then consumes events while resyncing every
// interval, until ctx is done.
func (w *SyncWorker) Run(ctx context.Context, consumer events.Consumer, interval time.Duration) error {
	if err := w.FullSync(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sync failed", "error", err)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.FullSync(ctx); err != nil {
					w.logger.ErrorContext(ctx, "Periodic sync failed", "error", err)
				}
			}
		}
	}()

	if consumer == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return consumer.Consume(ctx, w.HandleEvent)
}
