// Package services orchestrates the ledger engine over the store, the
// statistics cache and the event publisher.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"treasury/internal/cache"
	"treasury/internal/core"
	"treasury/internal/events"
	"treasury/internal/ledger"
	"treasury/internal/log"
	"treasury/internal/storage"
)

// Snapshot is a consistent read of everything the engine needs.
type Snapshot struct {
	Entries       []core.Entry
	Config        core.Configuration
	EmergencySeed core.Money
	Revision      int64
}

// TreasuryService persists entries, derives balances and publishes ledger
// events. Publishing is best effort: the store is the source of truth.
type TreasuryService struct {
	store     storage.Store
	publisher events.Publisher
	stats     cache.Cache[core.Statistics]
	factory   *ledger.Factory
	logger    *log.Logger
	now       func() time.Time
	newID     func() string
}

func NewTreasuryService(store storage.Store, publisher events.Publisher, stats cache.Cache[core.Statistics], logger *log.Logger) *TreasuryService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if stats == nil {
		stats = cache.Nop[core.Statistics]{}
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &TreasuryService{
		store:     store,
		publisher: publisher,
		stats:     stats,
		factory:   ledger.NewFactory(),
		logger:    logger.WithComponent(log.ComponentLedger),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Snapshot loads entries, configuration and the emergency seed concurrently.
// The revision is read first, so the data is never older than it.
func (s *TreasuryService) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	rev, err := s.store.Revision(ctx)
	if err != nil {
		return snap, fmt.Errorf("read revision: %w", err)
	}
	snap.Revision = rev

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entries, err := s.store.ListEntries(gctx)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		snap.Entries = entries
		return nil
	})
	g.Go(func() error {
		cfg, err := s.store.LoadConfiguration(gctx)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		snap.Config = cfg
		return nil
	})
	g.Go(func() error {
		seed, err := s.store.EmergencyBalance(gctx)
		if err != nil {
			return fmt.Errorf("load emergency balance: %w", err)
		}
		snap.EmergencySeed = seed
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Statistics derives the current balances, reusing the cached snapshot of
// the current revision when there is one.
func (s *TreasuryService) Statistics(ctx context.Context) (core.Statistics, error) {
	stats, _, err := s.state(ctx)
	return stats, err
}

func (s *TreasuryService) state(ctx context.Context) (core.Statistics, Snapshot, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return core.Statistics{}, Snapshot{}, err
	}

	key := cache.StatisticsKey(snap.Revision)
	if stats, ok := s.stats.Get(ctx, key); ok {
		return stats, snap, nil
	}

	stats := ledger.DeriveStatistics(snap.Entries, snap.Config, snap.EmergencySeed)
	s.stats.Set(ctx, key, stats)
	return stats, snap, nil
}

// Entries returns the ledger in replay order.
func (s *TreasuryService) Entries(ctx context.Context) ([]core.Entry, error) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return ledger.Chronological(entries), nil
}

// Entry returns one entry by ID.
func (s *TreasuryService) Entry(ctx context.Context, id string) (core.Entry, error) {
	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	return e, nil
}

func (s *TreasuryService) Configuration(ctx context.Context) (core.Configuration, error) {
	cfg, err := s.store.LoadConfiguration(ctx)
	if err != nil {
		return core.Configuration{}, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// UpdateConfiguration validates and saves cfg. The returned flag reports
// whether the percentages sum to 100; an unhealthy split is still saved.
func (s *TreasuryService) UpdateConfiguration(ctx context.Context, cfg core.Configuration) (bool, error) {
	if err := cfg.Validate(); err != nil {
		return false, err
	}
	if err := s.store.SaveConfiguration(ctx, cfg); err != nil {
		return false, fmt.Errorf("save configuration: %w", err)
	}

	healthy := cfg.Healthy()
	if !healthy {
		s.logger.WarnContext(ctx, "Fund percentages do not sum to 100", "total", cfg.PercentageTotal())
	}
	s.publish(ctx, events.ConfigurationUpdated, "")
	return healthy, nil
}

// RecordEntry creates and persists the entries for req: one entry, or two for
// a rent payment. TITHE and OFFERING income then feed the emergency balance.
//
// When a later step fails after something was persisted, the returned error
// is a *core.PartialWriteError and the written entries are returned with it.
func (s *TreasuryService) RecordEntry(ctx context.Context, req ledger.EntryRequest) ([]core.Entry, error) {
	stats, snap, err := s.state(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.factory.CreateEntries(req, snap.Config, stats.Fund(core.FundRentReserve))
	if err != nil {
		return nil, err
	}

	written, err := s.persist(ctx, entries)
	if err != nil {
		return written, err
	}

	for _, e := range written {
		s.logger.InfoContext(ctx, "Entry recorded", log.NewFields().
			WithEntry(e.ID, e.Description, e.Amount.Cents, string(e.Direction), string(e.Category)).
			WithRevision(e.Seq).ToSlice()...)
		s.publish(ctx, events.EntryRecorded, e.ID)
	}

	if delta := ledger.EmergencyContribution(written[0]); delta.IsPositive() {
		if _, err := s.store.IncrementEmergencyBalance(ctx, delta); err != nil {
			s.logger.ErrorContext(ctx, "Emergency balance not incremented",
				log.FieldEntryID, written[0].ID,
				log.FieldErrorType, log.ErrorTypePartialWrite,
				"error", err)
			return written, &core.PartialWriteError{
				Written: written,
				Step:    core.StepEmergencyIncrement,
				Err:     err,
			}
		}
	}
	return written, nil
}

// persist writes entries all-or-nothing when the store supports it, otherwise
// one by one.
func (s *TreasuryService) persist(ctx context.Context, entries []core.Entry) ([]core.Entry, error) {
	if aw, ok := s.store.(storage.AtomicEntryWriter); ok {
		written, err := aw.AppendEntries(ctx, entries)
		if err != nil {
			return nil, fmt.Errorf("append entries: %w", err)
		}
		return written, nil
	}

	written := make([]core.Entry, 0, len(entries))
	for i, e := range entries {
		w, err := s.store.AppendEntry(ctx, e)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("append entry: %w", err)
			}
			s.logger.ErrorContext(ctx, "Entry pair written partially",
				log.FieldEntryID, e.ID,
				log.FieldErrorType, log.ErrorTypePartialWrite,
				"error", err)
			return written, &core.PartialWriteError{
				Written: written,
				Pending: entries[i:],
				Step:    core.StepEntries,
				Err:     err,
			}
		}
		written = append(written, w)
	}
	return written, nil
}

func (s *TreasuryService) DeleteEntry(ctx context.Context, id string) error {
	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Entry deleted", log.FieldEntryID, id)
	s.publish(ctx, events.EntryDeleted, id)
	return nil
}

// RecomputeAllocations rewrites stale income allocations from the whole
// history. A degenerate configuration is reported through the result.
func (s *TreasuryService) RecomputeAllocations(ctx context.Context) (ledger.RecomputeResult, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return ledger.RecomputeResult{}, err
	}

	res := ledger.RecomputeAllocations(snap.Entries, snap.Config)
	if len(res.Changed) > 0 {
		if err := s.store.UpdateAllocations(ctx, res.Changed); err != nil {
			return ledger.RecomputeResult{}, fmt.Errorf("update allocations: %w", err)
		}
		s.publish(ctx, events.AllocationsRecomputed, "")
	}

	logger := s.logger.With(log.FieldOperation, log.OpRecompute)
	if res.Degenerate {
		logger.WarnContext(ctx, "Proportional fund percentages sum to zero, remainders routed to GENERAL")
	}
	logger.InfoContext(ctx, "Allocations recomputed", "entries", len(res.Entries), "changed", len(res.Changed))
	return res, nil
}

// TopUpRentReserve moves what GENERAL can spare into the rent reserve, up to
// the target.
func (s *TreasuryService) TopUpRentReserve(ctx context.Context) ([]core.Entry, error) {
	stats, snap, err := s.state(ctx)
	if err != nil {
		return nil, err
	}

	amount, err := ledger.PlanRentTopUp(stats, snap.Config)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Topping up rent reserve", log.FieldOperation, log.OpTopUp, "amount", amount.String())
	return s.RecordEntry(ctx, ledger.TopUpRequest(amount))
}

func (s *TreasuryService) FindDuplicates(ctx context.Context) ([]ledger.DuplicateGroup, error) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return ledger.FindDuplicates(entries), nil
}

// RemoveDuplicates deletes every duplicate except the earliest of each group
// and returns the removed IDs. On failure the IDs removed so far are returned.
func (s *TreasuryService) RemoveDuplicates(ctx context.Context) ([]string, error) {
	groups, err := s.FindDuplicates(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, id := range ledger.DuplicateIDs(groups) {
		if err := s.store.DeleteEntry(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return removed, fmt.Errorf("delete duplicate %s: %w", id, err)
		}
		removed = append(removed, id)
		s.publish(ctx, events.EntryDeleted, id)
	}

	s.logger.InfoContext(ctx, "Duplicates removed", "groups", len(groups), "removed", len(removed))
	return removed, nil
}

// SaveReport stores a snapshot of the current statistics and configuration.
func (s *TreasuryService) SaveReport(ctx context.Context, generatedBy string) (core.Report, error) {
	stats, snap, err := s.state(ctx)
	if err != nil {
		return core.Report{}, err
	}

	report := core.Report{
		ID:          s.newID(),
		GeneratedAt: s.now().UTC(),
		GeneratedBy: generatedBy,
		Statistics:  stats,
		Config:      snap.Config.Clone(),
	}
	if err := s.store.SaveReport(ctx, report); err != nil {
		return core.Report{}, fmt.Errorf("save report: %w", err)
	}

	s.logger.InfoContext(ctx, "Report saved", log.FieldReportID, report.ID, "generated_by", generatedBy)
	ev := s.event(ctx, events.ReportSaved).ForReport(report.ID)
	s.send(ctx, ev)
	return report, nil
}

// Reports returns the saved reports, newest first.
func (s *TreasuryService) Reports(ctx context.Context) ([]core.Report, error) {
	reports, err := s.store.ListReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func (s *TreasuryService) event(ctx context.Context, kind events.Kind) events.LedgerEvent {
	rev, err := s.store.Revision(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Revision unavailable for event", log.FieldEventKind, kind, "error", err)
	}
	return events.New(kind, rev)
}

func (s *TreasuryService) publish(ctx context.Context, kind events.Kind, entryID string) {
	s.send(ctx, s.event(ctx, kind).ForEntry(entryID))
}

func (s *TreasuryService) send(ctx context.Context, ev events.LedgerEvent) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldOperation, log.OpPublish,
			log.FieldEventKind, ev.Kind,
			log.FieldEntryID, ev.EntryID,
			"error", err)
	}
}

// Close closes both the store and the publisher.
func (s *TreasuryService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
