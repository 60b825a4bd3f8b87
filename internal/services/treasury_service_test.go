package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury/internal/cache"
	"treasury/internal/core"
	"treasury/internal/events"
	"treasury/internal/ledger"
	"treasury/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

// flakyStore fails the nth AppendEntry call and, optionally, every emergency
// increment.
type flakyStore struct {
	*memory.Store
	failAppendAt   int
	appends        int
	failIncrements bool
}

var errStoreDown = errors.New("store unavailable")

func (s *flakyStore) AppendEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	s.appends++
	if s.appends == s.failAppendAt {
		return core.Entry{}, errStoreDown
	}
	return s.Store.AppendEntry(ctx, e)
}

func (s *flakyStore) IncrementEmergencyBalance(ctx context.Context, delta core.Money) (core.Money, error) {
	if s.failIncrements {
		return core.Money{}, errStoreDown
	}
	return s.Store.IncrementEmergencyBalance(ctx, delta)
}

func newTestService(t *testing.T) (*TreasuryService, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.NewStore()
	pub := &recordingPublisher{}
	svc := NewTreasuryService(store, pub, cache.NewLRUCache[core.Statistics](8, time.Minute), nil)
	svc.factory = testFactory()
	return svc, store, pub
}

func testFactory() *ledger.Factory {
	n := 0
	return &ledger.Factory{
		NewID: func() string {
			n++
			return fmt.Sprintf("entry-%d", n)
		},
		Now: func() time.Time { return time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC) },
	}
}

func tithe(day int, euros int64) ledger.EntryRequest {
	return ledger.EntryRequest{
		Date:        core.NewDate(2024, 5, day),
		Description: "Sunday tithe",
		Amount:      core.Euros(euros),
		Direction:   core.Income,
		Category:    core.Tithe,
	}
}

func rent(day int, euros int64) ledger.EntryRequest {
	return ledger.EntryRequest{
		Date:        core.NewDate(2024, 5, day),
		Description: "May rent",
		Amount:      core.Euros(euros),
		Direction:   core.Expense,
		Category:    core.Rent,
	}
}

func TestRecordEntry_Income(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(t)

	written, err := svc.RecordEntry(ctx, tithe(5, 1000))
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, "entry-1", written[0].ID)
	assert.NotZero(t, written[0].Seq)

	seed, err := store.EmergencyBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Euros(100), seed)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Euros(1000), stats.TotalIncome)
	assert.Equal(t, core.Euros(1000), stats.Fund(core.FundRentReserve))
	assert.Equal(t, core.Euros(100), stats.Fund(core.FundEmergency))
	assert.Equal(t, core.Money{}, stats.Fund(core.FundGeneral))

	assert.Equal(t, []events.Kind{events.EntryRecorded}, pub.kinds())
}

func TestRecordEntry_RentPaymentWritesPair(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.RecordEntry(ctx, tithe(1, 2000))
	require.NoError(t, err)

	written, err := svc.RecordEntry(ctx, rent(3, 450))
	require.NoError(t, err)
	require.Len(t, written, 2)
	assert.Equal(t, core.Rent, written[0].Category)
	assert.True(t, written[1].IsReplenishment())
	assert.True(t, written[1].InternalTransfer)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Euros(900), stats.Fund(core.FundRentReserve))
	assert.Equal(t, core.Euros(650), stats.Fund(core.FundGeneral))
	assert.Equal(t, core.Euros(450), stats.TotalExpenses)
}

func TestRecordEntry_PartialEntryWrite(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.NewStore(), failAppendAt: 2}
	svc := NewTreasuryService(store, nil, nil, nil)
	svc.factory = testFactory()

	written, err := svc.RecordEntry(ctx, rent(3, 450))
	require.Error(t, err)

	var pw *core.PartialWriteError
	require.ErrorAs(t, err, &pw)
	assert.Equal(t, core.StepEntries, pw.Step)
	assert.ErrorIs(t, err, errStoreDown)
	require.Len(t, pw.Written, 1)
	require.Len(t, pw.Pending, 1)
	assert.Equal(t, written, pw.Written)
	assert.True(t, pw.Pending[0].IsReplenishment())
}

func TestRecordEntry_FirstWriteFailureIsNotPartial(t *testing.T) {
	store := &flakyStore{Store: memory.NewStore(), failAppendAt: 1}
	svc := NewTreasuryService(store, nil, nil, nil)

	written, err := svc.RecordEntry(context.Background(), rent(3, 450))
	require.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, written)

	var pw *core.PartialWriteError
	assert.False(t, errors.As(err, &pw))
}

func TestRecordEntry_EmergencyIncrementFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.NewStore(), failIncrements: true}
	svc := NewTreasuryService(store, nil, nil, nil)

	written, err := svc.RecordEntry(ctx, tithe(5, 300))
	var pw *core.PartialWriteError
	require.ErrorAs(t, err, &pw)
	assert.Equal(t, core.StepEmergencyIncrement, pw.Step)
	require.Len(t, written, 1)

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecordEntry_ValidationError(t *testing.T) {
	svc, store, pub := newTestService(t)

	req := tithe(5, 100)
	req.Description = "   "
	_, err := svc.RecordEntry(context.Background(), req)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	assert.ErrorIs(t, err, core.ErrEmptyDescription)

	entries, _ := store.ListEntries(context.Background())
	assert.Empty(t, entries)
	assert.Empty(t, pub.kinds())
}

func TestRecordEntry_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, _, pub := newTestService(t)
	pub.err = errors.New("broker down")

	written, err := svc.RecordEntry(context.Background(), tithe(5, 100))
	require.NoError(t, err)
	assert.Len(t, written, 1)
}

func TestStatistics_CachedPerRevision(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	lru := cache.NewLRUCache[core.Statistics](8, time.Minute)
	svc := NewTreasuryService(store, nil, lru, nil)

	_, err := svc.Statistics(ctx)
	require.NoError(t, err)
	_, err = svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, lru.Size())

	_, err = svc.RecordEntry(ctx, tithe(5, 100))
	require.NoError(t, err)
	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Euros(100), stats.TotalIncome)
	assert.Equal(t, 2, lru.Size())
}

func TestUpdateConfiguration(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService(t)

	cfg := core.DefaultConfiguration()
	cfg.FundPercentages[core.FundGeneral] = 50
	healthy, err := svc.UpdateConfiguration(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, healthy)

	saved, err := svc.Configuration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, saved.Percentage(core.FundGeneral))
	assert.Equal(t, []events.Kind{events.ConfigurationUpdated}, pub.kinds())

	cfg.FundPercentages[core.FundGeneral] = 130
	_, err = svc.UpdateConfiguration(ctx, cfg)
	assert.True(t, core.IsValidation(err))
}

func TestTopUpRentReserve(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.RecordEntry(ctx, tithe(1, 2000))
	require.NoError(t, err)
	_, err = svc.RecordEntry(ctx, rent(3, 450))
	require.NoError(t, err)

	written, err := svc.TopUpRentReserve(ctx)
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, core.RentAllocation, written[0].Category)
	assert.Equal(t, core.Euros(450), written[0].Amount)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Euros(1350), stats.Fund(core.FundRentReserve))
	assert.Equal(t, core.Euros(200), stats.Fund(core.FundGeneral))

	_, err = svc.TopUpRentReserve(ctx)
	assert.ErrorIs(t, err, ledger.ErrRentTargetReached)
}

func TestRecomputeAllocations(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(t)

	stale := core.Entry{
		ID:              "old-income",
		Date:            core.NewDate(2024, 4, 1),
		Description:     "Offering",
		Amount:          core.Euros(2000),
		Direction:       core.Income,
		Category:        core.Offering,
		FundAllocations: core.Allocations{core.FundGeneral: core.Euros(2000)},
	}
	_, err := store.AppendEntry(ctx, stale)
	require.NoError(t, err)

	res, err := svc.RecomputeAllocations(ctx)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	require.Len(t, res.Changed, 1)

	got, err := store.GetEntry(ctx, "old-income")
	require.NoError(t, err)
	assert.Equal(t, core.Euros(1350), got.FundAllocations[core.FundRentReserve])
	assert.Equal(t, core.Euros(2000), got.FundAllocations.Total())
	assert.Contains(t, pub.kinds(), events.AllocationsRecomputed)

	again, err := svc.RecomputeAllocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Changed)
}

func TestRemoveDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	first, err := svc.RecordEntry(ctx, tithe(5, 100))
	require.NoError(t, err)
	_, err = svc.RecordEntry(ctx, tithe(6, 100))
	require.NoError(t, err)
	_, err = svc.RecordEntry(ctx, tithe(6, 250))
	require.NoError(t, err)

	groups, err := svc.FindDuplicates(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, first[0].ID, groups[0].Keep.ID)

	removed, err := svc.RemoveDuplicates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"entry-2"}, removed)

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDeleteEntry(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService(t)

	written, err := svc.RecordEntry(ctx, tithe(5, 100))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteEntry(ctx, written[0].ID))
	assert.Equal(t, []events.Kind{events.EntryRecorded, events.EntryDeleted}, pub.kinds())

	assert.Error(t, svc.DeleteEntry(ctx, "missing"))
}

func TestSaveReport(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService(t)
	svc.newID = func() string { return "report-1" }
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC) }

	_, err := svc.RecordEntry(ctx, tithe(5, 100))
	require.NoError(t, err)

	report, err := svc.SaveReport(ctx, "treasurer")
	require.NoError(t, err)
	assert.Equal(t, "report-1", report.ID)
	assert.Equal(t, core.Euros(100), report.Statistics.TotalIncome)
	assert.Equal(t, "Treasury", report.Config.OrganizationName)

	reports, err := svc.Reports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "treasurer", reports[0].GeneratedBy)
	assert.Equal(t, events.ReportSaved, pub.kinds()[len(pub.kinds())-1])
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.RecordEntry(ctx, tithe(5, 100))
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Entries, 1)
	assert.Equal(t, core.Euros(10), snap.EmergencySeed)
	assert.Equal(t, core.DefaultConfiguration().RentTarget, snap.Config.RentTarget)
	assert.Equal(t, int64(2), snap.Revision)
}
