package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"treasury/internal/core"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "treasury.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleEntry(id string, day int) core.Entry {
	return core.Entry{
		ID:          id,
		Date:        core.NewDate(2024, 3, day),
		Description: "Sunday offering",
		Amount:      core.Cents(12345),
		Direction:   core.Income,
		Category:    core.Offering,
		FundAllocations: core.Allocations{
			core.FundRentReserve: core.Cents(4938),
			core.FundGeneral:     core.Cents(7407),
		},
		CashCount: &core.CashCount{Counts: map[int64]int{5000: 2, 2000: 1, 345: 0}},
		CreatedAt: time.Date(2024, 3, day, 10, 0, 0, 0, time.UTC),
	}
}

func TestRepositoryEntriesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	stored, err := repo.AppendEntries(ctx, []core.Entry{sampleEntry("a", 3), sampleEntry("b", 1)})
	if err != nil {
		t.Fatalf("append entries: %v", err)
	}
	if stored[0].Seq >= stored[1].Seq {
		t.Fatalf("expected increasing sequences, got %d and %d", stored[0].Seq, stored[1].Seq)
	}

	got, err := repo.GetEntry(ctx, "a")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	want := stored[0]
	if !got.Date.Equal(want.Date.Time) || got.Amount != want.Amount || got.Seq != want.Seq || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("entry mismatch:\n got %+v\nwant %+v", got, want)
	}
	if !got.FundAllocations.Equal(want.FundAllocations) {
		t.Fatalf("allocations mismatch: %v vs %v", got.FundAllocations, want.FundAllocations)
	}
	if got.CashCount == nil || got.CashCount.Total() != core.Euros(120) {
		t.Fatalf("cash count not restored: %+v", got.CashCount)
	}

	list, err := repo.ListEntries(ctx)
	if err != nil || len(list) != 2 || list[0].ID != "a" {
		t.Fatalf("unexpected list %v (err=%v)", list, err)
	}
}

func TestRepositoryAppendIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if _, err := repo.AppendEntry(ctx, sampleEntry("dup", 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	before, _ := repo.Revision(ctx)

	_, err := repo.AppendEntries(ctx, []core.Entry{sampleEntry("fresh", 2), sampleEntry("dup", 2)})
	if err == nil {
		t.Fatal("expected primary key violation")
	}
	if _, err := repo.GetEntry(ctx, "fresh"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("first entry should have been rolled back, got %v", err)
	}
	after, _ := repo.Revision(ctx)
	if after != before {
		t.Fatalf("revision changed on rollback: %d -> %d", before, after)
	}
}

func TestRepositoryDeleteAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	e, _ := repo.AppendEntry(ctx, sampleEntry("a", 1))

	e.FundAllocations = core.Allocations{core.FundEmergency: e.Amount}
	if err := repo.UpdateAllocations(ctx, []core.Entry{e}); err != nil {
		t.Fatalf("update allocations: %v", err)
	}
	got, _ := repo.GetEntry(ctx, "a")
	if got.FundAllocations[core.FundEmergency] != e.Amount {
		t.Fatalf("allocations not updated: %v", got.FundAllocations)
	}

	if err := repo.DeleteEntry(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteEntry(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryMeta(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	cfg, err := repo.LoadConfiguration(ctx)
	if err != nil || cfg.RentTarget != core.Euros(1350) {
		t.Fatalf("expected default configuration, got %+v (err=%v)", cfg, err)
	}
	cfg = cfg.WithRentAmount(core.Euros(500))
	if err := repo.SaveConfiguration(ctx, cfg); err != nil {
		t.Fatalf("save configuration: %v", err)
	}
	loaded, _ := repo.LoadConfiguration(ctx)
	if loaded.RentTarget != core.Euros(1500) || loaded.FundPercentages[core.FundRentReserve] != 40 {
		t.Fatalf("unexpected configuration %+v", loaded)
	}

	if _, err := repo.IncrementEmergencyBalance(ctx, core.Euros(10)); err != nil {
		t.Fatalf("increment: %v", err)
	}
	bal, _ := repo.IncrementEmergencyBalance(ctx, core.Cents(5))
	if bal != core.Cents(1005) {
		t.Fatalf("expected 10.05, got %s", bal)
	}

	stats := core.NewStatistics()
	stats.TotalIncome = core.Euros(100)
	now := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	_ = repo.SaveReport(ctx, core.Report{ID: "r1", GeneratedAt: now, GeneratedBy: "scheduler", Statistics: stats, Config: cfg})
	_ = repo.SaveReport(ctx, core.Report{ID: "r2", GeneratedAt: now.Add(time.Hour), GeneratedBy: "admin", Statistics: stats, Config: cfg})
	reports, err := repo.ListReports(ctx)
	if err != nil || len(reports) != 2 || reports[0].ID != "r2" {
		t.Fatalf("unexpected reports %+v (err=%v)", reports, err)
	}
	if reports[1].Statistics.TotalIncome != core.Euros(100) {
		t.Fatalf("statistics not restored: %+v", reports[1].Statistics)
	}
}

func TestRebind(t *testing.T) {
	pg := &Repository{dialect: DialectPostgres}
	if got := pg.rebind("UPDATE x SET a = ? WHERE id = ?"); got != "UPDATE x SET a = $1 WHERE id = $2" {
		t.Fatalf("unexpected rebind %q", got)
	}
	lite := &Repository{dialect: DialectSQLite}
	if got := lite.rebind("SELECT ?"); got != "SELECT ?" {
		t.Fatalf("sqlite query should be unchanged, got %q", got)
	}
}
