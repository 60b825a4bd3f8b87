package memory

import (
	"context"
	"testing"
	"time"

	"treasury/internal/core"
)

func TestSink(t *testing.T) {
	ctx := context.Background()
	s := New()

	e := core.Entry{ID: "e-1", Date: core.NewDate(2024, 1, 7), Description: "Tithe", Amount: core.Euros(10)}
	if err := s.AppendEntry(ctx, e); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}
	// Redelivered events must not duplicate rows.
	if err := s.AppendEntry(ctx, e); err != nil {
		t.Fatalf("AppendEntry again: %v", err)
	}
	if got := len(s.LedgerRows()); got != 2 {
		t.Fatalf("expected header plus one row, got %d rows", got)
	}

	if err := s.DeleteEntry(ctx, "e-1"); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if err := s.DeleteEntry(ctx, "missing"); err != nil {
		t.Fatalf("DeleteEntry of missing row: %v", err)
	}
	if got := len(s.LedgerRows()); got != 1 {
		t.Fatalf("expected only the header, got %d rows", got)
	}

	if err := s.ReplaceLedger(ctx, []core.Entry{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("ReplaceLedger: %v", err)
	}
	if got := len(s.LedgerRows()); got != 3 {
		t.Fatalf("expected 3 rows after replace, got %d", got)
	}

	if err := s.WriteSummary(ctx, core.NewStatistics(), core.DefaultConfiguration(), time.Now()); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	if len(s.SummaryRows()) == 0 {
		t.Fatal("summary should not be empty")
	}
}
