// Package memory is an in-process spreadsheet mirror used when no
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"treasury/internal/core"
	ports "treasury/internal/sheets"
)

type Sink struct {
	mu      sync.Mutex
	ledger  [][]any
	summary [][]any
}

var _ ports.LedgerSink = (*Sink)(nil)

func New() *Sink {
	return &Sink{ledger: [][]any{ports.LedgerHeader}}
}

func (s *Sink) AppendEntry(_ context.Context, e core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ports.FindRow(s.ledger, e.ID) >= 0 {
		return nil
	}
	s.ledger = append(s.ledger, ports.EntryRow(e))
	return nil
}

func (s *Sink) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := ports.FindRow(s.ledger, id); i > 0 {
		s.ledger = append(s.ledger[:i], s.ledger[i+1:]...)
	}
	return nil
}

func (s *Sink) ReplaceLedger(_ context.Context, entries []core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = ports.LedgerRows(entries)
	return nil
}

func (s *Sink) WriteSummary(_ context.Context, stats core.Statistics, cfg core.Configuration, updated time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = ports.SummaryRows(stats, cfg, updated)
	return nil
}

// LedgerRows returns a copy of the ledger sheet, header included.
func (s *Sink) LedgerRows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.ledger...)
}

// SummaryRows returns a copy of the summary sheet.
func (s *Sink) SummaryRows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.summary...)
}
