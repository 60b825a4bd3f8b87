// Package memory is an in-process ledger store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"treasury/internal/core"
	"treasury/internal/storage"
)

// Store keeps everything in memory behind a single lock. It has no
// transactions: multi-entry writes are appended one at a time.
type Store struct {
	mu        sync.RWMutex
	entries   []core.Entry
	config    *core.Configuration
	emergency core.Money
	reports   []core.Report
	revision  int64
}

var _ storage.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{}
}

func cloneEntry(e core.Entry) core.Entry {
	e.FundAllocations = e.FundAllocations.Clone()
	if e.CashCount != nil {
		cc := core.CashCount{Counts: make(map[int64]int, len(e.CashCount.Counts))}
		for k, v := range e.CashCount.Counts {
			cc.Counts[k] = v
		}
		e.CashCount = &cc
	}
	return e
}

func (s *Store) AppendEntry(_ context.Context, e core.Entry) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entries {
		if existing.ID == e.ID {
			return core.Entry{}, fmt.Errorf("entry %s already exists", e.ID)
		}
	}
	s.revision++
	e.Seq = s.revision
	s.entries = append(s.entries, cloneEntry(e))
	return cloneEntry(e), nil
}

func (s *Store) ListEntries(_ context.Context) ([]core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = cloneEntry(e)
	}
	return out, nil
}

func (s *Store) GetEntry(_ context.Context, id string) (core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return cloneEntry(e), nil
		}
	}
	return core.Entry{}, fmt.Errorf("entry %s: %w", id, storage.ErrNotFound)
}

func (s *Store) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			s.revision++
			return nil
		}
	}
	return fmt.Errorf("entry %s: %w", id, storage.ErrNotFound)
}

func (s *Store) UpdateAllocations(_ context.Context, updates []core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := make(map[string]int, len(s.entries))
	for i, e := range s.entries {
		index[e.ID] = i
	}
	for _, u := range updates {
		if _, ok := index[u.ID]; !ok {
			return fmt.Errorf("entry %s: %w", u.ID, storage.ErrNotFound)
		}
	}
	for _, u := range updates {
		s.entries[index[u.ID]].FundAllocations = u.FundAllocations.Clone()
	}
	if len(updates) > 0 {
		s.revision++
	}
	return nil
}

func (s *Store) LoadConfiguration(_ context.Context) (core.Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return core.DefaultConfiguration(), nil
	}
	return s.config.Clone(), nil
}

func (s *Store) SaveConfiguration(_ context.Context, cfg core.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cfg.Clone()
	s.config = &c
	s.revision++
	return nil
}

func (s *Store) EmergencyBalance(_ context.Context) (core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emergency, nil
}

func (s *Store) IncrementEmergencyBalance(_ context.Context, delta core.Money) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emergency = s.emergency.Add(delta)
	s.revision++
	return s.emergency, nil
}

func (s *Store) SaveReport(_ context.Context, r core.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

func (s *Store) ListReports(_ context.Context) ([]core.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Report, len(s.reports))
	copy(out, s.reports)
	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	return out, nil
}

func (s *Store) Revision(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision, nil
}

func (s *Store) Close() error { return nil }
