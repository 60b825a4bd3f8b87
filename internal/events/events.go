// Package events carries ledger change notifications to out-of-process
// consumers such as the spreadsheet mirror worker. Events are thin: they name
// what changed and the store revision, consumers re-read the store.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Kind identifies what changed in the ledger.
type Kind string

const (
	EntryRecorded         Kind = "entry.recorded"
	EntryDeleted          Kind = "entry.deleted"
	AllocationsRecomputed Kind = "allocations.recomputed"
	ConfigurationUpdated  Kind = "configuration.updated"
	ReportSaved           Kind = "report.saved"
)

// LedgerEvent is published after a successful write.
type LedgerEvent struct {
	Kind      Kind      `json:"kind"`
	EntryID   string    `json:"entryId,omitempty"`
	ReportID  string    `json:"reportId,omitempty"`
	Revision  int64     `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

// New stamps an event with the current time.
func New(kind Kind, revision int64) LedgerEvent {
	return LedgerEvent{Kind: kind, Revision: revision, Timestamp: time.Now().UTC()}
}

// ForEntry returns a copy of e that references entry id.
func (e LedgerEvent) ForEntry(id string) LedgerEvent {
	e.EntryID = id
	return e
}

// ForReport returns a copy of e that references report id.
func (e LedgerEvent) ForReport(id string) LedgerEvent {
	e.ReportID = id
	return e
}

// Key is the partition key: events about the same entry stay ordered.
func (e LedgerEvent) Key() string {
	if e.EntryID != "" {
		return e.EntryID
	}
	return string(e.Kind)
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event body.
func FromJSON(data []byte) (LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return LedgerEvent{}, err
	}
	return ev, nil
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev LedgerEvent) error
	Close() error
}

// Handler processes one event. A returned error asks for redelivery.
type Handler func(ctx context.Context, ev LedgerEvent) error

// Consumer feeds events to a handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, LedgerEvent) error { return nil }
func (NopPublisher) Close() error                               { return nil }
