package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"treasury/internal/core"
	"treasury/internal/log"

	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour of a Repository.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Repository is the SQL store shared by the sqlite and postgres backends.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

var (
	_ Store             = (*Repository)(nil)
	_ AtomicEntryWriter = (*Repository)(nil)
)

// NewSQLiteRepository opens (and migrates) the database file at dbPath.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := RunMigrations(DialectSQLite, dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; sqlite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{db: db, dialect: DialectSQLite}, nil
}

// NewPostgresRepository connects to databaseURL through pgx and migrates it.
func NewPostgresRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if err := RunMigrations(DialectPostgres, databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := openDB(DialectPostgres, databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{db: db, dialect: DialectPostgres}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (r *Repository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Repository) bumpRevision(ctx context.Context, q execer) (int64, error) {
	var rev int64
	err := q.QueryRowContext(ctx, `UPDATE ledger_meta SET revision = revision + 1 WHERE id = 1 RETURNING revision`).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	return rev, nil
}

// withTx runs fn in a transaction, rolling back on error.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const insertEntry = `INSERT INTO entries
	(id, seq, entry_date, description, amount_cents, direction, category, allocations, invoice_ref, internal_transfer, cash_count, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (r *Repository) insertEntry(ctx context.Context, tx *sql.Tx, e core.Entry) (core.Entry, error) {
	seq, err := r.bumpRevision(ctx, tx)
	if err != nil {
		return core.Entry{}, err
	}
	e.Seq = seq

	alloc, err := json.Marshal(e.FundAllocations)
	if err != nil {
		return core.Entry{}, fmt.Errorf("encode allocations: %w", err)
	}
	var cash sql.NullString
	if e.CashCount != nil {
		b, err := json.Marshal(e.CashCount)
		if err != nil {
			return core.Entry{}, fmt.Errorf("encode cash count: %w", err)
		}
		cash = sql.NullString{String: string(b), Valid: true}
	}

	_, err = tx.ExecContext(ctx, r.rebind(insertEntry),
		e.ID, e.Seq, e.Date.String(), e.Description, e.Amount.Cents,
		string(e.Direction), string(e.Category), string(alloc), e.InvoiceRef,
		e.InternalTransfer, cash, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return core.Entry{}, fmt.Errorf("insert entry %s: %w", e.ID, err)
	}
	return e, nil
}

func (r *Repository) AppendEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	out, err := r.AppendEntries(ctx, []core.Entry{e})
	if err != nil {
		return core.Entry{}, err
	}
	return out[0], nil
}

// AppendEntries writes every entry in one transaction.
func (r *Repository) AppendEntries(ctx context.Context, entries []core.Entry) ([]core.Entry, error) {
	out := make([]core.Entry, 0, len(entries))
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			stored, err := r.insertEntry(ctx, tx, e)
			if err != nil {
				return err
			}
			out = append(out, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range out {
		slog.DebugContext(ctx, "Entry saved", log.FieldComponent, log.ComponentStorage, log.FieldEntryID, e.ID, "seq", e.Seq, log.FieldAmountCents, e.Amount.Cents)
	}
	return out, nil
}

const selectEntries = `SELECT id, seq, entry_date, description, amount_cents, direction, category,
	allocations, invoice_ref, internal_transfer, cash_count, created_at FROM entries`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (core.Entry, error) {
	var (
		e                    core.Entry
		date, created, alloc string
		direction, category  string
		cash                 sql.NullString
	)
	err := row.Scan(&e.ID, &e.Seq, &date, &e.Description, &e.Amount.Cents, &direction, &category,
		&alloc, &e.InvoiceRef, &e.InternalTransfer, &cash, &created)
	if err != nil {
		return core.Entry{}, err
	}
	e.Direction = core.Direction(direction)
	e.Category = core.Category(category)

	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Entry{}, fmt.Errorf("entry %s: parse date %q: %w", e.ID, date, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return core.Entry{}, fmt.Errorf("entry %s: parse created_at %q: %w", e.ID, created, err)
	}
	if alloc != "" {
		if err := json.Unmarshal([]byte(alloc), &e.FundAllocations); err != nil {
			return core.Entry{}, fmt.Errorf("entry %s: decode allocations: %w", e.ID, err)
		}
	}
	if cash.Valid && cash.String != "" {
		e.CashCount = &core.CashCount{}
		if err := json.Unmarshal([]byte(cash.String), e.CashCount); err != nil {
			return core.Entry{}, fmt.Errorf("entry %s: decode cash count: %w", e.ID, err)
		}
	}
	return e, nil
}

// ListEntries returns all entries in insertion order.
func (r *Repository) ListEntries(ctx context.Context) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectEntries+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func (r *Repository) GetEntry(ctx context.Context, id string) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(selectEntries+` WHERE id = ?`), id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	return e, nil
}

func (r *Repository) DeleteEntry(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM entries WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete entry %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("entry %s: %w", id, ErrNotFound)
		}
		_, err = r.bumpRevision(ctx, tx)
		return err
	})
}

func (r *Repository) UpdateAllocations(ctx context.Context, entries []core.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			alloc, err := json.Marshal(e.FundAllocations)
			if err != nil {
				return fmt.Errorf("encode allocations: %w", err)
			}
			res, err := tx.ExecContext(ctx, r.rebind(`UPDATE entries SET allocations = ? WHERE id = ?`), string(alloc), e.ID)
			if err != nil {
				return fmt.Errorf("update allocations of %s: %w", e.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("entry %s: %w", e.ID, ErrNotFound)
			}
		}
		_, err := r.bumpRevision(ctx, tx)
		return err
	})
}

func (r *Repository) LoadConfiguration(ctx context.Context) (core.Configuration, error) {
	var raw sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT configuration FROM ledger_meta WHERE id = 1`).Scan(&raw); err != nil {
		return core.Configuration{}, fmt.Errorf("load configuration: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return core.DefaultConfiguration(), nil
	}
	var cfg core.Configuration
	if err := json.Unmarshal([]byte(raw.String), &cfg); err != nil {
		return core.Configuration{}, fmt.Errorf("decode configuration: %w", err)
	}
	return cfg, nil
}

func (r *Repository) SaveConfiguration(ctx context.Context, cfg core.Configuration) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	_, err = r.db.ExecContext(ctx, r.rebind(`UPDATE ledger_meta SET configuration = ?, revision = revision + 1 WHERE id = 1`), string(b))
	if err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	return nil
}

func (r *Repository) EmergencyBalance(ctx context.Context) (core.Money, error) {
	var cents int64
	if err := r.db.QueryRowContext(ctx, `SELECT emergency_cents FROM ledger_meta WHERE id = 1`).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("read emergency balance: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func (r *Repository) IncrementEmergencyBalance(ctx context.Context, delta core.Money) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		r.rebind(`UPDATE ledger_meta SET emergency_cents = emergency_cents + ?, revision = revision + 1 WHERE id = 1 RETURNING emergency_cents`),
		delta.Cents).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("increment emergency balance: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func (r *Repository) SaveReport(ctx context.Context, rep core.Report) error {
	stats, err := json.Marshal(rep.Statistics)
	if err != nil {
		return fmt.Errorf("encode report statistics: %w", err)
	}
	cfg, err := json.Marshal(rep.Config)
	if err != nil {
		return fmt.Errorf("encode report configuration: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		r.rebind(`INSERT INTO reports (id, generated_at, generated_by, statistics, configuration) VALUES (?, ?, ?, ?, ?)`),
		rep.ID, rep.GeneratedAt.UTC().Format(time.RFC3339Nano), rep.GeneratedBy, string(stats), string(cfg))
	if err != nil {
		return fmt.Errorf("save report %s: %w", rep.ID, err)
	}
	return nil
}

func (r *Repository) ListReports(ctx context.Context) ([]core.Report, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, generated_at, generated_by, statistics, configuration FROM reports ORDER BY generated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []core.Report
	for rows.Next() {
		var (
			rep                       core.Report
			generated, stats, cfgJSON string
		)
		if err := rows.Scan(&rep.ID, &generated, &rep.GeneratedBy, &stats, &cfgJSON); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if rep.GeneratedAt, err = time.Parse(time.RFC3339Nano, generated); err != nil {
			return nil, fmt.Errorf("report %s: parse generated_at: %w", rep.ID, err)
		}
		if err := json.Unmarshal([]byte(stats), &rep.Statistics); err != nil {
			return nil, fmt.Errorf("report %s: decode statistics: %w", rep.ID, err)
		}
		if err := json.Unmarshal([]byte(cfgJSON), &rep.Config); err != nil {
			return nil, fmt.Errorf("report %s: decode configuration: %w", rep.ID, err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

func (r *Repository) Revision(ctx context.Context) (int64, error) {
	var rev int64
	if err := r.db.QueryRowContext(ctx, `SELECT revision FROM ledger_meta WHERE id = 1`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return rev, nil
}
