/*
store.go - Persistence interfaces for the settlement engine

PURPOSE:
  Defines the boundary between the engine and the database. The engine only
  ever sees these interfaces; implementations live in store/sqlite
  (production) and settlement/store (in-memory, for tests and dev).

KEY INTERFACES:
  SaleStore:   Sales the aggregators project over
  EntryStore:  Expense/income entries
  LedgerStore: Day records + the recalculation watermark

OWNERSHIP CONTRACT:
  PutDay is called by exactly two writers: the Ledger (same-day inputs,
  opening balance) and the Recalculator (derived balances). Nothing else
  writes day records - see spec'd single-writer semantics in cascade.go.

WATERMARK:
  The recalculation watermark records the last day a cascade successfully
  wrote, so an interrupted run can resume there instead of restarting.
  It is cleared when a cascade completes.

SEE ALSO:
  - store/memory.go: In-memory implementation
  - ../store/sqlite/sqlite.go: SQLite implementation
*/
package settlement

import "context"

// =============================================================================
// SALE STORE
// =============================================================================

// SaleStore persists sales. The settlement engine only reads; writes come
// from the CRUD layer (which must route changes through the worker).
type SaleStore interface {
	PutSale(ctx context.Context, s Sale) error
	GetSale(ctx context.Context, id string) (Sale, error)
	DeleteSale(ctx context.Context, id string) error

	// SalesOn returns all sales dated exactly 'date', in insertion order.
	SalesOn(ctx context.Context, date Date) ([]Sale, error)

	// LatestSaleDate returns the most recent sale date, or ok=false when
	// there are no sales.
	LatestSaleDate(ctx context.Context) (Date, bool, error)
}

// =============================================================================
// ENTRY STORE
// =============================================================================

// EntryStore persists expense/income entries.
type EntryStore interface {
	PutEntry(ctx context.Context, e Entry) error
	GetEntry(ctx context.Context, id string) (Entry, error)
	DeleteEntry(ctx context.Context, id string) error

	EntriesOn(ctx context.Context, date Date) ([]Entry, error)
	LatestEntryDate(ctx context.Context) (Date, bool, error)
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// LedgerStore persists day records, keyed by date.
type LedgerStore interface {
	// GetDay returns the record for a date, or ErrRecordNotFound.
	GetDay(ctx context.Context, date Date) (DayRecord, error)

	// PutDay inserts or replaces the record for rec.Date.
	PutDay(ctx context.Context, rec DayRecord) error

	// PreviousDay returns the latest record strictly before 'date', or
	// ErrNoPriorRecord when none exists.
	PreviousDay(ctx context.Context, date Date) (DayRecord, error)

	// EarliestDay / LatestDay return the boundary records, ok=false when
	// the ledger is empty.
	EarliestDay(ctx context.Context) (DayRecord, bool, error)
	LatestDay(ctx context.Context) (DayRecord, bool, error)

	// DaysInRange returns records in [from, to] ascending by date.
	DaysInRange(ctx context.Context, from, to Date) ([]DayRecord, error)

	// Watermark management for resumable cascades.
	SetWatermark(ctx context.Context, date Date) error
	Watermark(ctx context.Context) (Date, bool, error)
	ClearWatermark(ctx context.Context) error
}
