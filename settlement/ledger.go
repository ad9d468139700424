/*
ledger.go - Day-record operations with settlement invariants

PURPOSE:
  Wraps the LedgerStore with the operations the CRUD layer and the cascade
  are allowed to perform. The critical ownership rule: manual operations
  touch only same-day input fields (settled-today, tax-withheld-today,
  notes); running balances are rewritten exclusively by the Recalculator.

OPERATIONS:
  EstablishOpeningBalance: One-time bootstrap. The opening record is ground
    truth - the cascade never rewrites it.
  GetOrCreate: Ensures a day record exists before any write, synthesizing
    gap days by carrying the previous day's balances forward. Fails with
    ErrNoPriorRecord only at the very first date in history.
  ApplySameDayInputs: Records a manual settlement event. Does NOT recompute
    running balances - the caller must run a cascade from that date.
  Read: Plain lookup.

SEE ALSO:
  - cascade.go: Owns the derived fields
  - record.go: CarryForward and the balance equations
*/
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger exposes day-record operations over a LedgerStore.
type Ledger struct {
	store LedgerStore
}

func NewLedger(store LedgerStore) *Ledger {
	return &Ledger{store: store}
}

// =============================================================================
// OPENING BALANCE
// =============================================================================

// EstablishOpeningBalance creates the first ledger record. Its balances are
// taken as ground truth. Fails with ErrOpeningConflict if a record already
// exists on or before the date - an opening can never sit below existing
// history.
func (l *Ledger) EstablishOpeningBalance(ctx context.Context, date Date, processorAvailable, processorPending, platformPending decimal.Decimal) error {
	earliest, ok, err := l.store.EarliestDay(ctx)
	if err != nil {
		return err
	}
	if ok && earliest.Date.BeforeOrEqual(date) {
		return fmt.Errorf("%w: ledger already starts at %s", ErrOpeningConflict, earliest.Date)
	}

	rec := DayRecord{
		Date:    date,
		Opening: true,
		Processor: ProcessorRailBalances{
			Available:    Round2(processorAvailable),
			Pending:      Round2(processorPending),
			SettledToday: decimal.Zero,
		},
		Platform: PlatformRailBalances{
			Pending:          Round2(platformPending),
			SettledToday:     decimal.Zero,
			TaxWithheldToday: decimal.Zero,
		},
	}
	return l.store.PutDay(ctx, rec)
}

// =============================================================================
// DAY OPERATIONS
// =============================================================================

// GetOrCreate returns the record for a date, creating it by carrying the
// previous day's balances forward when missing. A gap day with no activity
// never fails; only a date before all known history does.
func (l *Ledger) GetOrCreate(ctx context.Context, date Date) (DayRecord, error) {
	rec, err := l.store.GetDay(ctx, date)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return DayRecord{}, err
	}

	prev, err := l.store.PreviousDay(ctx, date)
	if err != nil {
		if errors.Is(err, ErrNoPriorRecord) {
			return DayRecord{}, fmt.Errorf("%w: establish an opening balance before %s", ErrNoPriorRecord, date)
		}
		return DayRecord{}, err
	}

	rec = CarryForward(prev, date)
	if err := l.store.PutDay(ctx, rec); err != nil {
		return DayRecord{}, err
	}
	return rec, nil
}

// SameDayInputs are the manually recorded settlement events for one date.
// Notes is optional; nil leaves the existing notes untouched.
type SameDayInputs struct {
	ProcessorSettled decimal.Decimal
	PlatformSettled  decimal.Decimal
	TaxWithheld      decimal.Decimal
	Notes            *string
}

// ApplySameDayInputs stores a day's manual settlement inputs. Running
// balances are NOT recomputed here; the record is stale until the next
// cascade pass from this date.
func (l *Ledger) ApplySameDayInputs(ctx context.Context, date Date, in SameDayInputs) (DayRecord, error) {
	rec, err := l.GetOrCreate(ctx, date)
	if err != nil {
		return DayRecord{}, err
	}

	rec.Processor.SettledToday = Round2(in.ProcessorSettled)
	rec.Platform.SettledToday = Round2(in.PlatformSettled)
	rec.Platform.TaxWithheldToday = Round2(in.TaxWithheld)
	if in.Notes != nil {
		rec.Notes = *in.Notes
	}

	if err := l.store.PutDay(ctx, rec); err != nil {
		return DayRecord{}, err
	}
	return rec, nil
}

// Read returns the record for a date, or ErrRecordNotFound.
func (l *Ledger) Read(ctx context.Context, date Date) (DayRecord, error) {
	return l.store.GetDay(ctx, date)
}

// Range returns records in [from, to] ascending.
func (l *Ledger) Range(ctx context.Context, from, to Date) ([]DayRecord, error) {
	return l.store.DaysInRange(ctx, from, to)
}
