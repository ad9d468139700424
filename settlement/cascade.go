/*
cascade.go - Forward recalculation of the settlement ledger

PURPOSE:
  Re-derives every ledger day from a start date through the latest known
  date, in strictly ascending order. Each day's result is an input to the
  next, so the run is sequential by construction. This is the only
  component permitted to rewrite derived balances.

GUARANTEES:
  - Single writer: a global mutex serializes concurrent triggers. Two
    edits racing through the cascade can otherwise interleave writes and
    corrupt running balances.
  - Idempotent: a run with no intervening data change produces identical
    records. Required because triggers are delivered at least once.
  - Partial-failure safety: each day is written whole or not at all. On
    failure, all earlier days are valid, the watermark points at the last
    written day, and the run can be retried from at or before the failure.
  - Resumable: an interrupted run resumes from the persisted watermark.

END DATE:
  The run extends through the latest of the latest ledger record, latest
  sale date and latest entry date, synthesizing carry-forward records for
  gap days, so activity recorded past the last ledger row is never dropped.

SEE ALSO:
  - record.go: Derive, the balance equations
  - planner.go: Decides whether a cascade is needed and from where
  - worker.go: Serialized consumer that owns this recalculator
*/
package settlement

import (
	"context"
	"errors"
	"sync"
	"time"
)

// =============================================================================
// RECALCULATOR
// =============================================================================

// Recalculator re-derives ledger days forward from an edit point.
type Recalculator struct {
	ledger  LedgerStore
	sales   SaleStore
	entries EntryStore
	agg     *Aggregator

	// ChunkSize bounds how many days are processed between cancellation
	// checks. A months-long cascade yields instead of running unbounded.
	ChunkSize int

	mu sync.Mutex
}

func NewRecalculator(ledger LedgerStore, sales SaleStore, entries EntryStore, tax TaxConfig) *Recalculator {
	return &Recalculator{
		ledger:    ledger,
		sales:     sales,
		entries:   entries,
		agg:       NewAggregator(sales, entries, tax),
		ChunkSize: 90,
	}
}

// RecalculateFrom recomputes every ledger record from startDate through the
// latest known date, inclusive. Exposed to operational tooling for manual
// repair; normal triggers arrive through the worker.
func (r *Recalculator) RecalculateFrom(ctx context.Context, startDate Date) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	opening, ok, err := r.ledger.EarliestDay(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPriorRecord
	}

	// The opening record is ground truth; never rewrite it.
	start := startDate
	if start.BeforeOrEqual(opening.Date) {
		start = opening.Date.Next()
	}

	end, err := r.endDate(ctx)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return nil
	}

	prev, err := r.ledger.PreviousDay(ctx, start)
	if err != nil {
		return err
	}

	processed := 0
	for day := start; day.BeforeOrEqual(end); day = day.Next() {
		if processed%r.chunk() == 0 {
			if err := ctx.Err(); err != nil {
				return &CascadeError{Date: day, Err: err}
			}
		}

		rec, err := r.recalculateDay(ctx, prev, day)
		if err != nil {
			return &CascadeError{Date: day, Err: err}
		}
		if err := r.ledger.SetWatermark(ctx, day); err != nil {
			return &CascadeError{Date: day, Err: err}
		}

		prev = rec
		processed++
	}

	return r.ledger.ClearWatermark(ctx)
}

// Resume continues an interrupted cascade from the persisted watermark.
// No-op when no watermark exists.
func (r *Recalculator) Resume(ctx context.Context) error {
	wm, ok, err := r.ledger.Watermark(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	// The watermark day itself was written successfully; continue after it.
	return r.RecalculateFrom(ctx, wm.Next())
}

// recalculateDay derives one day from its predecessor, preserving the
// day's same-day inputs and notes. The write is a single PutDay, so the
// day is never left half-updated.
func (r *Recalculator) recalculateDay(ctx context.Context, prev DayRecord, day Date) (DayRecord, error) {
	inputs, err := r.ledger.GetDay(ctx, day)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			return DayRecord{}, err
		}
		inputs = CarryForward(prev, day) // gap day: zero same-day activity
	}

	agg, err := r.agg.AggregateDay(ctx, day)
	if err != nil {
		return DayRecord{}, err
	}

	rec := Derive(prev, day, inputs, agg)
	rec.UpdatedAt = time.Now().UTC()
	if err := r.ledger.PutDay(ctx, rec); err != nil {
		return DayRecord{}, err
	}
	return rec, nil
}

// endDate is the latest date any input or ledger record is known for.
func (r *Recalculator) endDate(ctx context.Context) (Date, error) {
	latest, ok, err := r.ledger.LatestDay(ctx)
	if err != nil {
		return Date{}, err
	}
	if !ok {
		return Date{}, ErrNoPriorRecord
	}
	end := latest.Date

	if d, ok, err := r.sales.LatestSaleDate(ctx); err != nil {
		return Date{}, err
	} else if ok {
		end = MaxDate(end, d)
	}
	if d, ok, err := r.entries.LatestEntryDate(ctx); err != nil {
		return Date{}, err
	} else if ok {
		end = MaxDate(end, d)
	}
	return end, nil
}

func (r *Recalculator) chunk() int {
	if r.ChunkSize <= 0 {
		return 90
	}
	return r.ChunkSize
}
