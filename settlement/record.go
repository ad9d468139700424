/*
record.go - The per-day settlement ledger record

PURPOSE:
  One record per calendar day holding running balances for both custody
  rails. Derived fields are owned by the cascade recalculator; manual edits
  touch only the same-day input fields (settled-today, tax-withheld-today)
  and free-text notes.

BALANCE EQUATIONS (for day D with predecessor P):
  processor.available[D] = P.processor.available
                         + processor.settledToday[D]
                         + (platform.settledToday[D] - platform.taxWithheldToday[D])
                         + expenseIncomeImpact[D]
  platform.pending[D]    = P.platform.pending
                         + platformRailSaleContributions[D]
                         - platform.settledToday[D]
  processor.pending[D]   = P.processor.pending
                         + processorRailSaleContributions[D]
                         - processor.settledToday[D]

LIFECYCLE:
  The first record is a manually established opening balance (ground
  truth, no predecessor). Every later record is derived and re-derivable.

SEE ALSO:
  - cascade.go: The only writer of derived fields
  - aggregate.go: The per-day contribution inputs
*/
package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RAIL BALANCES
// =============================================================================

// ProcessorRailBalances tracks the payment-processor-held funds pipeline.
type ProcessorRailBalances struct {
	// Available is cash usable now. Derived.
	Available decimal.Decimal

	// Pending is money earned but not yet released by the processor. Derived.
	Pending decimal.Decimal

	// SettledToday is the amount the processor released on this date.
	// Same-day manual input.
	SettledToday decimal.Decimal
}

// PlatformRailBalances tracks the storefront-platform-held funds pipeline.
type PlatformRailBalances struct {
	// Pending is what the platform owes but hasn't transferred. Derived.
	Pending decimal.Decimal

	// SettledToday is the amount transferred to the seller today.
	// Same-day manual input.
	SettledToday decimal.Decimal

	// TaxWithheldToday is the gross-receipts tax withheld during the
	// platform-to-processor transfer. Same-day manual input.
	TaxWithheldToday decimal.Decimal
}

// TransferNet is the amount that actually reaches the processor wallet from
// today's platform settlement, net of the withheld tax.
func (p PlatformRailBalances) TransferNet() decimal.Decimal {
	return p.SettledToday.Sub(p.TaxWithheldToday)
}

// =============================================================================
// DAY RECORD
// =============================================================================

// DayRecord is the settlement ledger row for one calendar date.
// Unique key: Date.
type DayRecord struct {
	Date      Date
	Processor ProcessorRailBalances
	Platform  PlatformRailBalances
	Notes     string
	UpdatedAt time.Time

	// Opening marks the manually established first record. Its derived
	// fields are ground truth and are never rewritten by the cascade.
	Opening bool
}

// Derive computes day D's record from its predecessor and D's aggregated
// contributions, preserving D's same-day inputs and notes. This is the
// single place the balance equations live.
func Derive(prev DayRecord, date Date, inputs DayRecord, agg DayAggregates) DayRecord {
	rec := DayRecord{
		Date:  date,
		Notes: inputs.Notes,
		Processor: ProcessorRailBalances{
			SettledToday: inputs.Processor.SettledToday,
		},
		Platform: PlatformRailBalances{
			SettledToday:     inputs.Platform.SettledToday,
			TaxWithheldToday: inputs.Platform.TaxWithheldToday,
		},
	}

	rec.Platform.Pending = Round2(prev.Platform.Pending.
		Add(agg.Platform.NetContribution).
		Sub(rec.Platform.SettledToday))

	rec.Processor.Pending = Round2(prev.Processor.Pending.
		Add(agg.Processor.NetContribution).
		Sub(rec.Processor.SettledToday))

	rec.Processor.Available = Round2(prev.Processor.Available.
		Add(rec.Processor.SettledToday).
		Add(rec.Platform.TransferNet()).
		Add(agg.Entries.NetContribution))

	return rec
}

// CarryForward synthesizes day D from its predecessor with zero same-day
// activity: balances roll over unchanged. Used for gap days.
func CarryForward(prev DayRecord, date Date) DayRecord {
	return DayRecord{
		Date: date,
		Processor: ProcessorRailBalances{
			Available:    prev.Processor.Available,
			Pending:      prev.Processor.Pending,
			SettledToday: decimal.Zero,
		},
		Platform: PlatformRailBalances{
			Pending:          prev.Platform.Pending,
			SettledToday:     decimal.Zero,
			TaxWithheldToday: decimal.Zero,
		},
	}
}

// Equal compares two records field by field (decimal-exact). Used by the
// idempotence tests and by stores that skip no-op writes.
func (r DayRecord) Equal(other DayRecord) bool {
	return r.Date.Equal(other.Date) &&
		r.Processor.Available.Equal(other.Processor.Available) &&
		r.Processor.Pending.Equal(other.Processor.Pending) &&
		r.Processor.SettledToday.Equal(other.Processor.SettledToday) &&
		r.Platform.Pending.Equal(other.Platform.Pending) &&
		r.Platform.SettledToday.Equal(other.Platform.SettledToday) &&
		r.Platform.TaxWithheldToday.Equal(other.Platform.TaxWithheldToday) &&
		r.Notes == other.Notes
}
