/*
aggregate.go - Per-day contribution aggregators

PURPOSE:
  Three independent, read-only projections that sum the settlement-relevant
  contribution of one calendar day:
    1. Storefront-platform rail sales (what the platform newly owes)
    2. Processor rail sales (what the processor newly owes)
    3. Expense/income entries (what moved in the processor wallet)

  They are idempotent and side-effect-free: identical underlying data gives
  identical output regardless of call order or frequency.

CONTRIBUTION POLICIES:
  Platform rail: contribution per sale = gross - (storedCommission * M)
    where M = 1 + VAT + grossReceipts (1.24 with defaults). The stored
    commission is tax-exclusive; the platform withholds the tax-inclusive
    amount, so it is reinflated with the same configured rates the
    calculator decomposed with.

  Processor rail: contribution per sale =
    gross - commission - tax - grossReceiptsTax - shipping,
    except storefront sales paid through the processor, where shipping is
    settled separately and NOT deducted.

  Entries: income (excluding personal and other-income categories)
    minus ALL expenses, personal included.

SEE ALSO:
  - cascade.go: Runs all three per day
  - types.go: Rail membership predicates on Sale
*/
package settlement

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AGGREGATE RESULTS
// =============================================================================

// RailAggregate is one rail's summed sale contributions for a single day.
type RailAggregate struct {
	Count                 int
	TotalGross            decimal.Decimal
	TotalCommission       decimal.Decimal
	TotalTax              decimal.Decimal
	TotalGrossReceiptsTax decimal.Decimal
	NetContribution       decimal.Decimal
}

// EntryAggregate is the day's expense/income impact on the processor wallet.
type EntryAggregate struct {
	Count           int
	TotalIncome     decimal.Decimal
	TotalExpense    decimal.Decimal
	NetContribution decimal.Decimal // income - expense
}

// DayAggregates bundles the three projections for one date.
type DayAggregates struct {
	Platform  RailAggregate
	Processor RailAggregate
	Entries   EntryAggregate
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator computes per-day contributions from the sale and entry stores.
type Aggregator struct {
	Sales   SaleStore
	Entries EntryStore
	Tax     TaxConfig
}

func NewAggregator(sales SaleStore, entries EntryStore, tax TaxConfig) *Aggregator {
	return &Aggregator{Sales: sales, Entries: entries, Tax: tax}
}

// AggregateDay runs all three projections for one date.
func (a *Aggregator) AggregateDay(ctx context.Context, date Date) (DayAggregates, error) {
	sales, err := a.Sales.SalesOn(ctx, date)
	if err != nil {
		return DayAggregates{}, err
	}
	entries, err := a.Entries.EntriesOn(ctx, date)
	if err != nil {
		return DayAggregates{}, err
	}

	return DayAggregates{
		Platform:  a.platformRail(sales),
		Processor: a.processorRail(sales),
		Entries:   a.entryImpact(entries),
	}, nil
}

// platformRail sums storefront-channel sales. The platform owes the seller
// the gross price minus its tax-inclusive commission withholding, which is
// reconstructed from the tax-exclusive stored value.
func (a *Aggregator) platformRail(sales []Sale) RailAggregate {
	agg := zeroRailAggregate()
	multiplier := a.Tax.CommissionMultiplier()

	for _, s := range sales {
		if !s.PlatformRail() {
			continue
		}
		withheld := Round2(s.Commission.Mul(multiplier))
		contribution := Round2(s.GrossPrice.Sub(withheld))

		agg.Count++
		agg.TotalGross = agg.TotalGross.Add(s.GrossPrice)
		agg.TotalCommission = agg.TotalCommission.Add(s.Commission)
		agg.TotalTax = agg.TotalTax.Add(s.Tax)
		agg.TotalGrossReceiptsTax = agg.TotalGrossReceiptsTax.Add(s.GrossReceiptsTax)
		agg.NetContribution = agg.NetContribution.Add(contribution)
	}
	return roundRail(agg)
}

// processorRail sums marketplace sales and processor-paid storefront sales.
// Shipping is deducted except for the storefront+processor combination,
// where the processor settles shipping separately.
func (a *Aggregator) processorRail(sales []Sale) RailAggregate {
	agg := zeroRailAggregate()

	for _, s := range sales {
		if !s.ProcessorRail() {
			continue
		}
		contribution := s.GrossPrice.
			Sub(s.Commission).
			Sub(s.Tax).
			Sub(s.GrossReceiptsTax)
		if !(s.Channel == ChannelStorefront && s.PaymentMethod == PayProcessor) {
			contribution = contribution.Sub(s.ShippingCost)
		}

		agg.Count++
		agg.TotalGross = agg.TotalGross.Add(s.GrossPrice)
		agg.TotalCommission = agg.TotalCommission.Add(s.Commission)
		agg.TotalTax = agg.TotalTax.Add(s.Tax)
		agg.TotalGrossReceiptsTax = agg.TotalGrossReceiptsTax.Add(s.GrossReceiptsTax)
		agg.NetContribution = agg.NetContribution.Add(Round2(contribution))
	}
	return roundRail(agg)
}

// entryImpact sums the day's expense/income movement in the processor
// wallet. Personal expenses still count (they leave the wallet); personal
// and other-income entries never count as income.
func (a *Aggregator) entryImpact(entries []Entry) EntryAggregate {
	agg := EntryAggregate{
		TotalIncome:     decimal.Zero,
		TotalExpense:    decimal.Zero,
		NetContribution: decimal.Zero,
	}

	for _, e := range entries {
		if !e.CountsTowardLedger() {
			continue
		}
		agg.Count++
		switch e.Kind {
		case KindExpense:
			agg.TotalExpense = agg.TotalExpense.Add(e.Amount)
		case KindIncome:
			agg.TotalIncome = agg.TotalIncome.Add(e.Amount)
		}
	}

	agg.TotalIncome = Round2(agg.TotalIncome)
	agg.TotalExpense = Round2(agg.TotalExpense)
	agg.NetContribution = Round2(agg.TotalIncome.Sub(agg.TotalExpense))
	return agg
}

func zeroRailAggregate() RailAggregate {
	return RailAggregate{
		TotalGross:            decimal.Zero,
		TotalCommission:       decimal.Zero,
		TotalTax:              decimal.Zero,
		TotalGrossReceiptsTax: decimal.Zero,
		NetContribution:       decimal.Zero,
	}
}

func roundRail(agg RailAggregate) RailAggregate {
	agg.TotalGross = Round2(agg.TotalGross)
	agg.TotalCommission = Round2(agg.TotalCommission)
	agg.TotalTax = Round2(agg.TotalTax)
	agg.TotalGrossReceiptsTax = Round2(agg.TotalGrossReceiptsTax)
	agg.NetContribution = Round2(agg.NetContribution)
	return agg
}
