/*
calculator.go - Pure sale net-amount computation

PURPOSE:
  Given a gross sale and a resolved rate, compute commission, tax
  breakdown, net price and margin. No state, no I/O beyond the rate
  lookup; identical inputs always give identical outputs.

ALGORITHM:
  1. priceAfterDiscount = gross * (1 - discountPct)
  2. base commission = manual override when provided and positive, else
     priceAfterDiscount * commissionPct; same pattern for the extra
     commission
  3. tax decomposition per the channel's strategy (see strategy.go)
  4. stored commission (always tax-exclusive) = decomposed exclusive
     amount + fixed fee
  5. net = priceAfterDiscount - commission - tax - grossReceipts
     [- shipping, unless the strategy settles shipping separately]
  6. margin = net - productCost; ratios over gross and over cost
     (zero when the denominator is zero)

  Every monetary output is rounded to cents at the point of computation.

SEE ALSO:
  - rates.go: Rate resolution (exact match, fatal on miss)
  - ../settlement/types.go: The storage invariant these outputs satisfy
*/
package sales

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/egidigero/storeledger/settlement"
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// Input is everything needed to price one sale.
type Input struct {
	GrossPrice   decimal.Decimal
	ShippingCost decimal.Decimal
	ProductCost  decimal.Decimal

	Channel       settlement.Channel
	PaymentMethod settlement.PaymentMethod
	Condition     string

	// ManualCommission / ManualExtraCommission override the rate-derived
	// amounts when positive (channels sometimes report the actual charge).
	ManualCommission      *decimal.Decimal
	ManualExtraCommission *decimal.Decimal

	// ManualGrossReceipts is the per-sale IIBB figure for channels that
	// do not compute it.
	ManualGrossReceipts *decimal.Decimal
}

// Computation is the priced sale, ready to copy onto a settlement.Sale.
type Computation struct {
	PriceAfterDiscount decimal.Decimal
	Commission         decimal.Decimal // tax-exclusive, includes fixed fee
	Tax                decimal.Decimal
	GrossReceiptsTax   decimal.Decimal
	NetPrice           decimal.Decimal
	Margin             decimal.Decimal

	// Profitability ratios; zero when the denominator is zero.
	MarginOverGross decimal.Decimal
	MarginOverCost  decimal.Decimal
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator prices sales against a rate resolver.
type Calculator struct {
	Rates Resolver
	Tax   settlement.TaxConfig
}

func NewCalculator(rates Resolver, tax settlement.TaxConfig) *Calculator {
	return &Calculator{Rates: rates, Tax: tax}
}

// Compute prices one sale. Returns the resolver's error unchanged when no
// rate matches - the sale must not be persisted in that case.
func (c *Calculator) Compute(ctx context.Context, in Input) (Computation, error) {
	rate, err := c.Rates.Resolve(ctx, in.Channel, in.PaymentMethod, in.Condition)
	if err != nil {
		return Computation{}, err
	}
	return ComputeWithRate(in, rate, c.Tax), nil
}

// ComputeWithRate is the pure core, usable without a resolver.
func ComputeWithRate(in Input, rate Rate, tax settlement.TaxConfig) Computation {
	one := decimal.NewFromInt(1)
	priceAfterDiscount := settlement.Round2(in.GrossPrice.Mul(one.Sub(rate.DiscountPct)))

	base := override(in.ManualCommission, settlement.Round2(priceAfterDiscount.Mul(rate.CommissionPct)))
	extra := override(in.ManualExtraCommission, settlement.Round2(priceAfterDiscount.Mul(rate.ExtraCommissionPct)))

	strategy := StrategyFor(in.Channel, in.PaymentMethod)
	dec := strategy.Decompose(DecomposeInput{
		Base:                base,
		Extra:               extra,
		ManualGrossReceipts: valueOrZero(in.ManualGrossReceipts),
		Rate:                rate,
		Tax:                 tax,
	})

	commission := settlement.Round2(dec.CommissionExclusive.Add(rate.FixedFee))

	net := priceAfterDiscount.
		Sub(commission).
		Sub(dec.Tax).
		Sub(dec.GrossReceipts)
	if strategy.DeductsShipping() {
		net = net.Sub(in.ShippingCost)
	}
	net = settlement.Round2(net)

	margin := settlement.Round2(net.Sub(in.ProductCost))

	return Computation{
		PriceAfterDiscount: priceAfterDiscount,
		Commission:         commission,
		Tax:                dec.Tax,
		GrossReceiptsTax:   dec.GrossReceipts,
		NetPrice:           net,
		Margin:             margin,
		MarginOverGross:    ratio(margin, in.GrossPrice),
		MarginOverCost:     ratio(margin, in.ProductCost),
	}
}

func override(manual *decimal.Decimal, computed decimal.Decimal) decimal.Decimal {
	if manual != nil && manual.IsPositive() {
		return settlement.Round2(*manual)
	}
	return computed
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Round(4)
}
