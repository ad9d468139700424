/*
strategy.go - Channel tax-decomposition policies

PURPOSE:
  Each (channel, payment method) combination has its own rule for how the
  reported commission relates to tax. Those rules are strategy objects
  behind one Decompose capability, so adding a channel means adding a
  strategy, not another branch in the calculator.

THE THREE POLICIES:
  additive (storefront general, direct):
    Commission is tax-exclusive. VAT is added on top; IIBB is computed
    from the rate's configured percentage.

  inclusive (marketplace):
    Commission is reported tax-inclusive. The exclusive amount is
    commission / (1+VAT); VAT is the difference. The marketplace does not
    report IIBB, so it is a manual per-sale input.

  split (storefront paid through the processor):
    Base commission is tax-exclusive (VAT added on top) but the extra
    commission is tax-inclusive and must be deflated. IIBB is manual.
    Shipping is settled separately and NOT deducted from net price.

SEE ALSO:
  - calculator.go: Applies the selected strategy
*/
package sales

import (
	"github.com/shopspring/decimal"

	"github.com/egidigero/storeledger/settlement"
)

// =============================================================================
// STRATEGY INTERFACE
// =============================================================================

// DecomposeInput carries the commission components before tax treatment.
type DecomposeInput struct {
	Base  decimal.Decimal // primary commission as reported by the channel
	Extra decimal.Decimal // secondary commission as reported

	// ManualGrossReceipts is the per-sale IIBB input for channels that do
	// not compute it (marketplace, storefront+processor).
	ManualGrossReceipts decimal.Decimal

	Rate Rate
	Tax  settlement.TaxConfig
}

// Decomposition is the tax-exclusive view stored on the Sale.
type Decomposition struct {
	CommissionExclusive decimal.Decimal // base + extra, both tax-exclusive
	Tax                 decimal.Decimal
	GrossReceipts       decimal.Decimal
}

// Strategy is a channel's tax-decomposition policy.
type Strategy interface {
	Decompose(in DecomposeInput) Decomposition

	// DeductsShipping reports whether shipping cost reduces net price
	// here, or is settled separately by the rail.
	DeductsShipping() bool
}

// StrategyFor selects the policy for a channel/payment-method pair.
func StrategyFor(channel settlement.Channel, method settlement.PaymentMethod) Strategy {
	if channel == settlement.ChannelStorefront && method == settlement.PayProcessor {
		return splitTax{}
	}
	if channel == settlement.ChannelMarketplace {
		return inclusiveTax{}
	}
	return additiveTax{}
}

// =============================================================================
// POLICIES
// =============================================================================

type additiveTax struct{}

func (additiveTax) Decompose(in DecomposeInput) Decomposition {
	total := in.Base.Add(in.Extra)
	return Decomposition{
		CommissionExclusive: settlement.Round2(total),
		Tax:                 settlement.Round2(total.Mul(in.Tax.VATRate)),
		GrossReceipts:       settlement.Round2(total.Mul(in.Rate.GrossReceiptsPct)),
	}
}

func (additiveTax) DeductsShipping() bool { return true }

type inclusiveTax struct{}

func (t inclusiveTax) Decompose(in DecomposeInput) Decomposition {
	inclusive := in.Base.Add(in.Extra)
	exclusive := settlement.Round2(inclusive.Div(one.Add(in.Tax.VATRate)))
	return Decomposition{
		CommissionExclusive: exclusive,
		Tax:                 settlement.Round2(inclusive.Sub(exclusive)),
		GrossReceipts:       settlement.Round2(in.ManualGrossReceipts),
	}
}

func (inclusiveTax) DeductsShipping() bool { return true }

type splitTax struct{}

func (splitTax) Decompose(in DecomposeInput) Decomposition {
	baseTax := settlement.Round2(in.Base.Mul(in.Tax.VATRate))
	extraExclusive := settlement.Round2(in.Extra.Div(one.Add(in.Tax.VATRate)))
	extraTax := settlement.Round2(in.Extra.Sub(extraExclusive))
	return Decomposition{
		CommissionExclusive: settlement.Round2(in.Base.Add(extraExclusive)),
		Tax:                 settlement.Round2(baseTax.Add(extraTax)),
		GrossReceipts:       settlement.Round2(in.ManualGrossReceipts),
	}
}

func (splitTax) DeductsShipping() bool { return false }

var one = decimal.NewFromInt(1)
