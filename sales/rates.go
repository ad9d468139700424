/*
Package sales prices individual sales: commission/fee rate resolution and
net-amount computation with channel-specific tax decomposition.

PURPOSE:
  Given a gross sale and a configured rate, compute what is actually stored
  on the Sale record: tax-exclusive commission, tax breakdown, net price
  and margin. The settlement aggregators consume those stored values; this
  package is where tax-inclusive channel reports get decomposed so the
  storage invariant (commission is always tax-exclusive) holds.

KEY CONCEPTS IN THIS FILE (rates.go):
  - Rate: Commission/tax/discount percentages + fixed fee for one
    (channel, payment method, condition) triple
  - Resolver: Exact-match lookup; a missing rate is fatal for the sale
    being priced - no sale is ever priced with a guessed rate

SEE ALSO:
  - strategy.go: Per-channel tax decomposition policies
  - calculator.go: The pure computation
*/
package sales

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/egidigero/storeledger/settlement"
)

// =============================================================================
// RATE
// =============================================================================

// RateKey identifies one rate row. Matching is exact on all three fields;
// there is no fallback or wildcard resolution.
type RateKey struct {
	Channel       settlement.Channel
	PaymentMethod settlement.PaymentMethod
	Condition     string // e.g. "standard", "installments_3"
}

// Rate holds the percentages used to price a sale. Percentages are
// fractions (0.13 = 13%), never whole numbers.
type Rate struct {
	ID  string
	Key RateKey

	CommissionPct      decimal.Decimal
	ExtraCommissionPct decimal.Decimal
	DiscountPct        decimal.Decimal
	FixedFee           decimal.Decimal

	// GrossReceiptsPct applies where the channel computes IIBB by
	// percentage (storefront general); channels that report IIBB manually
	// ignore it.
	GrossReceiptsPct decimal.Decimal
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver resolves a rate for a sale. Implementations must return a
// *settlement.RateLookupError (wrapping ErrRateNotFound) on a miss.
type Resolver interface {
	Resolve(ctx context.Context, channel settlement.Channel, method settlement.PaymentMethod, condition string) (Rate, error)
}

// Table is an in-memory exact-match resolver. The API layer loads it from
// the rate store at startup and keeps it current on rate writes.
type Table struct {
	mu    sync.RWMutex
	rates map[RateKey]Rate
}

func NewTable(rates ...Rate) *Table {
	t := &Table{rates: make(map[RateKey]Rate)}
	for _, r := range rates {
		t.rates[r.Key] = r
	}
	return t
}

// Put inserts or replaces the rate for its key.
func (t *Table) Put(r Rate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[r.Key] = r
}

// All returns the table's rates in unspecified order.
func (t *Table) All() []Rate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Rate, 0, len(t.rates))
	for _, r := range t.rates {
		out = append(out, r)
	}
	return out
}

func (t *Table) Resolve(_ context.Context, channel settlement.Channel, method settlement.PaymentMethod, condition string) (Rate, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.rates[RateKey{Channel: channel, PaymentMethod: method, Condition: condition}]
	if !ok {
		return Rate{}, &settlement.RateLookupError{
			Channel:       channel,
			PaymentMethod: method,
			Condition:     condition,
		}
	}
	return r, nil
}
