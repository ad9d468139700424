/*
Package settlement provides the daily cash-settlement ledger engine.

PURPOSE:
  This package contains the types and algorithms for reconciling money held
  by the two custody rails of a multi-marketplace seller: the payment
  processor (card/wallet collections, released on a delay) and the
  storefront platform (platform-collected payments, transferred net of
  withheld tax). One ledger record per calendar day carries running balances
  for both rails; any retroactive change to a sale or expense cascades
  forward through every subsequent day.

KEY CONCEPTS IN THIS FILE (types.go):
  - Date: A calendar day (the ledger's key granularity)
  - Sale: A sale as stored by the CRUD layer (read-only here)
  - Entry: An expense/income entry (read-only here)
  - Channel / PaymentMethod: Where a sale happened and how it was paid
  - Round2: The single rounding rule for stored money

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Derivability: Every ledger day is re-derivable from its predecessor
     plus that day's sale/expense inputs - never an independent source
     of truth once a predecessor exists
  3. Single writer: Only the cascade recalculator rewrites derived fields

SEE ALSO:
  - record.go: The per-day ledger record and its balance equations
  - aggregate.go: Per-day contribution aggregators
  - cascade.go: Forward recalculation
*/
package settlement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Calendar day, the ledger's unit of time
// =============================================================================

// Date is a calendar day in UTC. All ledger keys, sale dates, and entry
// dates are day-granular; intraday ordering never matters for settlement.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an arbitrary timestamp to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

func Today() Date { return DateOf(time.Now()) }

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }
func (d Date) IsZero() bool                  { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Next() Date         { return d.AddDays(1) }
func (d Date) Prev() Date         { return d.AddDays(-1) }

func (d Date) Time() time.Time { return d.t }
func (d Date) String() string  { return d.t.Format("2006-01-02") }

// MinDate returns the earlier of two dates.
func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxDate returns the later of two dates.
func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// DaysBetween returns the number of whole days from 'from' to 'to'.
func DaysBetween(from, to Date) int { return int(to.t.Sub(from.t).Hours() / 24) }

// =============================================================================
// MONEY - Rounding discipline
// =============================================================================

// Round2 rounds to cents. Every monetary value is rounded at the point of
// computation - raw decimals are never stored.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// MustDecimal parses a decimal literal, returning zero on failure.
// For wiring constants and test fixtures, not for user input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// CHANNELS AND PAYMENT METHODS
// =============================================================================

// Channel identifies the sales platform a sale came through. In settlement
// context it also selects which custody rail holds the money.
type Channel string

const (
	// ChannelStorefront: the storefront platform collects payment and owes
	// the seller a delayed transfer (platform rail), except when the buyer
	// paid through the processor's checkout.
	ChannelStorefront Channel = "storefront"

	// ChannelMarketplace: the marketplace collects through the payment
	// processor; funds land on the processor rail.
	ChannelMarketplace Channel = "marketplace"

	// ChannelDirect: in-person/direct sales. Cash never enters either rail.
	ChannelDirect Channel = "direct"

	// ChannelGeneral is used for expense/income entries not tied to a
	// specific sales channel.
	ChannelGeneral Channel = "general"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelStorefront, ChannelMarketplace, ChannelDirect, ChannelGeneral:
		return true
	}
	return false
}

// PaymentMethod identifies how the buyer paid.
type PaymentMethod string

const (
	PayProcessor    PaymentMethod = "processor" // processor checkout (card/wallet)
	PayPlatform     PaymentMethod = "platform"  // storefront platform's own collection
	PayBankTransfer PaymentMethod = "bank_transfer"
	PayCash         PaymentMethod = "cash"
)

// =============================================================================
// SALE - External collaborator record (read-only for the ledger)
// =============================================================================

// Sale is a sale as persisted by the surrounding CRUD layer. The settlement
// engine only reads the financial fields; the cosmetic fields exist so the
// differential planner can tell a tracking-URL edit from a price edit.
//
// INVARIANT: Commission and Tax are stored tax-exclusive. A tax-inclusive
// commission reported by a channel must be decomposed before storage
// (see the sales package calculator).
type Sale struct {
	ID            string
	Date          Date
	Channel       Channel
	PaymentMethod PaymentMethod

	// Financial fields - any change cascades through the ledger.
	GrossPrice       decimal.Decimal
	ShippingCost     decimal.Decimal
	ProductCost      decimal.Decimal
	Commission       decimal.Decimal // tax-exclusive, includes fixed fee
	Tax              decimal.Decimal // VAT on commission
	GrossReceiptsTax decimal.Decimal // IIBB withheld on the sale
	NetPrice         decimal.Decimal
	Margin           decimal.Decimal

	// Cosmetic fields - no ledger impact.
	Product     string
	BuyerName   string
	TrackingURL string
	Notes       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProcessorRail reports whether this sale's proceeds land on the payment
// processor rail (marketplace sales, and storefront sales paid through the
// processor's checkout).
func (s Sale) ProcessorRail() bool {
	return s.Channel == ChannelMarketplace ||
		(s.Channel == ChannelStorefront && s.PaymentMethod == PayProcessor)
}

// PlatformRail reports whether this sale contributes to the storefront
// platform's pending-settlement balance.
func (s Sale) PlatformRail() bool { return s.Channel == ChannelStorefront }

// =============================================================================
// EXPENSE / INCOME ENTRY - External collaborator record
// =============================================================================

type EntryKind string

const (
	KindExpense EntryKind = "expense"
	KindIncome  EntryKind = "income"
)

// CategoryOtherIncome marks income with no ledger impact (e.g. a reimbursed
// personal outlay). All other income categories increase processor-rail
// available balance.
const CategoryOtherIncome = "other_income"

// Entry is an expense or income row. ALL expenses (business and personal)
// reduce processor-rail available balance - the seller pays everything out
// of the processor wallet. Only genuine business income increases it.
type Entry struct {
	ID       string
	Date     Date
	Channel  Channel // defaults to ChannelGeneral
	Kind     EntryKind
	Category string
	Amount   decimal.Decimal
	Personal bool // personal/non-business entry

	// Cosmetic fields.
	Description string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CountsTowardLedger reports whether this entry moves processor-rail money.
// Expenses always count (including personal ones). Income counts unless it
// is personal or categorized as other income.
func (e Entry) CountsTowardLedger() bool {
	if e.Kind == KindExpense {
		return true
	}
	return !e.Personal && e.Category != CategoryOtherIncome
}

// =============================================================================
// TAX CONFIG - Shared decomposition rates
// =============================================================================

// TaxConfig carries the configured tax rates used by both the sale
// calculator and the storefront aggregator, so the aggregator's commission
// reinflation multiplier is always derived from the same rates the
// calculator decomposed with.
type TaxConfig struct {
	VATRate           decimal.Decimal // e.g. 0.21
	GrossReceiptsRate decimal.Decimal // e.g. 0.03
}

// DefaultTaxConfig returns the standard 21% VAT / 3% gross-receipts setup.
func DefaultTaxConfig() TaxConfig {
	return TaxConfig{
		VATRate:           MustDecimal("0.21"),
		GrossReceiptsRate: MustDecimal("0.03"),
	}
}

// CommissionMultiplier is the factor that reinflates a stored tax-exclusive
// commission into the tax+gross-receipts-inclusive outflow the storefront
// platform actually withholds (1.24 with default rates).
func (tc TaxConfig) CommissionMultiplier() decimal.Decimal {
	return decimal.NewFromInt(1).Add(tc.VATRate).Add(tc.GrossReceiptsRate)
}
