/*
planner.go - Differential recalculation planning

PURPOSE:
  Decides, for a sale or entry mutation, whether a cascade is required and
  from which date. Cascades are O(days since edit x records per day), so
  skipping them for cosmetic edits (tracking URL, buyer name) is worth
  real latency; skipping them for a financial edit silently corrupts every
  later balance, which is the one unrecoverable error class here.

FAIL-OPEN RULE:
  Any ambiguity - a missing previous snapshot on an update, an unknown
  operation - plans a full cascade from the earliest plausible date.
  Correctness over performance, always.

CLASSIFICATION:
  Financial sale fields: date, channel, payment method, gross price,
    shipping, product cost, commission, tax, gross-receipts tax, net price.
  Financial entry fields: date, kind, channel, category, amount, personal.
  Everything else (product name, buyer, tracking, notes, description) is
  cosmetic.

SEE ALSO:
  - worker.go: Turns plans into serialized cascade runs
*/
package settlement

// Operation is the kind of mutation applied to a source record.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Plan is the planner's verdict: either skip recalculation entirely, or
// cascade forward from From.
type Plan struct {
	Skip   bool
	From   Date
	Reason string
}

func skipPlan(reason string) Plan        { return Plan{Skip: true, Reason: reason} }
func cascade(from Date, why string) Plan { return Plan{From: from, Reason: why} }

// =============================================================================
// SALES
// =============================================================================

// PlanSaleChange classifies a sale mutation. 'original' is the record
// before the change (nil for creates, required for a skip verdict on
// updates); 'updated' is the record after (the deleted record for deletes).
func PlanSaleChange(original, updated *Sale, op Operation) Plan {
	switch op {
	case OpCreate:
		return cascade(updated.Date, "sale created")
	case OpDelete:
		return cascade(updated.Date, "sale deleted")
	case OpUpdate:
		if original == nil {
			// No before-image: cannot prove the edit was cosmetic.
			return cascade(updated.Date, "sale updated (no previous snapshot)")
		}
		if saleFinanciallyEqual(*original, *updated) {
			return skipPlan("cosmetic sale edit")
		}
		return cascade(MinDate(original.Date, updated.Date), "financial sale edit")
	default:
		return cascade(updated.Date, "unknown sale operation")
	}
}

func saleFinanciallyEqual(a, b Sale) bool {
	return a.Date.Equal(b.Date) &&
		a.Channel == b.Channel &&
		a.PaymentMethod == b.PaymentMethod &&
		a.GrossPrice.Equal(b.GrossPrice) &&
		a.ShippingCost.Equal(b.ShippingCost) &&
		a.ProductCost.Equal(b.ProductCost) &&
		a.Commission.Equal(b.Commission) &&
		a.Tax.Equal(b.Tax) &&
		a.GrossReceiptsTax.Equal(b.GrossReceiptsTax) &&
		a.NetPrice.Equal(b.NetPrice)
}

// =============================================================================
// EXPENSE / INCOME ENTRIES
// =============================================================================

// PlanEntryChange classifies an expense/income mutation with the same
// contract as PlanSaleChange.
func PlanEntryChange(original, updated *Entry, op Operation) Plan {
	switch op {
	case OpCreate:
		return cascade(updated.Date, "entry created")
	case OpDelete:
		return cascade(updated.Date, "entry deleted")
	case OpUpdate:
		if original == nil {
			return cascade(updated.Date, "entry updated (no previous snapshot)")
		}
		if entryFinanciallyEqual(*original, *updated) {
			return skipPlan("cosmetic entry edit")
		}
		return cascade(MinDate(original.Date, updated.Date), "financial entry edit")
	default:
		return cascade(updated.Date, "unknown entry operation")
	}
}

func entryFinanciallyEqual(a, b Entry) bool {
	return a.Date.Equal(b.Date) &&
		a.Kind == b.Kind &&
		a.Channel == b.Channel &&
		a.Category == b.Category &&
		a.Personal == b.Personal &&
		a.Amount.Equal(b.Amount)
}
