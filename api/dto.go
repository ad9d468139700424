/*
dto.go - Request/response data structures

PURPOSE:
  JSON shapes for the HTTP API, kept separate from domain types so the
  wire format can evolve without touching the engine. Monetary fields
  travel as strings ("23853.00") - JSON numbers are float64 and would
  undo the decimal discipline.

SEE ALSO:
  - handlers.go: Converts between DTOs and domain types
*/
package api

// =============================================================================
// LEDGER
// =============================================================================

type LedgerDayDTO struct {
	Date string `json:"date"`

	ProcessorAvailable    string `json:"processor_available"`
	ProcessorPending      string `json:"processor_pending"`
	ProcessorSettledToday string `json:"processor_settled_today"`

	PlatformPending          string `json:"platform_pending"`
	PlatformSettledToday     string `json:"platform_settled_today"`
	PlatformTaxWithheldToday string `json:"platform_tax_withheld_today"`

	Notes     string `json:"notes,omitempty"`
	Opening   bool   `json:"opening,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

type OpeningBalanceRequest struct {
	Date               string `json:"date"`
	ProcessorAvailable string `json:"processor_available"`
	ProcessorPending   string `json:"processor_pending"`
	PlatformPending    string `json:"platform_pending"`
}

type SettlementInputsRequest struct {
	ProcessorSettledToday    string  `json:"processor_settled_today"`
	PlatformSettledToday     string  `json:"platform_settled_today"`
	PlatformTaxWithheldToday string  `json:"platform_tax_withheld_today"`
	Notes                    *string `json:"notes,omitempty"`
}

type RecalculateRequest struct {
	From string `json:"from"`
}

type WatermarkDTO struct {
	Watermark string `json:"watermark,omitempty"`
	Pending   bool   `json:"pending"`
}

// =============================================================================
// SALES
// =============================================================================

type SaleRequest struct {
	Date          string `json:"date"`
	Channel       string `json:"channel"`
	PaymentMethod string `json:"payment_method"`
	Condition     string `json:"condition"`

	GrossPrice   string `json:"gross_price"`
	ShippingCost string `json:"shipping_cost"`
	ProductCost  string `json:"product_cost"`

	ManualCommission      *string `json:"manual_commission,omitempty"`
	ManualExtraCommission *string `json:"manual_extra_commission,omitempty"`
	ManualGrossReceipts   *string `json:"manual_gross_receipts,omitempty"`

	Product     string `json:"product,omitempty"`
	BuyerName   string `json:"buyer_name,omitempty"`
	TrackingURL string `json:"tracking_url,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type SaleDTO struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	Channel       string `json:"channel"`
	PaymentMethod string `json:"payment_method"`

	GrossPrice       string `json:"gross_price"`
	ShippingCost     string `json:"shipping_cost"`
	ProductCost      string `json:"product_cost"`
	Commission       string `json:"commission"`
	Tax              string `json:"tax"`
	GrossReceiptsTax string `json:"gross_receipts_tax"`
	NetPrice         string `json:"net_price"`
	Margin           string `json:"margin"`

	Product     string `json:"product,omitempty"`
	BuyerName   string `json:"buyer_name,omitempty"`
	TrackingURL string `json:"tracking_url,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type SalePreviewResponse struct {
	PriceAfterDiscount string `json:"price_after_discount"`
	Commission         string `json:"commission"`
	Tax                string `json:"tax"`
	GrossReceiptsTax   string `json:"gross_receipts_tax"`
	NetPrice           string `json:"net_price"`
	Margin             string `json:"margin"`
	MarginOverGross    string `json:"margin_over_gross"`
	MarginOverCost     string `json:"margin_over_cost"`
}

// =============================================================================
// EXPENSE / INCOME ENTRIES
// =============================================================================

type EntryRequest struct {
	Date        string `json:"date"`
	Channel     string `json:"channel,omitempty"`
	Kind        string `json:"kind"`
	Category    string `json:"category,omitempty"`
	Amount      string `json:"amount"`
	Personal    bool   `json:"personal,omitempty"`
	Description string `json:"description,omitempty"`
}

type EntryDTO struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Channel     string `json:"channel"`
	Kind        string `json:"kind"`
	Category    string `json:"category,omitempty"`
	Amount      string `json:"amount"`
	Personal    bool   `json:"personal"`
	Description string `json:"description,omitempty"`
}

// =============================================================================
// RATES
// =============================================================================

type RateRequest struct {
	Channel            string `json:"channel"`
	PaymentMethod      string `json:"payment_method"`
	Condition          string `json:"condition"`
	CommissionPct      string `json:"commission_pct"`
	ExtraCommissionPct string `json:"extra_commission_pct"`
	DiscountPct        string `json:"discount_pct"`
	FixedFee           string `json:"fixed_fee"`
	GrossReceiptsPct   string `json:"gross_receipts_pct"`
}

type RateDTO struct {
	ID                 string `json:"id"`
	Channel            string `json:"channel"`
	PaymentMethod      string `json:"payment_method"`
	Condition          string `json:"condition"`
	CommissionPct      string `json:"commission_pct"`
	ExtraCommissionPct string `json:"extra_commission_pct"`
	DiscountPct        string `json:"discount_pct"`
	FixedFee           string `json:"fixed_fee"`
	GrossReceiptsPct   string `json:"gross_receipts_pct"`
}

// ErrorResponse is the uniform error shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
