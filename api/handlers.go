/*
handlers.go - HTTP API handlers for the settlement ledger

PURPOSE:
  Exposes the settlement engine via REST. Handles HTTP request/response,
  JSON serialization and status mapping, and delegates everything else to
  the settlement service and sale calculator.

ENDPOINTS:
  Ledger:
    POST /api/ledger/opening            Establish opening balance
    GET  /api/ledger/{date}             Read one day
    GET  /api/ledger?from=&to=          Read a range
    PUT  /api/ledger/{date}/settlements Record same-day settlement inputs
    POST /api/ledger/recalculate        Manual repair cascade
    GET  /api/ledger/watermark          Interrupted-cascade visibility

  Sales / Entries (CRUD, routed through the recalculation worker):
    POST /api/sales, PUT/DELETE /api/sales/{id}, POST /api/sales/preview
    POST /api/entries, PUT/DELETE /api/entries/{id}

  Rates:
    GET/POST /api/rates

ERROR HANDLING:
  - 400: Malformed input (bad dates, bad decimals, bad enums)
  - 404: Missing ledger day / sale / entry
  - 409: Opening-balance conflict, no opening balance yet
  - 422: No rate configured for the sale being priced
  - 500: Everything else

SEE ALSO:
  - dto.go: Wire shapes
  - server.go: Router setup and middleware
  - seed.go: Demo dataset loader
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/egidigero/storeledger/sales"
	"github.com/egidigero/storeledger/settlement"
	"github.com/egidigero/storeledger/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *settlement.Service
	Ledger  *settlement.Ledger
	Rates   *sales.Table
	Calc    *sales.Calculator
}

// NewHandler wires the engine on top of a sqlite store.
func NewHandler(store *sqlite.Store, svc *settlement.Service, ledger *settlement.Ledger, rates *sales.Table, calc *sales.Calculator) *Handler {
	return &Handler{Store: store, Service: svc, Ledger: ledger, Rates: rates, Calc: calc}
}

// LoadRates fills the in-memory rate table from the database. Called once
// at startup; rate writes keep the table current afterwards.
func (h *Handler) LoadRates(ctx context.Context) error {
	rates, err := h.Store.ListRates(ctx)
	if err != nil {
		return fmt.Errorf("loading rates: %w", err)
	}
	for _, r := range rates {
		h.Rates.Put(r)
	}
	return nil
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// EstablishOpening handles POST /api/ledger/opening.
func (h *Handler) EstablishOpening(w http.ResponseWriter, r *http.Request) {
	var req OpeningBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := settlement.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	var procAvailable, procPending, platPending decimal.Decimal
	if err := parseMoney(map[string]moneyTarget{
		"processor_available": {req.ProcessorAvailable, &procAvailable},
		"processor_pending":   {req.ProcessorPending, &procPending},
		"platform_pending":    {req.PlatformPending, &platPending},
	}); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	if err := h.Service.EstablishOpeningBalance(r.Context(), date, procAvailable, procPending, platPending); err != nil {
		writeError(w, statusFor(err), "Could not establish opening balance", err)
		return
	}

	rec, err := h.Ledger.Read(r.Context(), date)
	if err != nil {
		writeError(w, statusFor(err), "Could not read opening record", err)
		return
	}
	writeJSON(w, http.StatusCreated, dayDTO(rec))
}

// GetLedgerDay handles GET /api/ledger/{date}.
func (h *Handler) GetLedgerDay(w http.ResponseWriter, r *http.Request) {
	date, err := settlement.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	rec, err := h.Ledger.Read(r.Context(), date)
	if err != nil {
		writeError(w, statusFor(err), "Ledger day not found", err)
		return
	}
	writeJSON(w, http.StatusOK, dayDTO(rec))
}

// ListLedgerRange handles GET /api/ledger?from=&to=.
func (h *Handler) ListLedgerRange(w http.ResponseWriter, r *http.Request) {
	from, err := settlement.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'from' date", err)
		return
	}
	to, err := settlement.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'to' date", err)
		return
	}

	recs, err := h.Ledger.Range(r.Context(), from, to)
	if err != nil {
		writeError(w, statusFor(err), "Could not read ledger range", err)
		return
	}
	out := make([]LedgerDayDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, dayDTO(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// ApplySettlementInputs handles PUT /api/ledger/{date}/settlements.
func (h *Handler) ApplySettlementInputs(w http.ResponseWriter, r *http.Request) {
	date, err := settlement.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	var req SettlementInputsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var procSettled, platSettled, taxWithheld decimal.Decimal
	if err := parseMoney(map[string]moneyTarget{
		"processor_settled_today":     {req.ProcessorSettledToday, &procSettled},
		"platform_settled_today":      {req.PlatformSettledToday, &platSettled},
		"platform_tax_withheld_today": {req.PlatformTaxWithheldToday, &taxWithheld},
	}); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	rec, err := h.Service.ApplySameDayInputs(r.Context(), date, settlement.SameDayInputs{
		ProcessorSettled: procSettled,
		PlatformSettled:  platSettled,
		TaxWithheld:      taxWithheld,
		Notes:            req.Notes,
	})
	if err != nil {
		writeError(w, statusFor(err), "Could not record settlement inputs", err)
		return
	}
	writeJSON(w, http.StatusOK, dayDTO(rec))
}

// Recalculate handles POST /api/ledger/recalculate.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	var req RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := settlement.ParseDate(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'from' date", err)
		return
	}
	if err := h.Service.RecalculateFrom(r.Context(), from); err != nil {
		writeError(w, statusFor(err), "Recalculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "from": from.String()})
}

// GetWatermark handles GET /api/ledger/watermark.
func (h *Handler) GetWatermark(w http.ResponseWriter, r *http.Request) {
	wm, ok, err := h.Store.Watermark(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not read watermark", err)
		return
	}
	dto := WatermarkDTO{Pending: ok}
	if ok {
		dto.Watermark = wm.String()
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// CreateSale handles POST /api/sales. The sale is priced, persisted and the
// ledger recalculated before the response is written.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	sale, status, err := h.saleFromRequest(r, uuid.NewString())
	if err != nil {
		writeError(w, status, "Could not price sale", err)
		return
	}
	if err := h.Service.CreateSale(r.Context(), sale); err != nil {
		writeError(w, statusFor(err), "Could not create sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, saleDTO(sale))
}

// UpdateSale handles PUT /api/sales/{id}. The sale is re-priced from the
// request; cosmetic-only edits skip ledger recalculation.
func (h *Handler) UpdateSale(w http.ResponseWriter, r *http.Request) {
	sale, status, err := h.saleFromRequest(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, status, "Could not price sale", err)
		return
	}
	if err := h.Service.UpdateSale(r.Context(), sale); err != nil {
		writeError(w, statusFor(err), "Could not update sale", err)
		return
	}
	writeJSON(w, http.StatusOK, saleDTO(sale))
}

// DeleteSale handles DELETE /api/sales/{id}.
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteSale(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), "Could not delete sale", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewSale handles POST /api/sales/preview. Prices a sale without
// persisting anything; the UI uses this for live margin display.
func (h *Handler) PreviewSale(w http.ResponseWriter, r *http.Request) {
	in, _, status, err := h.calcInputFromRequest(r)
	if err != nil {
		writeError(w, status, "Could not price sale", err)
		return
	}
	comp, err := h.Calc.Compute(r.Context(), in)
	if err != nil {
		writeError(w, statusFor(err), "Could not price sale", err)
		return
	}
	writeJSON(w, http.StatusOK, SalePreviewResponse{
		PriceAfterDiscount: comp.PriceAfterDiscount.StringFixed(2),
		Commission:         comp.Commission.StringFixed(2),
		Tax:                comp.Tax.StringFixed(2),
		GrossReceiptsTax:   comp.GrossReceiptsTax.StringFixed(2),
		NetPrice:           comp.NetPrice.StringFixed(2),
		Margin:             comp.Margin.StringFixed(2),
		MarginOverGross:    comp.MarginOverGross.String(),
		MarginOverCost:     comp.MarginOverCost.String(),
	})
}

// saleFromRequest decodes, validates and prices a sale request.
func (h *Handler) saleFromRequest(r *http.Request, id string) (settlement.Sale, int, error) {
	in, req, status, err := h.calcInputFromRequest(r)
	if err != nil {
		return settlement.Sale{}, status, err
	}
	date, err := settlement.ParseDate(req.Date)
	if err != nil {
		return settlement.Sale{}, http.StatusBadRequest, err
	}

	comp, err := h.Calc.Compute(r.Context(), in)
	if err != nil {
		return settlement.Sale{}, statusFor(err), err
	}

	return settlement.Sale{
		ID:            id,
		Date:          date,
		Channel:       in.Channel,
		PaymentMethod: in.PaymentMethod,

		GrossPrice:       settlement.Round2(in.GrossPrice),
		ShippingCost:     settlement.Round2(in.ShippingCost),
		ProductCost:      settlement.Round2(in.ProductCost),
		Commission:       comp.Commission,
		Tax:              comp.Tax,
		GrossReceiptsTax: comp.GrossReceiptsTax,
		NetPrice:         comp.NetPrice,
		Margin:           comp.Margin,

		Product:     req.Product,
		BuyerName:   req.BuyerName,
		TrackingURL: req.TrackingURL,
		Notes:       req.Notes,
	}, 0, nil
}

// calcInputFromRequest decodes a SaleRequest into calculator input.
func (h *Handler) calcInputFromRequest(r *http.Request) (sales.Input, SaleRequest, int, error) {
	var req SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return sales.Input{}, req, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)
	}

	channel := settlement.Channel(req.Channel)
	if !channel.Valid() || channel == settlement.ChannelGeneral {
		return sales.Input{}, req, http.StatusBadRequest, fmt.Errorf("invalid channel %q", req.Channel)
	}

	var gross, shipping, cost decimal.Decimal
	if err := parseMoney(map[string]moneyTarget{
		"gross_price":   {req.GrossPrice, &gross},
		"shipping_cost": {req.ShippingCost, &shipping},
		"product_cost":  {req.ProductCost, &cost},
	}); err != nil {
		return sales.Input{}, req, http.StatusBadRequest, err
	}

	manualCommission, err := parseOptionalMoney("manual_commission", req.ManualCommission)
	if err != nil {
		return sales.Input{}, req, http.StatusBadRequest, err
	}
	manualExtra, err := parseOptionalMoney("manual_extra_commission", req.ManualExtraCommission)
	if err != nil {
		return sales.Input{}, req, http.StatusBadRequest, err
	}
	manualIIBB, err := parseOptionalMoney("manual_gross_receipts", req.ManualGrossReceipts)
	if err != nil {
		return sales.Input{}, req, http.StatusBadRequest, err
	}

	return sales.Input{
		GrossPrice:    gross,
		ShippingCost:  shipping,
		ProductCost:   cost,
		Channel:       channel,
		PaymentMethod: settlement.PaymentMethod(req.PaymentMethod),
		Condition:     req.Condition,

		ManualCommission:      manualCommission,
		ManualExtraCommission: manualExtra,
		ManualGrossReceipts:   manualIIBB,
	}, req, 0, nil
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// CreateEntry handles POST /api/entries.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := entryFromRequest(r, uuid.NewString())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry", err)
		return
	}
	if err := h.Service.CreateEntry(r.Context(), entry); err != nil {
		writeError(w, statusFor(err), "Could not create entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, entryDTO(entry))
}

// UpdateEntry handles PUT /api/entries/{id}.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := entryFromRequest(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry", err)
		return
	}
	if err := h.Service.UpdateEntry(r.Context(), entry); err != nil {
		writeError(w, statusFor(err), "Could not update entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entryDTO(entry))
}

// DeleteEntry handles DELETE /api/entries/{id}.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), "Could not delete entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func entryFromRequest(r *http.Request, id string) (settlement.Entry, error) {
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return settlement.Entry{}, fmt.Errorf("invalid request body: %w", err)
	}

	date, err := settlement.ParseDate(req.Date)
	if err != nil {
		return settlement.Entry{}, err
	}
	kind := settlement.EntryKind(req.Kind)
	if kind != settlement.KindExpense && kind != settlement.KindIncome {
		return settlement.Entry{}, fmt.Errorf("invalid kind %q (use expense or income)", req.Kind)
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return settlement.Entry{}, fmt.Errorf("invalid amount %q: %w", req.Amount, err)
	}
	channel := settlement.Channel(req.Channel)
	if req.Channel == "" {
		channel = settlement.ChannelGeneral
	} else if !channel.Valid() {
		return settlement.Entry{}, fmt.Errorf("invalid channel %q", req.Channel)
	}

	return settlement.Entry{
		ID:          id,
		Date:        date,
		Channel:     channel,
		Kind:        kind,
		Category:    req.Category,
		Amount:      settlement.Round2(amount),
		Personal:    req.Personal,
		Description: req.Description,
	}, nil
}

// =============================================================================
// RATE HANDLERS
// =============================================================================

// ListRates handles GET /api/rates.
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Store.ListRates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not list rates", err)
		return
	}
	out := make([]RateDTO, 0, len(rates))
	for _, rate := range rates {
		out = append(out, rateDTO(rate))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateRate handles POST /api/rates. Upserts by (channel, method, condition)
// and refreshes the in-memory resolver so the next sale prices with it.
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	channel := settlement.Channel(req.Channel)
	if !channel.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid channel", fmt.Errorf("invalid channel %q", req.Channel))
		return
	}

	var commission, extra, discount, fixed, iibb decimal.Decimal
	if err := parseMoney(map[string]moneyTarget{
		"commission_pct":       {req.CommissionPct, &commission},
		"extra_commission_pct": {req.ExtraCommissionPct, &extra},
		"discount_pct":         {req.DiscountPct, &discount},
		"fixed_fee":            {req.FixedFee, &fixed},
		"gross_receipts_pct":   {req.GrossReceiptsPct, &iibb},
	}); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate value", err)
		return
	}

	rate := sales.Rate{
		ID: uuid.NewString(),
		Key: sales.RateKey{
			Channel:       channel,
			PaymentMethod: settlement.PaymentMethod(req.PaymentMethod),
			Condition:     req.Condition,
		},
		CommissionPct:      commission,
		ExtraCommissionPct: extra,
		DiscountPct:        discount,
		FixedFee:           fixed,
		GrossReceiptsPct:   iibb,
	}
	if err := h.Store.PutRate(r.Context(), rate); err != nil {
		writeError(w, http.StatusInternalServerError, "Could not store rate", err)
		return
	}
	h.Rates.Put(rate)
	writeJSON(w, http.StatusCreated, rateDTO(rate))
}

// =============================================================================
// DTO CONVERSION
// =============================================================================

func dayDTO(rec settlement.DayRecord) LedgerDayDTO {
	return LedgerDayDTO{
		Date: rec.Date.String(),

		ProcessorAvailable:    rec.Processor.Available.StringFixed(2),
		ProcessorPending:      rec.Processor.Pending.StringFixed(2),
		ProcessorSettledToday: rec.Processor.SettledToday.StringFixed(2),

		PlatformPending:          rec.Platform.Pending.StringFixed(2),
		PlatformSettledToday:     rec.Platform.SettledToday.StringFixed(2),
		PlatformTaxWithheldToday: rec.Platform.TaxWithheldToday.StringFixed(2),

		Notes:     rec.Notes,
		Opening:   rec.Opening,
		UpdatedAt: rec.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func saleDTO(s settlement.Sale) SaleDTO {
	return SaleDTO{
		ID:            s.ID,
		Date:          s.Date.String(),
		Channel:       string(s.Channel),
		PaymentMethod: string(s.PaymentMethod),

		GrossPrice:       s.GrossPrice.StringFixed(2),
		ShippingCost:     s.ShippingCost.StringFixed(2),
		ProductCost:      s.ProductCost.StringFixed(2),
		Commission:       s.Commission.StringFixed(2),
		Tax:              s.Tax.StringFixed(2),
		GrossReceiptsTax: s.GrossReceiptsTax.StringFixed(2),
		NetPrice:         s.NetPrice.StringFixed(2),
		Margin:           s.Margin.StringFixed(2),

		Product:     s.Product,
		BuyerName:   s.BuyerName,
		TrackingURL: s.TrackingURL,
		Notes:       s.Notes,
	}
}

func entryDTO(e settlement.Entry) EntryDTO {
	return EntryDTO{
		ID:          e.ID,
		Date:        e.Date.String(),
		Channel:     string(e.Channel),
		Kind:        string(e.Kind),
		Category:    e.Category,
		Amount:      e.Amount.StringFixed(2),
		Personal:    e.Personal,
		Description: e.Description,
	}
}

func rateDTO(r sales.Rate) RateDTO {
	return RateDTO{
		ID:                 r.ID,
		Channel:            string(r.Key.Channel),
		PaymentMethod:      string(r.Key.PaymentMethod),
		Condition:          r.Key.Condition,
		CommissionPct:      r.CommissionPct.String(),
		ExtraCommissionPct: r.ExtraCommissionPct.String(),
		DiscountPct:        r.DiscountPct.String(),
		FixedFee:           r.FixedFee.StringFixed(2),
		GrossReceiptsPct:   r.GrossReceiptsPct.String(),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

type moneyTarget struct {
	raw string
	dst *decimal.Decimal
}

// parseMoney parses a batch of decimal fields; empty strings parse as zero.
func parseMoney(fields map[string]moneyTarget) error {
	for name, f := range fields {
		if f.raw == "" {
			*f.dst = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

func parseOptionalMoney(name string, raw *string) (*decimal.Decimal, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, *raw, err)
	}
	return &d, nil
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, settlement.ErrRateNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, settlement.ErrOpeningConflict),
		errors.Is(err, settlement.ErrNoPriorRecord):
		return http.StatusConflict
	case settlement.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
