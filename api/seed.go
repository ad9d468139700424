/*
seed.go - Demo dataset loader for testing and demonstrations

PURPOSE:

	Populates the database with a realistic week of trading: an opening
	balance, default rates for every channel, a handful of sales across
	both rails, business and personal expenses, and one settlement event.
	Gives the dashboard something to show on a fresh install.

HOW SEEDING WORKS:
 1. Establish the opening balance (fails on a non-empty ledger)
 2. Upsert default commission rates and refresh the resolver
 3. Create sales and entries through the service, so every write runs
    the same pricing and cascade path as a real API call
 4. Record one same-day settlement event

NOTE:

	Seeding does NOT reset the database. It refuses to run when an
	opening balance already exists. Only use in development/demo
	environments.

SEE ALSO:
  - server.go: POST /api/seed
  - handlers.go: The handlers the seeded data shows up in
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/egidigero/storeledger/sales"
	"github.com/egidigero/storeledger/settlement"
)

// =============================================================================
// SEED HANDLER
// =============================================================================

// Seed handles POST /api/seed.
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	if err := h.loadDemoData(r.Context()); err != nil {
		if errors.Is(err, settlement.ErrOpeningConflict) {
			writeError(w, http.StatusConflict, "Ledger already has data", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not seed demo data", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "seeded"})
}

// =============================================================================
// DEMO DATASET
// =============================================================================

func (h *Handler) loadDemoData(ctx context.Context) error {
	opening := settlement.NewDate(2026, 8, 1)

	if err := h.Service.EstablishOpeningBalance(ctx, opening,
		settlement.MustDecimal("150000.00"), // processor available
		settlement.MustDecimal("42000.00"),  // processor pending
		settlement.MustDecimal("25000.00"),  // platform pending
	); err != nil {
		return err
	}

	if err := h.seedRates(ctx); err != nil {
		return err
	}

	d := func(s string) decimal.Decimal { return settlement.MustDecimal(s) }
	ptr := func(s string) *decimal.Decimal { v := settlement.MustDecimal(s); return &v }

	// A storefront sale paid through the platform: lands on the platform
	// rail only.
	if err := h.createSeedSale(ctx, sales.Input{
		GrossPrice:    d("25000.00"),
		ShippingCost:  d("1800.00"),
		ProductCost:   d("9000.00"),
		Channel:       settlement.ChannelStorefront,
		PaymentMethod: settlement.PayPlatform,
		Condition:     "standard",
	}, opening.AddDays(1), "Desk lamp", "M. Alvarez"); err != nil {
		return err
	}

	// A marketplace sale: processor rail, commission reported tax-inclusive.
	if err := h.createSeedSale(ctx, sales.Input{
		GrossPrice:          d("18500.00"),
		ShippingCost:        d("2100.00"),
		ProductCost:         d("7400.00"),
		Channel:             settlement.ChannelMarketplace,
		PaymentMethod:       settlement.PayProcessor,
		Condition:           "standard",
		ManualGrossReceipts: ptr("370.00"),
	}, opening.AddDays(2), "Wall clock", "J. Pereyra"); err != nil {
		return err
	}

	// A storefront sale paid through the processor checkout: both rails.
	if err := h.createSeedSale(ctx, sales.Input{
		GrossPrice:          d("32000.00"),
		ShippingCost:        d("2500.00"),
		ProductCost:         d("12800.00"),
		Channel:             settlement.ChannelStorefront,
		PaymentMethod:       settlement.PayProcessor,
		Condition:           "standard",
		ManualGrossReceipts: ptr("640.00"),
	}, opening.AddDays(3), "Bookshelf", "L. Gomez"); err != nil {
		return err
	}

	// Expenses: one business, one personal. Both drain the processor rail.
	entries := []settlement.Entry{
		{
			ID:          uuid.NewString(),
			Date:        opening.AddDays(2),
			Kind:        settlement.KindExpense,
			Category:    "packaging",
			Amount:      d("4200.00"),
			Description: "Boxes and bubble wrap",
		},
		{
			ID:          uuid.NewString(),
			Date:        opening.AddDays(3),
			Kind:        settlement.KindExpense,
			Category:    "personal",
			Amount:      d("10000.00"),
			Personal:    true,
			Description: "Owner withdrawal",
		},
		{
			ID:          uuid.NewString(),
			Date:        opening.AddDays(4),
			Kind:        settlement.KindIncome,
			Category:    "services",
			Amount:      d("6000.00"),
			Description: "Assembly service fee",
		},
	}
	for _, e := range entries {
		if err := h.Service.CreateEntry(ctx, e); err != nil {
			return fmt.Errorf("seeding entry %s: %w", e.Description, err)
		}
	}

	// One settlement event: the platform transfers part of its pending
	// balance, net of withheld tax.
	notes := "Weekly platform transfer"
	if _, err := h.Service.ApplySameDayInputs(ctx, opening.AddDays(5), settlement.SameDayInputs{
		PlatformSettled: d("20000.00"),
		TaxWithheld:     d("700.00"),
		Notes:           &notes,
	}); err != nil {
		return fmt.Errorf("seeding settlement event: %w", err)
	}

	return nil
}

func (h *Handler) seedRates(ctx context.Context) error {
	d := settlement.MustDecimal
	defaults := []sales.Rate{
		{
			ID:               uuid.NewString(),
			Key:              sales.RateKey{Channel: settlement.ChannelStorefront, PaymentMethod: settlement.PayPlatform, Condition: "standard"},
			CommissionPct:    d("0.037"),
			FixedFee:         d("0.00"),
			GrossReceiptsPct: d("0.03"),
		},
		{
			ID:                 uuid.NewString(),
			Key:                sales.RateKey{Channel: settlement.ChannelStorefront, PaymentMethod: settlement.PayProcessor, Condition: "standard"},
			CommissionPct:      d("0.037"),
			ExtraCommissionPct: d("0.0639"),
			FixedFee:           d("0.00"),
		},
		{
			ID:            uuid.NewString(),
			Key:           sales.RateKey{Channel: settlement.ChannelMarketplace, PaymentMethod: settlement.PayProcessor, Condition: "standard"},
			CommissionPct: d("0.13"),
			FixedFee:      d("900.00"),
		},
		{
			ID:            uuid.NewString(),
			Key:           sales.RateKey{Channel: settlement.ChannelDirect, PaymentMethod: settlement.PayCash, Condition: "standard"},
			CommissionPct: d("0.00"),
		},
	}
	for _, rate := range defaults {
		if err := h.Store.PutRate(ctx, rate); err != nil {
			return fmt.Errorf("seeding rate %s/%s: %w", rate.Key.Channel, rate.Key.PaymentMethod, err)
		}
		h.Rates.Put(rate)
	}
	return nil
}

func (h *Handler) createSeedSale(ctx context.Context, in sales.Input, date settlement.Date, product, buyer string) error {
	comp, err := h.Calc.Compute(ctx, in)
	if err != nil {
		return fmt.Errorf("pricing seed sale %s: %w", product, err)
	}
	sale := settlement.Sale{
		ID:            uuid.NewString(),
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

		Product:   product,
		BuyerName: buyer,
	}
	if err := h.Service.CreateSale(ctx, sale); err != nil {
		return fmt.Errorf("seeding sale %s: %w", product, err)
	}
	return nil
}
