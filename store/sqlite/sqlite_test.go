/*
sqlite_test.go - Round-trip tests for the SQLite store

CORE DESIGN:
- Decimals are stored as TEXT; a round trip must be exact to the cent
- Missing rows map to the settlement sentinel errors
- Rates upsert on (channel, payment_method, condition)
*/
package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egidigero/storeledger/sales"
	"github.com/egidigero/storeledger/settlement"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testDate(d int) settlement.Date { return settlement.NewDate(2026, time.August, d) }

func TestSaleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sale := settlement.Sale{
		ID:               "sale-1",
		Date:             testDate(3),
		Channel:          settlement.ChannelMarketplace,
		PaymentMethod:    settlement.PayProcessor,
		GrossPrice:       settlement.MustDecimal("18500.00"),
		ShippingCost:     settlement.MustDecimal("2100.00"),
		ProductCost:      settlement.MustDecimal("7400.00"),
		Commission:       settlement.MustDecimal("2887.60"),
		Tax:              settlement.MustDecimal("417.40"),
		GrossReceiptsTax: settlement.MustDecimal("370.00"),
		NetPrice:         settlement.MustDecimal("12725.00"),
		Margin:           settlement.MustDecimal("5325.00"),
		Product:          "Wall clock",
		BuyerName:        "J. Pereyra",
		TrackingURL:      "https://tracking.example/1",
		Notes:            "gift wrap",
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
		UpdatedAt:        time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.PutSale(ctx, sale))

	got, err := s.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	assert.True(t, got.Date.Equal(sale.Date))
	assert.Equal(t, sale.Channel, got.Channel)
	assert.True(t, got.GrossPrice.Equal(sale.GrossPrice), "gross: %s", got.GrossPrice)
	assert.True(t, got.Commission.Equal(sale.Commission), "commission: %s", got.Commission)
	assert.True(t, got.NetPrice.Equal(sale.NetPrice), "net: %s", got.NetPrice)
	assert.Equal(t, "Wall clock", got.Product)
	assert.Equal(t, "gift wrap", got.Notes)
}

func TestSale_NotFoundAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSale(ctx, "missing")
	assert.ErrorIs(t, err, settlement.ErrSaleNotFound)

	require.NoError(t, s.PutSale(ctx, settlement.Sale{ID: "sale-1", Date: testDate(1)}))
	require.NoError(t, s.DeleteSale(ctx, "sale-1"))

	_, err = s.GetSale(ctx, "sale-1")
	assert.ErrorIs(t, err, settlement.ErrSaleNotFound)
	assert.ErrorIs(t, s.DeleteSale(ctx, "sale-1"), settlement.ErrSaleNotFound)
}

func TestSalesOn_FiltersByDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutSale(ctx, settlement.Sale{ID: "a", Date: testDate(3)}))
	require.NoError(t, s.PutSale(ctx, settlement.Sale{ID: "b", Date: testDate(3)}))
	require.NoError(t, s.PutSale(ctx, settlement.Sale{ID: "c", Date: testDate(4)}))

	sales3, err := s.SalesOn(ctx, testDate(3))
	require.NoError(t, err)
	assert.Len(t, sales3, 2)

	latest, ok, err := s.LatestSaleDate(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.Equal(testDate(4)))
}

func TestEntryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := settlement.Entry{
		ID:          "entry-1",
		Date:        testDate(4),
		Channel:     settlement.ChannelGeneral,
		Kind:        settlement.KindExpense,
		Category:    "packaging",
		Amount:      settlement.MustDecimal("4200.00"),
		Personal:    true,
		Description: "Boxes",
	}
	require.NoError(t, s.PutEntry(ctx, entry))

	got, err := s.GetEntry(ctx, "entry-1")
	require.NoError(t, err)
	assert.Equal(t, settlement.KindExpense, got.Kind)
	assert.True(t, got.Amount.Equal(entry.Amount))
	assert.True(t, got.Personal)
	assert.Equal(t, "packaging", got.Category)

	_, err = s.GetEntry(ctx, "missing")
	assert.ErrorIs(t, err, settlement.ErrEntryNotFound)
}

func TestLedgerDayRoundTripAndBoundaries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	opening := settlement.DayRecord{
		Date:    testDate(1),
		Opening: true,
		Processor: settlement.ProcessorRailBalances{
			Available: settlement.MustDecimal("40976132.41"),
			Pending:   settlement.MustDecimal("879742.32"),
		},
		Platform: settlement.PlatformRailBalances{
			Pending: settlement.MustDecimal("1180104.47"),
		},
		Notes: "opening",
	}
	require.NoError(t, s.PutDay(ctx, opening))
	require.NoError(t, s.PutDay(ctx, settlement.DayRecord{
		Date: testDate(5),
		Processor: settlement.ProcessorRailBalances{
			Available:    settlement.MustDecimal("40995432.41"),
			SettledToday: settlement.MustDecimal("0"),
		},
		Platform: settlement.PlatformRailBalances{
			Pending:          settlement.MustDecimal("1160104.47"),
			SettledToday:     settlement.MustDecimal("20000.00"),
			TaxWithheldToday: settlement.MustDecimal("700.00"),
		},
	}))

	got, err := s.GetDay(ctx, testDate(1))
	require.NoError(t, err)
	assert.True(t, got.Opening)
	assert.True(t, got.Processor.Available.Equal(opening.Processor.Available), "available: %s", got.Processor.Available)
	assert.Equal(t, "opening", got.Notes)

	_, err = s.GetDay(ctx, testDate(2))
	assert.ErrorIs(t, err, settlement.ErrRecordNotFound)

	prev, err := s.PreviousDay(ctx, testDate(5))
	require.NoError(t, err)
	assert.True(t, prev.Date.Equal(testDate(1)))

	_, err = s.PreviousDay(ctx, testDate(1))
	assert.ErrorIs(t, err, settlement.ErrNoPriorRecord)

	earliest, ok, err := s.EarliestDay(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, earliest.Date.Equal(testDate(1)))

	latest, ok, err := s.LatestDay(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.Date.Equal(testDate(5)))

	days, err := s.DaysInRange(ctx, testDate(1), testDate(5))
	require.NoError(t, err)
	assert.Len(t, days, 2)
}

func TestPutDay_ReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := settlement.DayRecord{
		Date: testDate(1),
		Processor: settlement.ProcessorRailBalances{
			Available: settlement.MustDecimal("100.00"),
		},
	}
	require.NoError(t, s.PutDay(ctx, rec))

	rec.Processor.Available = settlement.MustDecimal("200.00")
	require.NoError(t, s.PutDay(ctx, rec))

	got, err := s.GetDay(ctx, testDate(1))
	require.NoError(t, err)
	assert.True(t, got.Processor.Available.Equal(settlement.MustDecimal("200.00")))

	days, err := s.DaysInRange(ctx, testDate(1), testDate(1))
	require.NoError(t, err)
	assert.Len(t, days, 1, "replace must not duplicate the day")
}

func TestWatermarkLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Watermark(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "fresh store has no watermark")

	require.NoError(t, s.SetWatermark(ctx, testDate(3)))
	wm, ok, err := s.Watermark(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, wm.Equal(testDate(3)))

	require.NoError(t, s.ClearWatermark(ctx))
	_, ok, err = s.Watermark(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := sales.RateKey{
		Channel:       settlement.ChannelStorefront,
		PaymentMethod: settlement.PayPlatform,
		Condition:     "standard",
	}
	require.NoError(t, s.PutRate(ctx, sales.Rate{
		ID: "r1", Key: key,
		CommissionPct:    settlement.MustDecimal("0.037"),
		GrossReceiptsPct: settlement.MustDecimal("0.03"),
	}))
	require.NoError(t, s.PutRate(ctx, sales.Rate{
		ID: "r2", Key: key,
		CommissionPct:    settlement.MustDecimal("0.05"),
		GrossReceiptsPct: settlement.MustDecimal("0.03"),
	}))

	rates, err := s.ListRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 1, "same key must upsert, not insert")
	assert.True(t, rates[0].CommissionPct.Equal(settlement.MustDecimal("0.05")))
	assert.Equal(t, "r1", rates[0].ID, "original row keeps its ID")
}

func TestPutSale_GeneratesIDWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutSale(ctx, settlement.Sale{Date: testDate(1)}))
	salesOn, err := s.SalesOn(ctx, testDate(1))
	require.NoError(t, err)
	require.Len(t, salesOn, 1)
	assert.NotEmpty(t, salesOn[0].ID)
}
