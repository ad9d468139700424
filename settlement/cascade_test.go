/*
cascade_test.go - Tests for forward recalculation

CORE DESIGN:
- The opening record is ground truth and is never rewritten
- A day with no activity carries the previous day's balances forward
- Any input change re-derives every day from the edit date onward
- Reruns with unchanged data are byte-for-byte idempotent
- An interrupted run resumes from the persisted watermark
*/
package settlement_test

import (
	"context"
	"testing"

	"github.com/egidigero/storeledger/settlement"
	"github.com/egidigero/storeledger/settlement/store"
)

// newFixture establishes an opening balance on 2026-08-01 with large,
// realistic running balances and returns the wired engine parts.
func newFixture(t *testing.T) (*store.Memory, *settlement.Ledger, *settlement.Recalculator) {
	t.Helper()
	mem := store.NewMemory()
	ledger := settlement.NewLedger(mem)
	err := ledger.EstablishOpeningBalance(context.Background(), date(2026, 8, 1),
		settlement.MustDecimal("40976132.41"),
		settlement.MustDecimal("879742.32"),
		settlement.MustDecimal("1180104.47"),
	)
	if err != nil {
		t.Fatalf("EstablishOpeningBalance: %v", err)
	}
	recalc := settlement.NewRecalculator(mem, mem, mem, settlement.DefaultTaxConfig())
	return mem, ledger, recalc
}

func mustDay(t *testing.T, ledger *settlement.Ledger, d settlement.Date) settlement.DayRecord {
	t.Helper()
	rec, err := ledger.Read(context.Background(), d)
	if err != nil {
		t.Fatalf("Read %s: %v", d, err)
	}
	return rec
}

func TestCascade_QuietDaysCarryBalancesForward(t *testing.T) {
	// GIVEN: An opening balance and three following days with no activity
	// WHEN: Recalculating across them
	// THEN: Every day repeats the opening balances exactly

	mem, ledger, recalc := newFixture(t)
	ctx := context.Background()

	// A gap-day record far out forces the cascade to cover the range.
	if _, err := ledger.GetOrCreate(ctx, date(2026, 8, 4)); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := recalc.RecalculateFrom(ctx, date(2026, 8, 2)); err != nil {
		t.Fatalf("RecalculateFrom: %v", err)
	}

	opening := mustDay(t, ledger, date(2026, 8, 1))
	for dayNum := 2; dayNum <= 4; dayNum++ {
		rec := mustDay(t, ledger, date(2026, 8, dayNum))
		if !rec.Processor.Available.Equal(opening.Processor.Available) {
			t.Errorf("day %d available = %s, want %s", dayNum, rec.Processor.Available, opening.Processor.Available)
		}
		if !rec.Processor.Pending.Equal(opening.Processor.Pending) {
			t.Errorf("day %d processor pending = %s, want %s", dayNum, rec.Processor.Pending, opening.Processor.Pending)
		}
		if !rec.Platform.Pending.Equal(opening.Platform.Pending) {
			t.Errorf("day %d platform pending = %s, want %s", dayNum, rec.Platform.Pending, opening.Platform.Pending)
		}
	}

	if wm, ok, _ := mem.Watermark(ctx); ok {
		t.Errorf("watermark not cleared after successful run: %s", wm)
	}
}

func TestCascade_SaleRipplesThroughLaterDays(t *testing.T) {
	// GIVEN: A storefront platform-paid sale on Aug 3 (contribution 23853)
	// WHEN: Recalculating from the sale date
	// THEN: Platform pending rises by 23853 on Aug 3 and stays risen after

	mem, ledger, recalc := newFixture(t)
	ctx := context.Background()

	seedSale(t, mem, settlement.Sale{
		ID:            "s1",
		Date:          date(2026, 8, 3),
		Channel:       settlement.ChannelStorefront,
		PaymentMethod: settlement.PayPlatform,
		GrossPrice:    settlement.MustDecimal("25000.00"),
		Commission:    settlement.MustDecimal("925.00"),
	})
	if _, err := ledger.GetOrCreate(ctx, date(2026, 8, 5)); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := recalc.RecalculateFrom(ctx, date(2026, 8, 3)); err != nil {
		t.Fatalf("RecalculateFrom: %v", err)
	}

	want := settlement.MustDecimal("1203957.47") // 1180104.47 + 23853
	for dayNum := 3; dayNum <= 5; dayNum++ {
		rec := mustDay(t, ledger, date(2026, 8, dayNum))
		if !rec.Platform.Pending.Equal(want) {
			t.Errorf("day %d platform pending = %s, want %s", dayNum, rec.Platform.Pending, want)
		}
	}
	// The day before the sale is untouched.
	before := mustDay(t, ledger, date(2026, 8, 1))
	if !before.Platform.Pending.Equal(settlement.MustDecimal("1180104.47")) {
		t.Errorf("opening platform pending changed: %s", before.Platform.Pending)
	}
}

func TestCascade_DeletedExpenseRestoresAvailable(t *testing.T) {
	// GIVEN: A 10000 expense on Aug 4 already cascaded into the ledger
	// WHEN: The expense is deleted and the cascade reruns from Aug 4
	// THEN: Available on Aug 4 and later returns to the pre-expense value

	mem, ledger, recalc := newFixture(t)
	ctx := context.Background()

	seedEntry(t, mem, settlement.Entry{
		ID:       "e1",
		Date:     date(2026, 8, 4),
		Kind:     settlement.KindExpense,
		Category: "shipping_supplies",
		Amount:   settlement.MustDecimal("10000.00"),
	})
	if _, err := ledger.GetOrCreate(ctx, date(2026, 8, 6)); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := recalc.RecalculateFrom(ctx, date(2026, 8, 4)); err != nil {
		t.Fatalf("RecalculateFrom: %v", err)
	}

	reduced := settlement.MustDecimal("40966132.41")
	if rec := mustDay(t, ledger, date(2026, 8, 6)); !rec.Processor.Available.Equal(reduced) {
		t.Fatalf("available with expense = %s, want %s", rec.Processor.Available, reduced)
	}

	if err := mem.DeleteEntry(ctx, "e1"); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if err := recalc.RecalculateFrom(ctx, date(2026, 8, 4)); err != nil {
		t.Fatalf("RecalculateFrom after delete: %v", err)
	}

	restored := settlement.MustDecimal("40976132.41")
	for dayNum := 4; dayNum <= 6; dayNum++ {
		rec := mustDay(t, ledger, date(2026, 8, dayNum))
		if !rec.Processor.Available.Equal(restored) {
			t.Errorf("day %d available = %s, want %s", dayNum, rec.Processor.Available, restored)
		}
	}
}

func TestCascade_SettlementInputsMoveMoneyBetweenRails(t *testing.T) {
	// GIVEN: Platform pending of 1180104.47 and a settlement event on Aug 5:
	//        platform settled 20000, tax withheld 700
	// WHEN: Recalculating from Aug 5
	// THEN: Platform pending drops by 20000 and available rises by 19300

	_, ledger, recalc := newFixture(t)
	ctx := context.Background()

	if _, err := ledger.ApplySameDayInputs(ctx, date(2026, 8, 5), settlement.SameDayInputs{
		PlatformSettled: settlement.MustDecimal("20000.00"),
		TaxWithheld:     settlement.MustDecimal("700.00"),
	}); err != nil {
		t.Fatalf("ApplySameDayInputs: %v", err)
	}
	if err := recalc.RecalculateFrom(ctx, date(2026, 8, 5)); err != nil {
		t.Fatalf("RecalculateFrom: %v", err)
	}

	rec := mustDay(t, ledger, date(2026, 8, 5))
	if want := settlement.MustDecimal("1160104.47"); !rec.Platform.Pending.Equal(want) {
		t.Errorf("platform pending = %s, want %s", rec.Platform.Pending, want)
	}
	if want := settlement.MustDecimal("40995432.41"); !rec.Processor.Available.Equal(want) {
		t.Errorf("available = %s, want %s", rec.Processor.Available, want)
	}
	// Same-day inputs survive the re-derivation.
	if !rec.Platform.SettledToday.Equal(settlement.MustDecimal("20000.00")) {
		t.Errorf("settled today lost: %s", rec.Platform.SettledToday)
	}
}

func TestCascade_Idempotent(t *testing.T) {
	// GIVEN: A ledger with mixed activity, fully recalculated
	// WHEN: Running the cascade again with no data change
	// THEN: Every record is identical

	mem, ledger, recalc := newFixture(t)
	ctx := context.Background()

	seedSale(t, mem, settlement.Sale{
		ID: "s1", Date: date(2026, 8, 2),
		Channel: settlement.ChannelMarketplace, PaymentMethod: settlement.PayProcessor,
		GrossPrice: settlement.MustDecimal("18500.00"), ShippingCost: settlement.MustDecimal("2100.00"),
		Commission: settlement.MustDecimal("2000.00"), Tax: settlement.MustDecimal("420.00"),
		GrossReceiptsTax: settlement.MustDecimal("370.00"),
	})
	seedEntry(t, mem, settlement.Entry{
		ID: "e1", Date: date(2026, 8, 3), Kind: settlement.KindExpense,
		Category: "ads", Amount: settlement.MustDecimal("1500.00"),
	})

	if err := recalc.RecalculateFrom(ctx, date(2026, 8, 2)); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := ledger.Range(ctx, date(2026, 8, 1), date(2026, 8, 10))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}

	if err := recalc.RecalculateFrom(ctx, date(2026, 8, 2)); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, err := ledger.Range(ctx, date(2026, 8, 1), date(2026, 8, 10))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("record count changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Errorf("day %s changed on rerun:\n  first:  %+v\n  second: %+v", first[i].Date, first[i], second[i])
		}
	}
}

func TestCascade_NeverRewritesOpeningRecord(t *testing.T) {
	// GIVEN: A cascade whose start date lies before the opening record
	// WHEN: Recalculating
	// THEN: The run clamps to the day after the opening; the opening is untouched

	mem, ledger, recalc := newFixture(t)
	ctx := context.Background()

	// A sale ON the opening date must not alter the opening balances.
	seedSale(t, mem, settlement.Sale{
		ID: "s1", Date: date(2026, 8, 1),
		Channel: settlement.ChannelStorefront, PaymentMethod: settlement.PayPlatform,
		GrossPrice: settlement.MustDecimal("25000.00"), Commission: settlement.MustDecimal("925.00"),
	})

	if err := recalc.RecalculateFrom(ctx, date(2026, 7, 15)); err != nil {
		t.Fatalf("RecalculateFrom: %v", err)
	}

	opening := mustDay(t, ledger, date(2026, 8, 1))
	if !opening.Opening {
		t.Error("opening flag lost")
	}
	if !opening.Platform.Pending.Equal(settlement.MustDecimal("1180104.47")) {
		t.Errorf("opening platform pending rewritten: %s", opening.Platform.Pending)
	}
}

func TestCascade_ExtendsToLatestInputDate(t *testing.T) {
	// GIVEN: A sale dated past the last ledger record
	// WHEN: Recalculating
	// THEN: Ledger days are synthesized through the sale date

	mem, ledger, recalc := newFixture(t)
	ctx := context.Background()

	seedSale(t, mem, settlement.Sale{
		ID: "s1", Date: date(2026, 8, 9),
		Channel: settlement.ChannelStorefront, PaymentMethod: settlement.PayPlatform,
		GrossPrice: settlement.MustDecimal("25000.00"), Commission: settlement.MustDecimal("925.00"),
	})

	if err := recalc.RecalculateFrom(ctx, date(2026, 8, 2)); err != nil {
		t.Fatalf("RecalculateFrom: %v", err)
	}

	rec := mustDay(t, ledger, date(2026, 8, 9))
	if want := settlement.MustDecimal("1203957.47"); !rec.Platform.Pending.Equal(want) {
		t.Errorf("platform pending = %s, want %s", rec.Platform.Pending, want)
	}
}

func TestCascade_ResumeContinuesFromWatermark(t *testing.T) {
	// GIVEN: A run that died after writing Aug 3 (watermark = Aug 3), with a
	//        sale on Aug 4 not yet reflected
	// WHEN: Resume runs
	// THEN: Aug 4 onward is recalculated and the watermark is cleared

	mem, ledger, recalc := newFixture(t)
	ctx := context.Background()

	if _, err := ledger.GetOrCreate(ctx, date(2026, 8, 5)); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	seedSale(t, mem, settlement.Sale{
		ID: "s1", Date: date(2026, 8, 4),
		Channel: settlement.ChannelStorefront, PaymentMethod: settlement.PayPlatform,
		GrossPrice: settlement.MustDecimal("25000.00"), Commission: settlement.MustDecimal("925.00"),
	})
	if err := mem.SetWatermark(ctx, date(2026, 8, 3)); err != nil {
		t.Fatalf("SetWatermark: %v", err)
	}

	if err := recalc.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	rec := mustDay(t, ledger, date(2026, 8, 5))
	if want := settlement.MustDecimal("1203957.47"); !rec.Platform.Pending.Equal(want) {
		t.Errorf("platform pending after resume = %s, want %s", rec.Platform.Pending, want)
	}
	if wm, ok, _ := mem.Watermark(ctx); ok {
		t.Errorf("watermark not cleared: %s", wm)
	}
}

func TestCascade_ResumeNoopWithoutWatermark(t *testing.T) {
	// GIVEN: No persisted watermark
	// WHEN: Resume runs
	// THEN: Nothing happens and no error is returned

	_, _, recalc := newFixture(t)
	if err := recalc.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
}

func TestCascade_EmptyLedgerFails(t *testing.T) {
	// GIVEN: No opening balance at all
	// WHEN: Recalculating
	// THEN: ErrNoPriorRecord

	mem := store.NewMemory()
	recalc := settlement.NewRecalculator(mem, mem, mem, settlement.DefaultTaxConfig())
	err := recalc.RecalculateFrom(context.Background(), date(2026, 8, 1))
	if err == nil {
		t.Fatal("expected error on empty ledger")
	}
}
