/*
calculator_test.go - Tests for sale pricing and tax decomposition

CORE DESIGN:
- Stored commission is ALWAYS tax-exclusive plus the fixed fee
- Each channel decomposes reported commission differently (additive,
  inclusive, split)
- Manual overrides apply only when positive
- Every monetary output is rounded to cents at the point of computation
*/
package sales

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/egidigero/storeledger/settlement"
)

func d(s string) decimal.Decimal { return settlement.MustDecimal(s) }

func dptr(s string) *decimal.Decimal { v := settlement.MustDecimal(s); return &v }

func storefrontPlatformRate() Rate {
	return Rate{
		ID:               "r1",
		Key:              RateKey{Channel: settlement.ChannelStorefront, PaymentMethod: settlement.PayPlatform, Condition: "standard"},
		CommissionPct:    d("0.037"),
		GrossReceiptsPct: d("0.03"),
	}
}

func TestCompute_StorefrontPlatform_AdditiveTax(t *testing.T) {
	// GIVEN: Storefront sale gross 25000, commission 3.7%, IIBB 3%, VAT 21%
	// WHEN: Pricing
	// THEN: commission 925 (tax-exclusive), tax 194.25 added on top,
	//       IIBB 27.75, net deducts shipping

	calc := NewCalculator(NewTable(storefrontPlatformRate()), settlement.DefaultTaxConfig())
	comp, err := calc.Compute(context.Background(), Input{
		GrossPrice:    d("25000.00"),
		ShippingCost:  d("1800.00"),
		ProductCost:   d("9000.00"),
		Channel:       settlement.ChannelStorefront,
		PaymentMethod: settlement.PayPlatform,
		Condition:     "standard",
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"commission", comp.Commission, "925.00"},
		{"tax", comp.Tax, "194.25"},
		{"gross receipts", comp.GrossReceiptsTax, "27.75"},
		{"net", comp.NetPrice, "22053.00"}, // 25000 - 925 - 194.25 - 27.75 - 1800
		{"margin", comp.Margin, "13053.00"},
		{"margin over gross", comp.MarginOverGross, "0.5221"},
	}
	for _, c := range checks {
		if !c.got.Equal(d(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
}

func TestCompute_Marketplace_InclusiveTax(t *testing.T) {
	// GIVEN: Marketplace sale gross 18500, commission 13% reported
	//        tax-INCLUSIVE, fixed fee 900, manual IIBB 370
	// WHEN: Pricing
	// THEN: 2405 decomposes into 1987.60 exclusive + 417.40 VAT; the
	//       stored commission adds the fixed fee

	rate := Rate{
		ID:            "r1",
		Key:           RateKey{Channel: settlement.ChannelMarketplace, PaymentMethod: settlement.PayProcessor, Condition: "standard"},
		CommissionPct: d("0.13"),
		FixedFee:      d("900.00"),
	}
	calc := NewCalculator(NewTable(rate), settlement.DefaultTaxConfig())
	comp, err := calc.Compute(context.Background(), Input{
		GrossPrice:          d("18500.00"),
		ShippingCost:        d("2100.00"),
		ProductCost:         d("7400.00"),
		Channel:             settlement.ChannelMarketplace,
		PaymentMethod:       settlement.PayProcessor,
		Condition:           "standard",
		ManualGrossReceipts: dptr("370.00"),
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if want := d("2887.60"); !comp.Commission.Equal(want) { // 1987.60 + 900
		t.Errorf("commission = %s, want %s", comp.Commission, want)
	}
	if want := d("417.40"); !comp.Tax.Equal(want) {
		t.Errorf("tax = %s, want %s", comp.Tax, want)
	}
	if want := d("370.00"); !comp.GrossReceiptsTax.Equal(want) {
		t.Errorf("gross receipts = %s, want %s", comp.GrossReceiptsTax, want)
	}
	// Exclusive + tax reassembles the reported commission to the cent.
	if want := d("2405.00"); !comp.Tax.Add(comp.Commission.Sub(d("900.00"))).Equal(want) {
		t.Errorf("decomposition does not round-trip: %s", comp.Tax.Add(comp.Commission.Sub(d("900.00"))))
	}
	if want := d("12725.00"); !comp.NetPrice.Equal(want) { // 18500 - 2887.60 - 417.40 - 370 - 2100
		t.Errorf("net = %s, want %s", comp.NetPrice, want)
	}
}

func TestCompute_StorefrontProcessor_SplitTax(t *testing.T) {
	// GIVEN: Storefront sale paid via processor checkout, gross 32000, base
	//        commission 3.7% (tax-exclusive), extra 6.39% (tax-INCLUSIVE),
	//        manual IIBB 640
	// WHEN: Pricing
	// THEN: Base gets VAT added; extra gets deflated; shipping NOT deducted

	rate := Rate{
		ID:                 "r1",
		Key:                RateKey{Channel: settlement.ChannelStorefront, PaymentMethod: settlement.PayProcessor, Condition: "standard"},
		CommissionPct:      d("0.037"),
		ExtraCommissionPct: d("0.0639"),
	}
	calc := NewCalculator(NewTable(rate), settlement.DefaultTaxConfig())
	comp, err := calc.Compute(context.Background(), Input{
		GrossPrice:          d("32000.00"),
		ShippingCost:        d("2500.00"),
		ProductCost:         d("12800.00"),
		Channel:             settlement.ChannelStorefront,
		PaymentMethod:       settlement.PayProcessor,
		Condition:           "standard",
		ManualGrossReceipts: dptr("640.00"),
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// base 1184 stays exclusive; extra 2044.80 deflates to 1689.92
	if want := d("2873.92"); !comp.Commission.Equal(want) {
		t.Errorf("commission = %s, want %s", comp.Commission, want)
	}
	// tax = 1184*0.21 + (2044.80 - 1689.92) = 248.64 + 354.88
	if want := d("603.52"); !comp.Tax.Equal(want) {
		t.Errorf("tax = %s, want %s", comp.Tax, want)
	}
	// net = 32000 - 2873.92 - 603.52 - 640, shipping settled separately
	if want := d("27882.56"); !comp.NetPrice.Equal(want) {
		t.Errorf("net = %s, want %s", comp.NetPrice, want)
	}
	if want := d("15082.56"); !comp.Margin.Equal(want) {
		t.Errorf("margin = %s, want %s", comp.Margin, want)
	}
}

func TestCompute_DiscountAppliedBeforeCommission(t *testing.T) {
	// GIVEN: A rate with a 10% discount
	// WHEN: Pricing a 1000 sale
	// THEN: Commission is computed on the discounted 900

	rate := storefrontPlatformRate()
	rate.DiscountPct = d("0.10")
	calc := NewCalculator(NewTable(rate), settlement.DefaultTaxConfig())

	comp, err := calc.Compute(context.Background(), Input{
		GrossPrice:    d("1000.00"),
		Channel:       settlement.ChannelStorefront,
		PaymentMethod: settlement.PayPlatform,
		Condition:     "standard",
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if want := d("900.00"); !comp.PriceAfterDiscount.Equal(want) {
		t.Errorf("price after discount = %s, want %s", comp.PriceAfterDiscount, want)
	}
	if want := d("33.30"); !comp.Commission.Equal(want) { // 900 * 0.037
		t.Errorf("commission = %s, want %s", comp.Commission, want)
	}
}

func TestCompute_ManualCommissionOverride(t *testing.T) {
	// GIVEN: The channel reported an actual commission of 1000
	// WHEN: Pricing with ManualCommission set
	// THEN: The rate-derived amount is replaced; zero/negative overrides
	//       are ignored

	calc := NewCalculator(NewTable(storefrontPlatformRate()), settlement.DefaultTaxConfig())
	in := Input{
		GrossPrice:    d("25000.00"),
		Channel:       settlement.ChannelStorefront,
		PaymentMethod: settlement.PayPlatform,
		Condition:     "standard",
	}

	in.ManualCommission = dptr("1000.00")
	comp, err := calc.Compute(context.Background(), in)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if want := d("1000.00"); !comp.Commission.Equal(want) {
		t.Errorf("commission = %s, want overridden %s", comp.Commission, want)
	}

	in.ManualCommission = dptr("0")
	comp, err = calc.Compute(context.Background(), in)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if want := d("925.00"); !comp.Commission.Equal(want) {
		t.Errorf("commission = %s, want rate-derived %s (zero override ignored)", comp.Commission, want)
	}
}

func TestCompute_ZeroDenominatorRatios(t *testing.T) {
	// GIVEN: A free sale with no product cost
	// WHEN: Pricing
	// THEN: Ratios are zero, not a division panic

	calc := NewCalculator(NewTable(storefrontPlatformRate()), settlement.DefaultTaxConfig())
	comp, err := calc.Compute(context.Background(), Input{
		GrossPrice:    d("0"),
		Channel:       settlement.ChannelStorefront,
		PaymentMethod: settlement.PayPlatform,
		Condition:     "standard",
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !comp.MarginOverGross.IsZero() || !comp.MarginOverCost.IsZero() {
		t.Errorf("ratios = %s / %s, want zero", comp.MarginOverGross, comp.MarginOverCost)
	}
}

func TestCompute_MissingRateIsFatal(t *testing.T) {
	// GIVEN: An empty rate table
	// WHEN: Pricing any sale
	// THEN: A RateLookupError naming the triple; never a guessed rate

	calc := NewCalculator(NewTable(), settlement.DefaultTaxConfig())
	_, err := calc.Compute(context.Background(), Input{
		GrossPrice:    d("100.00"),
		Channel:       settlement.ChannelStorefront,
		PaymentMethod: settlement.PayBankTransfer,
		Condition:     "standard",
	})
	if !errors.Is(err, settlement.ErrRateNotFound) {
		t.Fatalf("got %v, want ErrRateNotFound", err)
	}
	var lookupErr *settlement.RateLookupError
	if !errors.As(err, &lookupErr) {
		t.Fatal("error does not carry the missing triple")
	}
	if lookupErr.PaymentMethod != settlement.PayBankTransfer {
		t.Errorf("reported method = %s", lookupErr.PaymentMethod)
	}
}
