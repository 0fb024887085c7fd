package engine

import (
	"errors"
	"sync"
	"testing"

	"fatoora/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func newObservedDeriver() (*Deriver, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return NewDeriver(zap.New(core)), logs
}

func baseInvoice() model.Invoice {
	return model.Invoice{
		Sender:   model.Party{Name: "John Doe"},
		Receiver: model.Party{Name: "Jane Smith"},
		Details: model.InvoiceDetails{
			InvoiceNumber: "INV0001",
			Currency:      "USD",
			Language:      "English",
			Items: []model.LineItem{
				{Name: "Product 1", Quantity: dec("4"), UnitPrice: dec("25")},
			},
			TaxDetails:      model.TaxDetails{Amount: decimal.Zero, Mode: model.ModeAmount},
			DiscountDetails: model.AdjustmentSpec{Amount: decimal.Zero, Mode: model.ModeAmount},
			ShippingDetails: model.ShippingDetails{Cost: decimal.Zero, CostType: model.ModeAmount},
			PdfTemplate:     1,
		},
		ExportType: model.ExportTypePDF,
	}
}

func TestDeriveRecomputesItemTotals(t *testing.T) {
	inv := baseInvoice()
	inv.Details.Items = []model.LineItem{
		{Name: "A", Quantity: dec("3"), UnitPrice: dec("0.335"), Total: dec("999")},
		{Name: "B", Quantity: dec("1.5"), UnitPrice: dec("10"), Total: dec("-1")},
	}

	derived, err := NewDeriver(nil).Derive(inv)
	require.NoError(t, err)

	assertAmount(t, "1.01", derived.Details.Items[0].Total) // 1.005 rounds half away from zero
	assertAmount(t, "15", derived.Details.Items[1].Total)
	assertAmount(t, "16.01", derived.Details.SubTotal)

	// caller's value untouched
	assertAmount(t, "999", inv.Details.Items[0].Total)
}

func TestDeriveSubTotalIsOrderIndependent(t *testing.T) {
	items := []model.LineItem{
		{Name: "A", Quantity: dec("4"), UnitPrice: dec("50")},
		{Name: "B", Quantity: dec("5"), UnitPrice: dec("50")},
		{Name: "C", Quantity: dec("5"), UnitPrice: dec("80")},
	}
	forward := baseInvoice()
	forward.Details.Items = items
	reversed := baseInvoice()
	reversed.Details.Items = []model.LineItem{items[2], items[1], items[0]}

	d := NewDeriver(nil)
	a, err := d.Derive(forward)
	require.NoError(t, err)
	b, err := d.Derive(reversed)
	require.NoError(t, err)

	assertAmount(t, "850", a.Details.SubTotal)
	assert.True(t, a.Details.SubTotal.Equal(b.Details.SubTotal))
	assert.Equal(t, "C", b.Details.Items[0].Name)
}

func TestDeriveAppliesDiscountBeforeTaxAndShippingAfter(t *testing.T) {
	inv := baseInvoice()
	inv.Details.DiscountDetails = model.AdjustmentSpec{Amount: dec("10"), Mode: model.ModePercentage}
	inv.Details.TaxDetails = model.TaxDetails{Amount: dec("15"), Mode: model.ModePercentage}
	inv.Details.ShippingDetails = model.ShippingDetails{Cost: dec("5"), CostType: model.ModeAmount}

	derived, err := NewDeriver(nil).Derive(inv)
	require.NoError(t, err)

	b := derived.Breakdown
	assertAmount(t, "100", b.SubTotal)
	assertAmount(t, "10", b.Discount)
	assertAmount(t, "90", b.TaxBase)
	assertAmount(t, "13.5", b.Tax)
	assertAmount(t, "5", b.Shipping)
	assertAmount(t, "108.5", b.Total)
	assertAmount(t, "108.5", derived.Details.TotalAmount)
	assert.Equal(t, "One Hundred Eight and 50/100", derived.Details.TotalAmountInWords)
	assert.Empty(t, derived.Warnings)
}

func TestDeriveShippingPercentageUsesSubTotal(t *testing.T) {
	inv := baseInvoice()
	inv.Details.DiscountDetails = model.AdjustmentSpec{Amount: dec("50"), Mode: model.ModePercentage}
	inv.Details.ShippingDetails = model.ShippingDetails{Cost: dec("5"), CostType: model.ModePercentage}

	derived, err := NewDeriver(nil).Derive(inv)
	require.NoError(t, err)

	assertAmount(t, "5", derived.Breakdown.Shipping)
	assertAmount(t, "55", derived.Details.TotalAmount)
}

func TestDeriveClampsNegativeTotalWithWarning(t *testing.T) {
	inv := baseInvoice()
	inv.Details.Items = []model.LineItem{{Name: "A", Quantity: dec("1"), UnitPrice: dec("10")}}
	inv.Details.DiscountDetails = model.AdjustmentSpec{Amount: dec("50"), Mode: model.ModeAmount}

	d, logs := newObservedDeriver()
	derived, err := d.Derive(inv)
	require.NoError(t, err)

	assertAmount(t, "0", derived.Details.TotalAmount)
	assert.False(t, derived.Details.TotalAmount.IsNegative())
	assert.Equal(t, "Zero", derived.Details.TotalAmountInWords)

	codes := make([]WarningCode, 0, len(derived.Warnings))
	for _, w := range derived.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, WarnNegativeTotal)
	assert.NotZero(t, logs.FilterField(zap.String("code", string(WarnNegativeTotal))).Len())
}

func TestDeriveDoesNotCapPercentages(t *testing.T) {
	inv := baseInvoice()
	inv.Details.DiscountDetails = model.AdjustmentSpec{Amount: dec("150"), Mode: model.ModePercentage}
	inv.Details.ShippingDetails = model.ShippingDetails{Cost: dec("60"), CostType: model.ModeAmount}

	derived, err := NewDeriver(nil).Derive(inv)
	require.NoError(t, err)

	assertAmount(t, "150", derived.Breakdown.Discount)
	assertAmount(t, "10", derived.Details.TotalAmount)
}

func TestDeriveClampsNegativeTaxBase(t *testing.T) {
	inv := baseInvoice()
	inv.Details.DiscountDetails = model.AdjustmentSpec{Amount: dec("120"), Mode: model.ModeAmount}
	inv.Details.TaxDetails = model.TaxDetails{Amount: dec("50"), Mode: model.ModePercentage}
	inv.Details.ShippingDetails = model.ShippingDetails{Cost: dec("30"), CostType: model.ModeAmount}

	derived, err := NewDeriver(nil).Derive(inv)
	require.NoError(t, err)

	assertAmount(t, "0", derived.Breakdown.TaxBase)
	assertAmount(t, "0", derived.Breakdown.Tax)
	assertAmount(t, "10", derived.Details.TotalAmount)
	require.NotEmpty(t, derived.Warnings)
	assert.Equal(t, WarnNegativeTaxBase, derived.Warnings[0].Code)
}

func TestDeriveRejectsNegativeQuantityOrPrice(t *testing.T) {
	for name, item := range map[string]model.LineItem{
		"quantity":  {Quantity: dec("-1"), UnitPrice: dec("2")},
		"unitPrice": {Quantity: dec("1"), UnitPrice: dec("-2")},
	} {
		t.Run(name, func(t *testing.T) {
			inv := baseInvoice()
			inv.Details.Items = append(inv.Details.Items, item)

			_, err := NewDeriver(nil).Derive(inv)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, NegativeQuantityOrPrice, verr.Kind)
			assert.Equal(t, name, verr.Field)
			assert.Equal(t, 1, verr.Index)
		})
	}
}

func TestDeriveRejectsInvalidAdjustmentMode(t *testing.T) {
	inv := baseInvoice()
	inv.Details.ShippingDetails = model.ShippingDetails{Cost: dec("5"), CostType: "fixed"}

	_, err := NewDeriver(nil).Derive(inv)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, InvalidAdjustmentMode, verr.Kind)
	assert.Equal(t, "shippingDetails.costType", verr.Field)
}

func TestDeriveRejectsNegativeAdjustment(t *testing.T) {
	inv := baseInvoice()
	inv.Details.TaxDetails = model.TaxDetails{Amount: dec("-1"), Mode: model.ModeAmount}

	_, err := NewDeriver(nil).Derive(inv)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, NegativeAdjustment, verr.Kind)
}

func TestDeriveAcceptsEmptyModeWithZeroAmount(t *testing.T) {
	inv := baseInvoice()
	inv.Details.TaxDetails = model.TaxDetails{}

	derived, err := NewDeriver(nil).Derive(inv)
	require.NoError(t, err)
	assertAmount(t, "100", derived.Details.TotalAmount)
}

func TestDeriveUnsupportedCurrencyDefaultsToTwoDecimals(t *testing.T) {
	inv := baseInvoice()
	inv.Details.Currency = "ZZQ"
	inv.Details.Items = []model.LineItem{{Name: "A", Quantity: dec("1"), UnitPrice: dec("1.999")}}

	derived, err := NewDeriver(nil).Derive(inv)
	require.NoError(t, err)

	assert.Equal(t, int32(2), derived.Breakdown.Precision)
	assertAmount(t, "2", derived.Details.TotalAmount)
	require.Len(t, derived.Warnings, 1)
	assert.Equal(t, WarnUnsupportedCurrency, derived.Warnings[0].Code)
}

func TestDeriveUsesCurrencyPrecision(t *testing.T) {
	inv := baseInvoice()
	inv.Details.Currency = "JPY"
	inv.Details.Items = []model.LineItem{{Name: "A", Quantity: dec("3"), UnitPrice: dec("33.5")}}

	derived, err := NewDeriver(nil).Derive(inv)
	require.NoError(t, err)

	assert.Equal(t, int32(0), derived.Breakdown.Precision)
	assertAmount(t, "101", derived.Details.TotalAmount)
	assert.Equal(t, "One Hundred One", derived.Details.TotalAmountInWords)
}

func TestDeriveUnsupportedLanguageFallsBackToEnglish(t *testing.T) {
	inv := baseInvoice()
	inv.Details.Language = "Klingon"

	d, logs := newObservedDeriver()
	derived, err := d.Derive(inv)
	require.NoError(t, err)

	assert.Equal(t, "One Hundred", derived.Details.TotalAmountInWords)
	require.Len(t, derived.Warnings, 1)
	assert.Equal(t, WarnUnsupportedLanguage, derived.Warnings[0].Code)
	assert.Equal(t, 1, logs.Len())
}

func TestDeriveArabicWords(t *testing.T) {
	inv := baseInvoice()
	inv.Details.Language = "Arabic"

	derived, err := NewDeriver(nil).Derive(inv)
	require.NoError(t, err)
	assert.Equal(t, "مائة", derived.Details.TotalAmountInWords)
}

func TestDeriveIsSafeForConcurrentUse(t *testing.T) {
	inv := baseInvoice()
	d := NewDeriver(nil)

	var wg sync.WaitGroup
	results := make([]decimal.Decimal, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			derived, err := d.Derive(inv)
			if err == nil {
				results[i] = derived.Details.TotalAmount
			}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assertAmount(t, "100", r)
	}
}
