package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"fatoora/internal/engine"
	"fatoora/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleInvoice() model.Invoice {
	return model.Invoice{
		Sender:   model.Party{Name: "Acme LLC", Address: "1 Main St", City: "Cairo", Country: "Egypt", Email: "billing@acme.test"},
		Receiver: model.Party{Name: "Jane Smith", Address: "22 Side Rd", City: "Giza"},
		Details: model.InvoiceDetails{
			InvoiceNumber: "INV-0042",
			InvoiceDate:   "2026-01-01",
			DueDate:       "2026-01-31",
			Currency:      "USD",
			Language:      "English",
			Items: []model.LineItem{
				{Name: "Widget", Description: "Blue, large", Quantity: dec("2"), UnitPrice: dec("50")},
			},
			TaxDetails:      model.TaxDetails{Amount: dec("10"), Mode: model.ModePercentage},
			DiscountDetails: model.AdjustmentSpec{Amount: dec("5"), Mode: model.ModeAmount},
			ShippingDetails: model.ShippingDetails{Cost: dec("15"), CostType: model.ModeAmount},
			PaymentInformation: model.PaymentInformation{
				Bank:   model.BankDetails{Enabled: false, BankName: "Hidden Bank", AccountName: "Acme", AccountNumber: "000111"},
				Stripe: model.StripeDetails{Enabled: true, URL: "https://pay.example.test/inv42"},
			},
			AdditionalNotes: "Thanks for your business",
			PaymentTerms:    "Net 30",
			PdfTemplate:     1,
		},
	}
}

func derive(t *testing.T, inv model.Invoice) engine.DerivedInvoice {
	t.Helper()
	d, err := engine.NewDeriver(nil).Derive(inv)
	require.NoError(t, err)
	return d
}

func newTestPipeline(opts ...Option) *Pipeline {
	base := []Option{WithClock(func() time.Time { return fixedNow }), WithPDFCompression(false)}
	return NewPipeline(append(base, opts...)...)
}

func requireReason(t *testing.T, err error, want Reason) {
	t.Helper()
	var exportErr *ExportError
	require.True(t, errors.As(err, &exportErr), "expected ExportError, got %v", err)
	assert.Equal(t, want, exportErr.Reason)
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"pdf", "CSV", " json ", "whatsapp"} {
		_, err := ParseKind(s)
		assert.NoError(t, err, s)
	}

	_, err := ParseKind("xml")
	requireReason(t, err, UnsupportedKind)
}

func TestRenderUnknownKind(t *testing.T) {
	_, err := newTestPipeline().Render(context.Background(), derive(t, sampleInvoice()), Kind("docx"))
	requireReason(t, err, UnsupportedKind)
}

func TestDisabledPaymentChannelIsAbsentFromEveryFormat(t *testing.T) {
	p := newTestPipeline()
	d := derive(t, sampleInvoice())

	for _, kind := range []Kind{KindPDF, KindWhatsApp, KindJSON} {
		art, err := p.Render(context.Background(), d, kind)
		require.NoError(t, err, kind)
		assert.False(t, bytes.Contains(art.Body, []byte("Hidden Bank")), "%s leaked disabled bank details", kind)
		assert.True(t, bytes.Contains(art.Body, []byte("https://pay.example.test/inv42")), "%s missing stripe link", kind)
	}

	art, err := p.Render(context.Background(), d, KindCSV)
	require.NoError(t, err)
	assert.NotContains(t, string(art.Body), "Hidden Bank")
}

func TestJSONKeepsOnlyEnabledFlagOfDisabledChannels(t *testing.T) {
	d := derive(t, sampleInvoice())
	require.False(t, d.Details.PaymentInformation.Bank.Enabled)
	require.NotEmpty(t, d.Details.PaymentInformation.Bank.BankName)

	art, err := newTestPipeline().Render(context.Background(), d, KindJSON)
	require.NoError(t, err)

	parsed, err := ParseJSON(art.Body)
	require.NoError(t, err)
	assert.Equal(t, model.BankDetails{}, parsed.Details.PaymentInformation.Bank)
	assert.Equal(t, d.Details.PaymentInformation.Stripe, parsed.Details.PaymentInformation.Stripe)

	// the caller's invoice is left untouched
	assert.Equal(t, "Hidden Bank", d.Details.PaymentInformation.Bank.BankName)
}

func TestJSONRoundTripIsIdempotent(t *testing.T) {
	p := newTestPipeline()
	first := derive(t, sampleInvoice())

	art, err := p.Render(context.Background(), first, KindJSON)
	require.NoError(t, err)
	assert.Equal(t, "application/json", art.ContentType)
	assert.Contains(t, string(art.Body), "\n  \"sender\"")

	parsed, err := ParseJSON(art.Body)
	require.NoError(t, err)
	second := derive(t, parsed)

	assert.True(t, first.Details.TotalAmount.Equal(second.Details.TotalAmount))
	assert.Equal(t, first.Details.TotalAmountInWords, second.Details.TotalAmountInWords)

	again, err := p.Render(context.Background(), second, KindJSON)
	require.NoError(t, err)
	assert.JSONEq(t, string(art.Body), string(again.Body))
}

func TestCSVLayout(t *testing.T) {
	inv := sampleInvoice()
	inv.Details.Items = append(inv.Details.Items, model.LineItem{
		Name: `Gadget "Pro"`, Description: "with, commas", Quantity: dec("1"), UnitPrice: dec("9.5"),
	})
	art, err := newTestPipeline().Render(context.Background(), derive(t, inv), KindCSV)
	require.NoError(t, err)
	assert.Equal(t, "invoice-INV-0042.csv", art.FileName)

	records, err := csv.NewReader(bytes.NewReader(art.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+2+5)

	assert.Equal(t, CSVHeader, records[0])
	assert.Equal(t, []string{`Gadget "Pro"`, "with, commas", "1", "9.50", "9.50"}, records[2])
	for _, r := range records {
		assert.Len(t, r, len(CSVHeader))
	}

	// 109.50 - 5 = 104.50, tax 10.45, shipping 15
	assert.Equal(t, []string{"Total", "", "", "", "129.95"}, records[len(records)-1])
	assert.Equal(t, "Discount", records[4][0])
}

func TestCSVHeaderIsStableWithoutOptionalBlocks(t *testing.T) {
	inv := sampleInvoice()
	inv.Details.PaymentInformation = model.PaymentInformation{}
	inv.Details.AdditionalNotes = ""

	art, err := newTestPipeline().Render(context.Background(), derive(t, inv), KindCSV)
	require.NoError(t, err)
	first := strings.SplitN(string(art.Body), "\n", 2)[0]
	assert.Equal(t, "name,description,quantity,unitPrice,total", first)
}

func TestRendererRequirementsFailIndependently(t *testing.T) {
	p := newTestPipeline()
	inv := sampleInvoice()
	inv.Details.Items = nil
	inv.Details.InvoiceNumber = ""
	d := derive(t, inv)

	_, err := p.Render(context.Background(), d, KindPDF)
	requireReason(t, err, IncompleteInvoice)
	_, err = p.Render(context.Background(), d, KindCSV)
	requireReason(t, err, IncompleteInvoice)

	art, err := p.Render(context.Background(), d, KindJSON)
	require.NoError(t, err)
	assert.NotEmpty(t, art.Body)

	art, err = p.Render(context.Background(), d, KindWhatsApp)
	require.NoError(t, err)
	assert.NotEmpty(t, art.Body)
}

func TestPDFRequiresInvoiceNumber(t *testing.T) {
	inv := sampleInvoice()
	inv.Details.InvoiceNumber = "  "
	_, err := newTestPipeline().Render(context.Background(), derive(t, inv), KindPDF)
	requireReason(t, err, IncompleteInvoice)
}

func TestCanceledContextYieldsNoArtifact(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, kind := range Kinds {
		art, err := newTestPipeline().Render(ctx, derive(t, sampleInvoice()), kind)
		requireReason(t, err, Canceled)
		assert.Empty(t, art.Body, kind)
	}
}

func TestPDFIsDeterministicForFixedClock(t *testing.T) {
	p := newTestPipeline()
	d := derive(t, sampleInvoice())

	a, err := p.Render(context.Background(), d, KindPDF)
	require.NoError(t, err)
	b, err := p.Render(context.Background(), d, KindPDF)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(a.Body, []byte("%PDF-")))
	assert.Equal(t, a.Body, b.Body)
	assert.Equal(t, fixedNow, a.GeneratedAt)
	assert.Equal(t, "invoice-INV-0042.pdf", a.FileName)
	assert.True(t, bytes.Contains(a.Body, []byte("Generated 2026-01-02T03:04:05Z")))

	later := newTestPipeline(WithClock(func() time.Time { return fixedNow.Add(time.Hour) }))
	c, err := later.Render(context.Background(), d, KindPDF)
	require.NoError(t, err)
	assert.NotEqual(t, a.Body, c.Body)
}

func TestPDFUnknownTemplateFallsBack(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := newTestPipeline(WithLogger(zap.New(core)))

	inv := sampleInvoice()
	inv.Details.PdfTemplate = 999
	art, err := p.Render(context.Background(), derive(t, inv), KindPDF)
	require.NoError(t, err)

	require.Len(t, art.Warnings, 1)
	assert.Equal(t, engine.WarnUnknownTemplate, art.Warnings[0].Code)
	assert.Equal(t, 1, logs.FilterField(zap.Int("template_id", 999)).Len())

	inv.Details.PdfTemplate = 1
	classic, err := p.Render(context.Background(), derive(t, inv), KindPDF)
	require.NoError(t, err)
	assert.Equal(t, classic.Body, art.Body)
}

func TestPDFTemplatesDiffer(t *testing.T) {
	p := newTestPipeline()
	inv := sampleInvoice()
	classic, err := p.Render(context.Background(), derive(t, inv), KindPDF)
	require.NoError(t, err)

	inv.Details.PdfTemplate = 2
	modern, err := p.Render(context.Background(), derive(t, inv), KindPDF)
	require.NoError(t, err)
	assert.Empty(t, modern.Warnings)
	assert.NotEqual(t, classic.Body, modern.Body)
}

func TestPDFToleratesBrokenImages(t *testing.T) {
	inv := sampleInvoice()
	inv.Details.InvoiceLogo = "data:image/png;base64,not-really-base64!!"
	inv.Details.Signature.Data = "data:image/png;base64,iVBORw0KGgo="

	art, err := newTestPipeline().Render(context.Background(), derive(t, inv), KindPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(art.Body, []byte("%PDF-")))
}

func TestPDFTypedSignature(t *testing.T) {
	inv := sampleInvoice()
	inv.Details.Signature.Data = "J. Doe"

	art, err := newTestPipeline().Render(context.Background(), derive(t, inv), KindPDF)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(art.Body, []byte("(J. Doe)")))
}

func TestWhatsAppDefaults(t *testing.T) {
	d := derive(t, model.Invoice{Details: model.InvoiceDetails{Currency: "USD"}})

	text := WhatsAppText(d)
	assert.True(t, strings.HasPrefix(text, "*My Company*\n"))
	assert.Contains(t, text, "Hi Client Name")
	assert.Contains(t, text, "*Total: USD 0.00*")
	assert.NotContains(t, text, "Payment Info")
}

func TestWhatsAppListsEnabledChannels(t *testing.T) {
	inv := sampleInvoice()
	inv.Details.PaymentInformation.Wallet = model.WalletDetails{Enabled: true, Type: "vodafone", PhoneNumber: "01000000000"}
	inv.Details.PaymentInformation.Instapay = model.InstapayDetails{Enabled: true, BankURL: "https://ipn.example.test/acme"}

	text := WhatsAppText(derive(t, inv))
	assert.Contains(t, text, "Vodafone Wallet: 01000000000")
	assert.Contains(t, text, "Instapay: https://ipn.example.test/acme")
	assert.Contains(t, text, "Widget | 2 | 50.00")
	assert.Contains(t, text, "*Total: USD 119.50*")
}

func TestWalletLabelKeepsNonASCIINames(t *testing.T) {
	assert.Equal(t, "Mobile", walletLabel(""))
	assert.Equal(t, "Etisalat", walletLabel("etisalat"))
	assert.Equal(t, "Élan", walletLabel("élan"))
	assert.Equal(t, "فودافون", walletLabel("فودافون"))

	inv := sampleInvoice()
	inv.Details.PaymentInformation.Wallet = model.WalletDetails{Enabled: true, Type: "فودافون", PhoneNumber: "01000000000"}
	text := WhatsAppText(derive(t, inv))
	assert.Contains(t, text, "فودافون Wallet: 01000000000")
	assert.NotContains(t, text, "\uFFFD")
	assert.True(t, utf8.ValidString(text))
}

func TestFileNameSanitized(t *testing.T) {
	inv := sampleInvoice()
	inv.Details.InvoiceNumber = "2026/01 #7"
	assert.Equal(t, "invoice-2026_01_7.json", fileName(derive(t, inv), "json"))
}
