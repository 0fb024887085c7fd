package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"fatoora/internal/engine"
	"fatoora/internal/model"
	"fatoora/internal/template"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	pageMargin   = 15.0
	contentWidth = 180.0 // A4 width minus both margins
	lineHeight   = 6.0
)

// PDFRenderer lays out a derived invoice with a template from the registry.
type PDFRenderer struct {
	registry   *template.Registry
	logger     *zap.Logger
	now        func() time.Time
	compressed bool
}

func (r *PDFRenderer) Render(ctx context.Context, d engine.DerivedInvoice) (Artifact, error) {
	if err := canceled(ctx, KindPDF); err != nil {
		return Artifact{}, err
	}
	if strings.TrimSpace(d.Details.InvoiceNumber) == "" {
		return Artifact{}, incomplete(KindPDF, "invoice number is required")
	}
	if len(d.Details.Items) == 0 {
		return Artifact{}, incomplete(KindPDF, "invoice has no line items")
	}

	tpl, warnings, err := r.resolveTemplate(d)
	if err != nil {
		return Artifact{}, err
	}

	generatedAt := r.now().UTC()
	doc := newDocument(tpl, d, generatedAt, r.compressed)
	for _, section := range tpl.Sections {
		if err := canceled(ctx, KindPDF); err != nil {
			return Artifact{}, err
		}
		if !tpl.Shows(section) {
			continue
		}
		doc.draw(section)
	}
	if err := canceled(ctx, KindPDF); err != nil {
		return Artifact{}, err
	}

	var buf bytes.Buffer
	if err := doc.pdf.Output(&buf); err != nil {
		return Artifact{}, &ExportError{Kind: KindPDF, Reason: RenderFailed, Err: err}
	}

	return Artifact{
		Kind:        KindPDF,
		ContentType: "application/pdf",
		FileName:    fileName(d, "pdf"),
		Body:        buf.Bytes(),
		GeneratedAt: generatedAt,
		Warnings:    warnings,
	}, nil
}

func (r *PDFRenderer) resolveTemplate(d engine.DerivedInvoice) (template.Definition, []engine.Warning, error) {
	id := d.Details.PdfTemplate
	if id == 0 {
		id = template.DefaultTemplateID
	}

	tpl, err := r.registry.Resolve(id)
	if err == nil {
		return tpl, nil, nil
	}

	var unknown *template.UnknownTemplateError
	if !errors.As(err, &unknown) {
		return template.Definition{}, nil, &ExportError{Kind: KindPDF, Reason: RenderFailed, Err: err}
	}

	r.logger.Warn("unknown pdf template, using default",
		zap.Int("template_id", id),
		zap.Int("fallback_id", template.DefaultTemplateID),
		zap.String("invoice_number", d.Details.InvoiceNumber),
	)
	warnings := []engine.Warning{{
		Code:    engine.WarnUnknownTemplate,
		Message: fmt.Sprintf("pdf template %d does not exist, rendered with template %d", id, template.DefaultTemplateID),
	}}

	tpl, err = r.registry.Resolve(template.DefaultTemplateID)
	if err != nil {
		return template.Definition{}, nil, incomplete(KindPDF, "no usable pdf template: %v", err)
	}
	return tpl, warnings, nil
}

type document struct {
	pdf       *gofpdf.Fpdf
	tpl       template.Definition
	inv       engine.DerivedInvoice
	tr        func(string) string
	precision int32
	currency  string
	images    int
}

func newDocument(tpl template.Definition, d engine.DerivedInvoice, generatedAt time.Time, compressed bool) *document {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compressed)
	pdf.SetCreationDate(generatedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Invoice "+d.Details.InvoiceNumber, true)
	pdf.SetAuthor(d.Sender.Name, true)
	pdf.SetCreator("fatoora", false)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")

	doc := &document{
		pdf:       pdf,
		tpl:       tpl,
		inv:       d,
		tr:        pdf.UnicodeTranslatorFromDescriptor(""),
		precision: d.Breakdown.Precision,
		currency:  d.Details.Currency,
	}

	stamp := generatedAt.Format(time.RFC3339)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(tpl.Typography.Font, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Generated %s    Page %d/{nb}", stamp, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	doc.body()
	return doc
}

func (doc *document) body() {
	doc.pdf.SetFont(doc.tpl.Typography.Font, "", doc.tpl.Typography.BaseSize)
	doc.pdf.SetTextColor(0, 0, 0)
}

func (doc *document) accent() (int, int, int) {
	a := doc.tpl.Accent
	if len(a) != 3 {
		return 0, 0, 0
	}
	return a[0], a[1], a[2]
}

func (doc *document) heading(text string) {
	doc.pdf.Ln(4)
	doc.pdf.SetFont(doc.tpl.Typography.Font, "B", doc.tpl.Typography.BaseSize+2)
	doc.pdf.SetTextColor(doc.accent())
	doc.pdf.CellFormat(0, lineHeight+1, doc.tr(text), "", 1, "L", false, 0, "")
	doc.body()
}

func (doc *document) line(text string) {
	doc.pdf.CellFormat(0, lineHeight, doc.tr(text), "", 1, "L", false, 0, "")
}

func (doc *document) money(v decimal.Decimal) string {
	return engine.FormatMoney(v, doc.currency)
}

func (doc *document) draw(s template.Section) {
	switch s {
	case template.SectionHeader:
		doc.header()
	case template.SectionParties:
		doc.parties()
	case template.SectionItems:
		doc.items()
	case template.SectionSummary:
		doc.summary()
	case template.SectionPayment:
		doc.payment()
	case template.SectionSignature:
		doc.signature()
	case template.SectionNotes:
		doc.notes()
	}
}

func (doc *document) header() {
	det := doc.inv.Details
	pdf := doc.pdf

	if det.InvoiceLogo != "" {
		doc.image(det.InvoiceLogo, 150, pageMargin, 45, 0)
	}

	pdf.SetFont(doc.tpl.Typography.Font, "B", doc.tpl.Typography.HeadingSize)
	pdf.SetTextColor(doc.accent())
	pdf.CellFormat(0, 12, "INVOICE", "", 1, "L", false, 0, "")
	doc.body()

	doc.line("Invoice #: " + det.InvoiceNumber)
	if det.InvoiceDate != "" {
		doc.line("Invoice Date: " + det.InvoiceDate)
	}
	if det.DueDate != "" {
		doc.line("Due Date: " + det.DueDate)
	}
	if det.PurchaseOrderNumber != "" {
		doc.line("PO Number: " + det.PurchaseOrderNumber)
	}
	if det.TaxDetails.TaxID != "" {
		doc.line("Tax ID: " + det.TaxDetails.TaxID)
	}
}

func partyLines(p model.Party) []string {
	var lines []string
	for _, s := range []string{p.Address, strings.TrimSpace(p.ZipCode + " " + p.City), p.Country, p.Email, p.Phone} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	for _, in := range p.CustomInputs {
		lines = append(lines, in.Key+": "+in.Value)
	}
	return lines
}

func (doc *document) parties() {
	pdf := doc.pdf
	pdf.Ln(4)

	if doc.tpl.AlignParties != "split" {
		doc.party("Bill From", doc.inv.Sender, pageMargin)
		pdf.Ln(2)
		doc.party("Bill To", doc.inv.Receiver, pageMargin)
		return
	}

	top := pdf.GetY()
	doc.party("Bill From", doc.inv.Sender, pageMargin)
	leftBottom := pdf.GetY()
	pdf.SetY(top)
	doc.party("Bill To", doc.inv.Receiver, pageMargin+contentWidth/2)
	if leftBottom > pdf.GetY() {
		pdf.SetY(leftBottom)
	}
}

func (doc *document) party(title string, p model.Party, x float64) {
	pdf := doc.pdf
	w := contentWidth / 2

	pdf.SetX(x)
	pdf.SetFont(doc.tpl.Typography.Font, "B", doc.tpl.Typography.BaseSize)
	pdf.SetTextColor(doc.accent())
	pdf.CellFormat(w, lineHeight, doc.tr(title), "", 2, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(w, lineHeight, doc.tr(p.Name), "", 2, "L", false, 0, "")
	doc.body()
	for _, l := range partyLines(p) {
		pdf.CellFormat(w, lineHeight, doc.tr(l), "", 2, "L", false, 0, "")
	}
}

var itemColumns = []struct {
	title string
	width float64
	align string
}{
	{"#", 10, "C"},
	{"Item", 75, "L"},
	{"Qty", 25, "R"},
	{"Unit Price", 35, "R"},
	{"Total", 35, "R"},
}

func (doc *document) items() {
	pdf := doc.pdf
	pdf.Ln(6)

	pdf.SetFillColor(doc.accent())
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(doc.tpl.Typography.Font, "B", doc.tpl.Typography.BaseSize)
	for _, col := range itemColumns {
		pdf.CellFormat(col.width, lineHeight+2, col.title, "", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)
	doc.body()

	for i, item := range doc.inv.Details.Items {
		cells := []string{
			fmt.Sprintf("%d", i+1),
			item.Name,
			item.Quantity.String(),
			engine.FormatAmount(item.UnitPrice, doc.precision),
			engine.FormatAmount(item.Total, doc.precision),
		}
		for c, col := range itemColumns {
			pdf.CellFormat(col.width, lineHeight+1, doc.tr(cells[c]), "B", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
		if item.Description != "" {
			pdf.SetX(pageMargin + itemColumns[0].width)
			pdf.SetFont(doc.tpl.Typography.Font, "I", doc.tpl.Typography.BaseSize-1)
			pdf.SetTextColor(100, 100, 100)
			pdf.MultiCell(itemColumns[1].width, lineHeight-1, doc.tr(item.Description), "", "L", false)
			doc.body()
		}
	}
}

func adjustmentLabel(label string, spec model.AdjustmentSpec) string {
	if spec.Mode == model.ModePercentage {
		return fmt.Sprintf("%s (%s%%)", label, spec.Amount.String())
	}
	return label
}

func (doc *document) summary() {
	pdf := doc.pdf
	det := doc.inv.Details
	b := doc.inv.Breakdown
	labelWidth, valueWidth := 130.0, 50.0

	row := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont(doc.tpl.Typography.Font, style, doc.tpl.Typography.BaseSize)
		pdf.CellFormat(labelWidth, lineHeight, doc.tr(label), "", 0, "R", false, 0, "")
		pdf.CellFormat(valueWidth, lineHeight, doc.tr(value), "", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	row("Subtotal", doc.money(b.SubTotal), false)
	if !b.Discount.IsZero() {
		row(adjustmentLabel("Discount", det.DiscountDetails), "-"+doc.money(b.Discount), false)
	}
	if !b.Tax.IsZero() {
		row(adjustmentLabel("Tax", det.TaxDetails.Spec()), doc.money(b.Tax), false)
	}
	if !b.Shipping.IsZero() {
		row(adjustmentLabel("Shipping", det.ShippingDetails.Spec()), doc.money(b.Shipping), false)
	}
	pdf.SetTextColor(doc.accent())
	row("Total", doc.money(det.TotalAmount), true)
	doc.body()

	if det.TotalAmountInWords != "" {
		pdf.Ln(2)
		pdf.SetFont(doc.tpl.Typography.Font, "I", doc.tpl.Typography.BaseSize)
		pdf.MultiCell(0, lineHeight, doc.tr("Amount in words: "+det.TotalAmountInWords), "", "L", false)
		doc.body()
	}
}

func (doc *document) payment() {
	pay := doc.inv.Details.PaymentInformation
	if !pay.AnyEnabled() {
		return
	}

	doc.heading("Payment Information")
	if pay.Bank.Enabled {
		doc.line("Bank: " + pay.Bank.BankName)
		doc.line("Account Name: " + pay.Bank.AccountName)
		doc.line("Account No: " + pay.Bank.AccountNumber)
	}
	if pay.Stripe.Enabled {
		doc.line("Stripe: " + pay.Stripe.URL)
	}
	if pay.Wallet.Enabled {
		doc.line(walletLabel(pay.Wallet.Type) + " Wallet: " + pay.Wallet.PhoneNumber)
	}
	if pay.Instapay.Enabled {
		doc.line("Instapay: " + pay.Instapay.FirstURL())
	}
}

func (doc *document) signature() {
	data := doc.inv.Details.Signature.Data
	if data == "" {
		return
	}

	doc.heading("Signature")
	if doc.image(data, doc.pdf.GetX(), doc.pdf.GetY(), 50, 20) {
		doc.pdf.Ln(22)
		return
	}
	if strings.HasPrefix(data, "data:") {
		return
	}
	// Typed signature.
	doc.pdf.SetFont(doc.tpl.Typography.Font, "I", doc.tpl.Typography.HeadingSize-4)
	doc.line(data)
	doc.body()
}

func (doc *document) notes() {
	det := doc.inv.Details
	if det.AdditionalNotes != "" {
		doc.heading("Additional Notes")
		doc.pdf.MultiCell(0, lineHeight, doc.tr(det.AdditionalNotes), "", "L", false)
	}
	if det.PaymentTerms != "" {
		doc.heading("Payment Terms")
		doc.pdf.MultiCell(0, lineHeight, doc.tr(det.PaymentTerms), "", "L", false)
	}
}

// decodeDataURL unpacks a base64 image data URL into gofpdf's image type and bytes.
func decodeDataURL(s string) (string, []byte, bool) {
	if !strings.HasPrefix(s, "data:image/") {
		return "", nil, false
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:image/"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, false
	}

	var imageType string
	switch strings.TrimSuffix(meta, ";base64") {
	case "png":
		imageType = "PNG"
	case "jpeg", "jpg":
		imageType = "JPG"
	case "gif":
		imageType = "GIF"
	default:
		return "", nil, false
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	return imageType, raw, true
}

// image draws a data URL image and reports whether it could be placed.
// Undecodable images are skipped without failing the document.
func (doc *document) image(dataURL string, x, y, w, h float64) bool {
	imageType, raw, ok := decodeDataURL(dataURL)
	if !ok {
		return false
	}

	doc.images++
	name := fmt.Sprintf("img%d", doc.images)
	opts := gofpdf.ImageOptions{ImageType: imageType}
	doc.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(raw))
	if doc.pdf.Err() {
		doc.pdf.ClearError()
		return false
	}
	doc.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	return true
}
