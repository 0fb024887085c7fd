package engine

import (
	"fatoora/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Breakdown is the resolved adjustment chain, every term rounded to Precision.
type Breakdown struct {
	Precision int32           `json:"precision"`
	SubTotal  decimal.Decimal `json:"subTotal"`
	Discount  decimal.Decimal `json:"discount"`
	TaxBase   decimal.Decimal `json:"taxBase"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
}

// DerivedInvoice is an Invoice whose computed fields have been resolved.
// The embedded Invoice serializes at the top level so the JSON form can be
// parsed back into a model.Invoice.
type DerivedInvoice struct {
	model.Invoice
	Breakdown Breakdown `json:"breakdown"`
	Warnings  []Warning `json:"-"`
}

// Deriver computes totals. It holds no mutable state and is safe for
// concurrent use.
type Deriver struct {
	logger *zap.Logger
}

func NewDeriver(logger *zap.Logger) *Deriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deriver{logger: logger.Named("derive")}
}

// Derive recomputes item totals, subtotal, adjustments, the grand total and its
// spelled-out form. Discount applies before tax; shipping is added after tax and
// is never taxed. The input is not modified.
func (d *Deriver) Derive(inv model.Invoice) (DerivedInvoice, error) {
	out := DerivedInvoice{Invoice: inv.Clone()}
	details := &out.Details

	precision, ok := Precision(details.Currency)
	if !ok {
		out.warn(d.logger, WarnUnsupportedCurrency, "no minor-unit entry for currency "+quote(details.Currency)+", using 2 decimals")
	}

	subTotal := decimal.Zero
	for i, item := range details.Items {
		if item.Quantity.IsNegative() {
			return DerivedInvoice{}, &ValidationError{Kind: NegativeQuantityOrPrice, Field: "quantity", Index: i, Value: item.Quantity.String()}
		}
		if item.UnitPrice.IsNegative() {
			return DerivedInvoice{}, &ValidationError{Kind: NegativeQuantityOrPrice, Field: "unitPrice", Index: i, Value: item.UnitPrice.String()}
		}
		details.Items[i].Total = item.Quantity.Mul(item.UnitPrice).Round(precision)
		subTotal = subTotal.Add(details.Items[i].Total)
	}

	discount, err := resolveAdjustment("discountDetails.amount", "discountDetails.amountType", details.DiscountDetails, subTotal, precision)
	if err != nil {
		return DerivedInvoice{}, err
	}

	taxBase := subTotal.Sub(discount)
	if taxBase.IsNegative() {
		out.warn(d.logger, WarnNegativeTaxBase, "discount exceeds subtotal, tax base clamped to zero")
		taxBase = decimal.Zero.Round(precision)
	}
	tax, err := resolveAdjustment("taxDetails.amount", "taxDetails.amountType", details.TaxDetails.Spec(), taxBase, precision)
	if err != nil {
		return DerivedInvoice{}, err
	}

	shipping, err := resolveAdjustment("shippingDetails.cost", "shippingDetails.costType", details.ShippingDetails.Spec(), subTotal, precision)
	if err != nil {
		return DerivedInvoice{}, err
	}

	total := subTotal.Sub(discount).Add(tax).Add(shipping)
	if total.IsNegative() {
		out.warn(d.logger, WarnNegativeTotal, "adjustments exceed subtotal, total "+total.StringFixed(precision)+" clamped to zero")
		total = decimal.Zero
	}
	total = total.Round(precision)

	lang, ok := ParseLanguage(details.Language)
	if !ok {
		out.warn(d.logger, WarnUnsupportedLanguage, "no number-to-words support for "+quote(details.Language)+", using English")
	}

	details.SubTotal = subTotal.Round(precision)
	details.TotalAmount = total
	details.TotalAmountInWords = AmountInWords(total, precision, lang)

	out.Breakdown = Breakdown{
		Precision: precision,
		SubTotal:  details.SubTotal,
		Discount:  discount,
		TaxBase:   taxBase.Round(precision),
		Tax:       tax,
		Shipping:  shipping,
		Total:     total,
	}

	return out, nil
}

func resolveAdjustment(field, modeField string, spec model.AdjustmentSpec, base decimal.Decimal, precision int32) (decimal.Decimal, error) {
	if spec.Amount.IsNegative() {
		return decimal.Zero, &ValidationError{Kind: NegativeAdjustment, Field: field, Index: -1, Value: spec.Amount.String()}
	}

	switch spec.Mode {
	case "":
		// an untouched form section carries no mode; only a zero amount is meaningful without one
		if spec.Amount.IsZero() {
			return decimal.Zero.Round(precision), nil
		}
		return decimal.Zero, &ValidationError{Kind: InvalidAdjustmentMode, Field: modeField, Index: -1, Value: ""}
	case model.ModeAmount:
		return spec.Amount.Round(precision), nil
	case model.ModePercentage:
		return base.Mul(spec.Amount).Div(hundred).Round(precision), nil
	default:
		return decimal.Zero, &ValidationError{Kind: InvalidAdjustmentMode, Field: modeField, Index: -1, Value: string(spec.Mode)}
	}
}

func (out *DerivedInvoice) warn(logger *zap.Logger, code WarningCode, msg string) {
	out.Warnings = append(out.Warnings, Warning{Code: code, Message: msg})
	logger.Warn(msg,
		zap.String("code", string(code)),
		zap.String("invoice_number", out.Details.InvoiceNumber),
	)
}

func quote(s string) string {
	return `"` + s + `"`
}
