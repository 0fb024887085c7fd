package model

import (
	"github.com/shopspring/decimal"
)

// ExportType enum constants
const (
	ExportTypePDF      = "pdf"
	ExportTypeCSV      = "csv"
	ExportTypeJSON     = "json"
	ExportTypeWhatsApp = "whatsapp"
)

// AdjustmentMode tells whether an adjustment is a flat amount or a percentage of its base.
type AdjustmentMode string

const (
	ModeAmount     AdjustmentMode = "amount"
	ModePercentage AdjustmentMode = "percentage"
)

// CustomInput is a free-form key/value line printed under a party's address.
type CustomInput struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Party is either the sender (biller) or the receiver (client) of an invoice.
type Party struct {
	Name         string        `json:"name"`
	Address      string        `json:"address"`
	ZipCode      string        `json:"zipCode"`
	City         string        `json:"city"`
	Country      string        `json:"country"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone"`
	CustomInputs []CustomInput `json:"customInputs,omitempty"`
}

// LineItem is a single billed row. Total is recomputed on derivation.
type LineItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Total       decimal.Decimal `json:"total"`
}

// AdjustmentSpec is a tax, discount or shipping rule.
type AdjustmentSpec struct {
	Amount decimal.Decimal `json:"amount"`
	Mode   AdjustmentMode  `json:"amountType"`
}

// TaxDetails is an AdjustmentSpec with the seller's tax registration id.
type TaxDetails struct {
	Amount decimal.Decimal `json:"amount"`
	Mode   AdjustmentMode  `json:"amountType"`
	TaxID  string          `json:"taxID"`
}

func (t TaxDetails) Spec() AdjustmentSpec {
	return AdjustmentSpec{Amount: t.Amount, Mode: t.Mode}
}

// ShippingDetails keeps the cost/costType wire names used by the invoice form.
type ShippingDetails struct {
	Cost     decimal.Decimal `json:"cost"`
	CostType AdjustmentMode  `json:"costType"`
}

func (s ShippingDetails) Spec() AdjustmentSpec {
	return AdjustmentSpec{Amount: s.Cost, Mode: s.CostType}
}

type BankDetails struct {
	Enabled       bool   `json:"enabled"`
	BankName      string `json:"bankName"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
}

type StripeDetails struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

type WalletDetails struct {
	Enabled     bool   `json:"enabled"`
	Type        string `json:"type"` // vodafone, etisalat
	PhoneNumber string `json:"phoneNumber"`
}

type InstapayDetails struct {
	Enabled    bool   `json:"enabled"`
	WalletURL  string `json:"walletUrl"`
	BankURL    string `json:"bankUrl"`
	AccountURL string `json:"accountUrl"`
	PhoneURL   string `json:"phoneUrl"`
}

// FirstURL returns the first non-empty Instapay link, preferring the wallet link.
func (i InstapayDetails) FirstURL() string {
	for _, u := range []string{i.WalletURL, i.BankURL, i.AccountURL, i.PhoneURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

// PaymentInformation holds the optional payment channels. Channel fields are
// meaningless unless the channel is enabled.
type PaymentInformation struct {
	Bank     BankDetails     `json:"bank"`
	Stripe   StripeDetails   `json:"stripe"`
	Wallet   WalletDetails   `json:"wallet"`
	Instapay InstapayDetails `json:"instapay"`
}

// Redacted returns a copy in which every disabled channel is reduced to
// {enabled: false}.
func (p PaymentInformation) Redacted() PaymentInformation {
	if !p.Bank.Enabled {
		p.Bank = BankDetails{}
	}
	if !p.Stripe.Enabled {
		p.Stripe = StripeDetails{}
	}
	if !p.Wallet.Enabled {
		p.Wallet = WalletDetails{}
	}
	if !p.Instapay.Enabled {
		p.Instapay = InstapayDetails{}
	}
	return p
}

// AnyEnabled reports whether at least one channel is switched on.
func (p PaymentInformation) AnyEnabled() bool {
	return p.Bank.Enabled || p.Stripe.Enabled || p.Wallet.Enabled || p.Instapay.Enabled
}

type Signature struct {
	Data string `json:"data"`
}

// InvoiceDetails aggregates everything except the parties.
// SubTotal, TotalAmount and TotalAmountInWords are outputs of derivation.
type InvoiceDetails struct {
	InvoiceLogo         string             `json:"invoiceLogo,omitempty"`
	InvoiceNumber       string             `json:"invoiceNumber"`
	InvoiceDate         string             `json:"invoiceDate"`
	DueDate             string             `json:"dueDate"`
	PurchaseOrderNumber string             `json:"purchaseOrderNumber"`
	Currency            string             `json:"currency"`
	Language            string             `json:"language"`
	Items               []LineItem         `json:"items"`
	TaxDetails          TaxDetails         `json:"taxDetails"`
	DiscountDetails     AdjustmentSpec     `json:"discountDetails"`
	ShippingDetails     ShippingDetails    `json:"shippingDetails"`
	PaymentInformation  PaymentInformation `json:"paymentInformation"`
	Signature           Signature          `json:"signature"`
	AdditionalNotes     string             `json:"additionalNotes"`
	PaymentTerms        string             `json:"paymentTerms"`
	PdfTemplate         int                `json:"pdfTemplate"`
	UpdatedAt           string             `json:"updatedAt,omitempty"`
	SubTotal            decimal.Decimal    `json:"subTotal"`
	TotalAmount         decimal.Decimal    `json:"totalAmount"`
	TotalAmountInWords  string             `json:"totalAmountInWords"`
}

// Invoice is the root value handed to the engine.
type Invoice struct {
	Sender     Party          `json:"sender"`
	Receiver   Party          `json:"receiver"`
	Details    InvoiceDetails `json:"details"`
	ExportType string         `json:"exportType"`
}

// Clone returns a copy that shares no slices with inv.
func (inv Invoice) Clone() Invoice {
	out := inv
	out.Sender.CustomInputs = append([]CustomInput(nil), inv.Sender.CustomInputs...)
	out.Receiver.CustomInputs = append([]CustomInput(nil), inv.Receiver.CustomInputs...)
	out.Details.Items = append([]LineItem(nil), inv.Details.Items...)
	return out
}
