package export

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"fatoora/internal/engine"
)

// WhatsAppRenderer builds the short chat message sent alongside an invoice.
// It uses WhatsApp markup (*bold*, _italic_) and skips disabled payment channels.
type WhatsAppRenderer struct {
	now func() time.Time
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// walletLabel upper-cases the first letter of a wallet provider name.
func walletLabel(t string) string {
	if t == "" {
		return "Mobile"
	}
	r, size := utf8.DecodeRuneInString(t)
	return string(unicode.ToUpper(r)) + t[size:]
}

func (r *WhatsAppRenderer) Render(ctx context.Context, d engine.DerivedInvoice) (Artifact, error) {
	if err := canceled(ctx, KindWhatsApp); err != nil {
		return Artifact{}, err
	}

	return Artifact{
		Kind:        KindWhatsApp,
		ContentType: "text/plain; charset=utf-8",
		FileName:    fileName(d, "txt"),
		Body:        []byte(WhatsAppText(d)),
		GeneratedAt: r.now().UTC(),
	}, nil
}

// WhatsAppText is the message body of the chat preview.
func WhatsAppText(d engine.DerivedInvoice) string {
	det := d.Details
	p := d.Breakdown.Precision
	currency := orDefault(det.Currency, "USD")

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", orDefault(d.Sender.Name, "My Company"))
	fmt.Fprintf(&b, "Hi %s, here is your invoice %s:\n", orDefault(d.Receiver.Name, "Client Name"), orDefault(det.InvoiceNumber, "0001"))
	b.WriteString("--------------------\n")
	if det.InvoiceDate != "" {
		fmt.Fprintf(&b, "Issue Date: %s\n", det.InvoiceDate)
	}
	if det.DueDate != "" {
		fmt.Fprintf(&b, "Due Date: %s\n", det.DueDate)
	}

	if len(det.Items) > 0 {
		b.WriteString("--------------------\n*Items:*\n")
		b.WriteString("Name | Qty | Price\n")
		for _, item := range det.Items {
			fmt.Fprintf(&b, "%s | %s | %s\n", item.Name, item.Quantity.String(), engine.FormatAmount(item.UnitPrice, p))
		}
	}

	pay := det.PaymentInformation
	if pay.AnyEnabled() {
		b.WriteString("--------------------\n*Payment Info:*\n")
		if pay.Bank.Enabled {
			fmt.Fprintf(&b, "Bank: %s\n", pay.Bank.BankName)
			fmt.Fprintf(&b, "Account Name: %s\n", pay.Bank.AccountName)
			fmt.Fprintf(&b, "Account No: %s\n", pay.Bank.AccountNumber)
		}
		if pay.Stripe.Enabled {
			fmt.Fprintf(&b, "Stripe: %s\n", pay.Stripe.URL)
		}
		if pay.Wallet.Enabled {
			fmt.Fprintf(&b, "%s Wallet: %s\n", walletLabel(pay.Wallet.Type), pay.Wallet.PhoneNumber)
		}
		if pay.Instapay.Enabled {
			fmt.Fprintf(&b, "Instapay: %s\n", pay.Instapay.FirstURL())
		}
	}

	b.WriteString("--------------------\n")
	fmt.Fprintf(&b, "*Total: %s*\n", engine.FormatMoney(det.TotalAmount, currency))
	if det.AdditionalNotes != "" {
		fmt.Fprintf(&b, "_%s_\n", det.AdditionalNotes)
	}
	return b.String()
}
