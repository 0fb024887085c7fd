package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"fatoora/internal/engine"
)

// CSVHeader is fixed regardless of which optional invoice blocks are filled in.
var CSVHeader = []string{"name", "description", "quantity", "unitPrice", "total"}

// CSVRenderer writes one row per line item followed by the adjustment summary.
type CSVRenderer struct {
	now func() time.Time
}

func (r *CSVRenderer) Render(ctx context.Context, d engine.DerivedInvoice) (Artifact, error) {
	if err := canceled(ctx, KindCSV); err != nil {
		return Artifact{}, err
	}
	if len(d.Details.Items) == 0 {
		return Artifact{}, incomplete(KindCSV, "invoice has no line items")
	}

	p := d.Breakdown.Precision
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := make([][]string, 0, len(d.Details.Items)+6)
	rows = append(rows, CSVHeader)
	for _, item := range d.Details.Items {
		rows = append(rows, []string{
			item.Name,
			item.Description,
			item.Quantity.String(),
			item.UnitPrice.StringFixed(p),
			item.Total.StringFixed(p),
		})
	}

	b := d.Breakdown
	for _, s := range []struct {
		label string
		value string
	}{
		{"Subtotal", b.SubTotal.StringFixed(p)},
		{"Discount", b.Discount.StringFixed(p)},
		{"Tax", b.Tax.StringFixed(p)},
		{"Shipping", b.Shipping.StringFixed(p)},
		{"Total", d.Details.TotalAmount.StringFixed(p)},
	} {
		rows = append(rows, []string{s.label, "", "", "", s.value})
	}

	if err := w.WriteAll(rows); err != nil {
		return Artifact{}, &ExportError{Kind: KindCSV, Reason: RenderFailed, Err: fmt.Errorf("failed to write csv: %w", err)}
	}

	return Artifact{
		Kind:        KindCSV,
		ContentType: "text/csv; charset=utf-8",
		FileName:    fileName(d, "csv"),
		Body:        buf.Bytes(),
		GeneratedAt: r.now().UTC(),
	}, nil
}
