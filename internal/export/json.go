package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fatoora/internal/engine"
	"fatoora/internal/model"
)

// JSONRenderer serializes the derived invoice with disabled payment channels
// emptied. The output parses back into a model.Invoice; deriving it again
// yields the same totals.
type JSONRenderer struct {
	now func() time.Time
}

func (r *JSONRenderer) Render(ctx context.Context, d engine.DerivedInvoice) (Artifact, error) {
	if err := canceled(ctx, KindJSON); err != nil {
		return Artifact{}, err
	}

	out := d
	out.Details.PaymentInformation = d.Details.PaymentInformation.Redacted()

	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return Artifact{}, &ExportError{Kind: KindJSON, Reason: RenderFailed, Err: fmt.Errorf("failed to encode invoice: %w", err)}
	}

	return Artifact{
		Kind:        KindJSON,
		ContentType: "application/json",
		FileName:    fileName(d, "json"),
		Body:        body,
		GeneratedAt: r.now().UTC(),
	}, nil
}

// ParseJSON reads a JSON artifact (or any invoice document) back into an Invoice.
func ParseJSON(body []byte) (model.Invoice, error) {
	var inv model.Invoice
	if err := json.Unmarshal(body, &inv); err != nil {
		return model.Invoice{}, fmt.Errorf("failed to decode invoice: %w", err)
	}
	return inv, nil
}
