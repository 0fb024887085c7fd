package export

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"fatoora/internal/engine"
	"fatoora/internal/model"
	"fatoora/internal/template"

	"go.uber.org/zap"
)

// Kind selects one of the closed set of output formats.
type Kind string

const (
	KindPDF      Kind = model.ExportTypePDF
	KindCSV      Kind = model.ExportTypeCSV
	KindJSON     Kind = model.ExportTypeJSON
	KindWhatsApp Kind = model.ExportTypeWhatsApp
)

// Kinds lists every supported format.
var Kinds = []Kind{KindPDF, KindCSV, KindJSON, KindWhatsApp}

// ParseKind validates an export type selector.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", &ExportError{Kind: k, Reason: UnsupportedKind, Err: fmt.Errorf("unsupported export type %q", s)}
}

// Artifact is the self-contained output of a renderer.
type Artifact struct {
	Kind        Kind             `json:"kind"`
	ContentType string           `json:"content_type"`
	FileName    string           `json:"file_name"`
	Body        []byte           `json:"body"`
	GeneratedAt time.Time        `json:"generated_at"`
	Warnings    []engine.Warning `json:"warnings,omitempty"`
}

// Reason classifies an ExportError.
type Reason string

const (
	IncompleteInvoice Reason = "IncompleteInvoice"
	UnsupportedKind   Reason = "UnsupportedKind"
	RenderFailed      Reason = "RenderFailed"
	Canceled          Reason = "Canceled"
)

// ExportError is a per-format failure; other formats are unaffected.
type ExportError struct {
	Kind   Kind
	Reason Reason
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s export failed (%s): %v", e.Kind, e.Reason, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

func incomplete(kind Kind, format string, args ...interface{}) error {
	return &ExportError{Kind: kind, Reason: IncompleteInvoice, Err: fmt.Errorf(format, args...)}
}

type options struct {
	registry   *template.Registry
	logger     *zap.Logger
	now        func() time.Time
	compressed bool
}

// Option configures a Pipeline.
type Option func(*options)

// WithRegistry overrides the built-in template table.
func WithRegistry(r *template.Registry) Option {
	return func(o *options) { o.registry = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the source of the generation timestamp stamped on artifacts.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithPDFCompression toggles stream compression in generated documents.
func WithPDFCompression(on bool) Option {
	return func(o *options) { o.compressed = on }
}

// Pipeline dispatches a derived invoice to the renderer of the requested kind.
// Renderers share no mutable state; a Pipeline is safe for concurrent use.
type Pipeline struct {
	pdf      *PDFRenderer
	csv      *CSVRenderer
	json     *JSONRenderer
	whatsapp *WhatsAppRenderer
}

func NewPipeline(opts ...Option) *Pipeline {
	o := options{
		registry:   template.Default(),
		logger:     zap.NewNop(),
		now:        time.Now,
		compressed: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Pipeline{
		pdf:      &PDFRenderer{registry: o.registry, logger: o.logger.Named("pdf"), now: o.now, compressed: o.compressed},
		csv:      &CSVRenderer{now: o.now},
		json:     &JSONRenderer{now: o.now},
		whatsapp: &WhatsAppRenderer{now: o.now},
	}
}

// Render produces the artifact of the given kind. Nothing is returned unless
// the renderer completed in full.
func (p *Pipeline) Render(ctx context.Context, d engine.DerivedInvoice, kind Kind) (Artifact, error) {
	switch kind {
	case KindPDF:
		return p.pdf.Render(ctx, d)
	case KindCSV:
		return p.csv.Render(ctx, d)
	case KindJSON:
		return p.json.Render(ctx, d)
	case KindWhatsApp:
		return p.whatsapp.Render(ctx, d)
	default:
		return Artifact{}, &ExportError{Kind: kind, Reason: UnsupportedKind, Err: fmt.Errorf("no renderer for %q", kind)}
	}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func fileName(d engine.DerivedInvoice, ext string) string {
	num := unsafeFileChars.ReplaceAllString(strings.TrimSpace(d.Details.InvoiceNumber), "_")
	if num == "" {
		return "invoice." + ext
	}
	return "invoice-" + num + "." + ext
}

func canceled(ctx context.Context, kind Kind) error {
	if err := ctx.Err(); err != nil {
		return &ExportError{Kind: kind, Reason: Canceled, Err: err}
	}
	return nil
}
