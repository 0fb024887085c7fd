package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"fatoora/internal/cache"
	"fatoora/internal/engine"
	"fatoora/internal/export"
	"fatoora/internal/model"
	"fatoora/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// Renderer turns a derived invoice into an artifact.
type Renderer interface {
	Render(ctx context.Context, d engine.DerivedInvoice, kind export.Kind) (export.Artifact, error)
}

// Publisher fans out export events to live listeners.
type Publisher interface {
	Publish(event interface{})
}

// ExportRequest carries one export; UserID is nil for anonymous callers.
type ExportRequest struct {
	Invoice model.Invoice
	Kind    export.Kind
	UserID  *uuid.UUID
}

type ExportResult struct {
	Artifact export.Artifact
	Derived  engine.DerivedInvoice
	Warnings []engine.Warning
	CacheHit bool
}

type WhatsAppLinkRequest struct {
	Phone   string        `json:"phone" binding:"required"`
	Invoice model.Invoice `json:"invoice"`
}

type WhatsAppLinkResponse struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// ExportEvent is pushed to the exporting user's websocket clients after every
// successful export. Anonymous exports reach no one.
type ExportEvent struct {
	UserID        string `json:"-"`
	Type          string `json:"type"`
	Kind          string `json:"kind"`
	InvoiceNumber string `json:"invoice_number"`
	TotalAmount   string `json:"total_amount"`
	Currency      string `json:"currency"`
	CacheHit      bool   `json:"cache_hit"`
	At            string `json:"at"`
}

// Recipient is the subject of the token the event is delivered to.
func (e ExportEvent) Recipient() string { return e.UserID }

type ExportService interface {
	Derive(ctx context.Context, inv model.Invoice) (engine.DerivedInvoice, error)
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
	WhatsAppLink(ctx context.Context, req WhatsAppLinkRequest) (*WhatsAppLinkResponse, error)
}

type ExportServiceConfig struct {
	PDFTimeout time.Duration
	CacheTTL   time.Duration
}

type exportService struct {
	deriver   *engine.Deriver
	renderer  Renderer
	cache     cache.Cache
	logs      repository.ExportLogRepository
	publisher Publisher
	cfg       ExportServiceConfig
	group     singleflight.Group
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService wires the engine, the pipeline and the side stores.
// cache, logs and publisher may be nil.
func NewExportService(
	deriver *engine.Deriver,
	renderer Renderer,
	c cache.Cache,
	logs repository.ExportLogRepository,
	publisher Publisher,
	cfg ExportServiceConfig,
	logger *zap.Logger,
) ExportService {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &exportService{
		deriver:   deriver,
		renderer:  renderer,
		cache:     c,
		logs:      logs,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.Named("export"),
		now:       time.Now,
	}
}

func (s *exportService) Derive(_ context.Context, inv model.Invoice) (engine.DerivedInvoice, error) {
	return s.deriver.Derive(inv)
}

// Fingerprint is the cache key of an export: it depends on the full invoice
// content and the output kind, nothing else.
func Fingerprint(inv model.Invoice, kind export.Kind) (string, error) {
	body, err := json.Marshal(inv)
	if err != nil {
		return "", fmt.Errorf("failed to encode invoice: %w", err)
	}
	h := sha256.New()
	h.Write(body)
	h.Write([]byte{0})
	h.Write([]byte(kind))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *exportService) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	derived, err := s.deriver.Derive(req.Invoice)
	if err != nil {
		return nil, err
	}

	key, err := Fingerprint(req.Invoice, req.Kind)
	if err != nil {
		return nil, err
	}

	art, hit := s.lookup(ctx, key)
	if !hit {
		art, err = s.renderShared(ctx, key, derived, req.Kind)
		if err != nil {
			return nil, err
		}
	}

	warnings := append(append([]engine.Warning(nil), derived.Warnings...), art.Warnings...)
	result := &ExportResult{Artifact: art, Derived: derived, Warnings: warnings, CacheHit: hit}

	s.record(ctx, req, result, key)
	s.publish(req, result)
	return result, nil
}

// lookup treats cache failures as misses.
func (s *exportService) lookup(ctx context.Context, key string) (export.Artifact, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("artifact cache lookup failed", zap.String("key", key), zap.Error(err))
		return export.Artifact{}, false
	}
	if !ok {
		return export.Artifact{}, false
	}

	var art export.Artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		s.logger.Warn("discarding undecodable cached artifact", zap.String("key", key), zap.Error(err))
		return export.Artifact{}, false
	}
	return art, true
}

// renderShared joins the in-flight render for key or starts one. The flight
// is detached from any single caller: a caller whose context ends gets
// Canceled while the render continues for the others.
func (s *exportService) renderShared(ctx context.Context, key string, derived engine.DerivedInvoice, kind export.Kind) (export.Artifact, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		// a concurrent flight may have filled the cache since the first lookup
		if cached, ok := s.lookup(flightCtx, key); ok {
			return cached, nil
		}
		return s.render(flightCtx, key, derived, kind)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return export.Artifact{}, res.Err
		}
		return res.Val.(export.Artifact), nil
	case <-ctx.Done():
		return export.Artifact{}, &export.ExportError{Kind: kind, Reason: export.Canceled, Err: ctx.Err()}
	}
}

func (s *exportService) render(ctx context.Context, key string, derived engine.DerivedInvoice, kind export.Kind) (export.Artifact, error) {
	if kind == export.KindPDF && s.cfg.PDFTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PDFTimeout)
		defer cancel()
	}

	start := s.now()
	art, err := s.renderer.Render(ctx, derived, kind)
	if err != nil {
		s.logger.Warn("export failed",
			zap.String("kind", string(kind)),
			zap.String("invoice_number", derived.Details.InvoiceNumber),
			zap.Error(err),
		)
		return export.Artifact{}, err
	}
	s.logger.Debug("export rendered",
		zap.String("kind", string(kind)),
		zap.Int("bytes", len(art.Body)),
		zap.Duration("elapsed", s.now().Sub(start)),
	)

	if raw, err := json.Marshal(art); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("artifact cache store failed", zap.String("key", key), zap.Error(err))
		}
	}
	return art, nil
}

func (s *exportService) record(ctx context.Context, req ExportRequest, res *ExportResult, key string) {
	if s.logs == nil {
		return
	}

	warnings, _ := json.Marshal(res.Warnings)
	if res.Warnings == nil {
		warnings = []byte("[]")
	}
	det := res.Derived.Details
	entry := &model.ExportLog{
		UserID:        req.UserID,
		InvoiceNumber: det.InvoiceNumber,
		Kind:          string(req.Kind),
		Template:      det.PdfTemplate,
		Currency:      strings.ToUpper(det.Currency),
		TotalAmount:   det.TotalAmount,
		Fingerprint:   key,
		SizeBytes:     len(res.Artifact.Body),
		CacheHit:      res.CacheHit,
		Warnings:      string(warnings),
		CreatedAt:     s.now(),
	}
	if err := s.logs.Log(ctx, entry); err != nil {
		s.logger.Error("failed to record export", zap.String("kind", entry.Kind), zap.Error(err))
	}
}

func (s *exportService) publish(req ExportRequest, res *ExportResult) {
	if s.publisher == nil {
		return
	}
	var recipient string
	if req.UserID != nil {
		recipient = req.UserID.String()
	}
	det := res.Derived.Details
	s.publisher.Publish(ExportEvent{
		UserID:        recipient,
		Type:          "invoice.exported",
		Kind:          string(res.Artifact.Kind),
		InvoiceNumber: det.InvoiceNumber,
		TotalAmount:   det.TotalAmount.StringFixed(res.Derived.Breakdown.Precision),
		Currency:      det.Currency,
		CacheHit:      res.CacheHit,
		At:            s.now().UTC().Format(time.RFC3339),
	})
}

// NormalizePhone strips formatting from a phone number and returns its digits.
// Seven to fifteen digits are accepted, matching the E.164 length limit.
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", ErrInvalidPhone
		}
	}
	digits := b.String()
	if len(digits) < 7 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

func (s *exportService) WhatsAppLink(ctx context.Context, req WhatsAppLinkRequest) (*WhatsAppLinkResponse, error) {
	digits, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	derived, err := s.deriver.Derive(req.Invoice)
	if err != nil {
		return nil, err
	}
	art, err := s.renderer.Render(ctx, derived, export.KindWhatsApp)
	if err != nil {
		return nil, err
	}

	msg := string(art.Body)
	return &WhatsAppLinkResponse{
		URL:     "https://wa.me/" + digits + "?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20"),
		Message: msg,
	}, nil
}
