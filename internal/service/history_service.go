package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fatoora/internal/engine"
	"fatoora/internal/model"
	"fatoora/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInvalidRange = errors.New("end_date must not be before start_date")

type ExportLogResponse struct {
	ID            string           `json:"id"`
	InvoiceNumber string           `json:"invoice_number"`
	Kind          string           `json:"kind"`
	Template      int              `json:"template"`
	Currency      string           `json:"currency"`
	TotalAmount   string           `json:"total_amount"`
	SizeBytes     int              `json:"size_bytes"`
	CacheHit      bool             `json:"cache_hit"`
	Warnings      []engine.Warning `json:"warnings"`
	CreatedAt     string           `json:"created_at"`
}

type HistoryService interface {
	ListExports(ctx context.Context, userID uuid.UUID, offset, limit int) ([]ExportLogResponse, int64, error)
	Statistics(ctx context.Context, userID uuid.UUID, start, end time.Time) (*model.ExportStatistics, error)
}

type historyService struct {
	repo   repository.ExportLogRepository
	logger *zap.Logger
}

// NewHistoryService creates a new HistoryService instance
func NewHistoryService(repo repository.ExportLogRepository, logger *zap.Logger) HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &historyService{repo: repo, logger: logger.Named("history")}
}

// ListExports returns the caller's exports, newest first.
func (s *historyService) ListExports(ctx context.Context, userID uuid.UUID, offset, limit int) ([]ExportLogResponse, int64, error) {
	logs, total, err := s.repo.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list exports: %w", err)
	}

	res := make([]ExportLogResponse, 0, len(logs))
	for _, l := range logs {
		warnings := []engine.Warning{}
		if l.Warnings != "" {
			if err := json.Unmarshal([]byte(l.Warnings), &warnings); err != nil {
				s.logger.Warn("unreadable export warnings",
					zap.String("export_id", l.ID.String()),
					zap.Error(err))
				warnings = []engine.Warning{}
			}
		}

		res = append(res, ExportLogResponse{
			ID:            l.ID.String(),
			InvoiceNumber: l.InvoiceNumber,
			Kind:          l.Kind,
			Template:      l.Template,
			Currency:      l.Currency,
			TotalAmount:   l.TotalAmount.String(),
			SizeBytes:     l.SizeBytes,
			CacheHit:      l.CacheHit,
			Warnings:      warnings,
			CreatedAt:     l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}

// Statistics counts the caller's exports by kind and totals the exported
// invoices by currency within [start, end].
func (s *historyService) Statistics(ctx context.Context, userID uuid.UUID, start, end time.Time) (*model.ExportStatistics, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}

	kinds, err := s.repo.KindCounts(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	currencies, err := s.repo.CurrencyTotals(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	stats := &model.ExportStatistics{
		ByKind:             kinds,
		ByCurrency:         currencies,
		TimeRangeStartDate: start,
		TimeRangeEndDate:   end,
	}
	if stats.ByKind == nil {
		stats.ByKind = []model.KindCount{}
	}
	if stats.ByCurrency == nil {
		stats.ByCurrency = []model.CurrencyTotal{}
	}
	for _, k := range kinds {
		stats.TotalExports += k.Count
	}
	return stats, nil
}
