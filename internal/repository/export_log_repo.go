package repository

import (
	"context"
	"fmt"
	"time"

	"fatoora/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExportLogRepository interface {
	Log(ctx context.Context, entry *model.ExportLog) error
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.ExportLog, int64, error)
	KindCounts(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]model.KindCount, error)
	CurrencyTotals(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]model.CurrencyTotal, error)
}

type exportLogRepository struct {
	db *gorm.DB
}

func NewExportLogRepository(db *gorm.DB) ExportLogRepository {
	return &exportLogRepository{db: db}
}

func (r *exportLogRepository) Log(ctx context.Context, entry *model.ExportLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *exportLogRepository) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.ExportLog, int64, error) {
	var logs []model.ExportLog
	var total int64

	db := GetDB(ctx, r.db).Where("user_id = ?", userID)
	if err := db.Model(&model.ExportLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := GetDB(ctx, r.db).Where("user_id = ?", userID).Order("created_at desc").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

func (r *exportLogRepository) KindCounts(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]model.KindCount, error) {
	var counts []model.KindCount
	if err := GetDB(ctx, r.db).Model(&model.ExportLog{}).
		Select("kind, COUNT(*) as count").
		Where("user_id = ? AND created_at >= ? AND created_at <= ?", userID, start, end).
		Group("kind").
		Order("count DESC, kind").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count exports by kind: %w", err)
	}
	return counts, nil
}

// CurrencyTotals counts each invoice number and total once, so
// exporting the same invoice as pdf and csv does not double its amount.
func (r *exportLogRepository) CurrencyTotals(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]model.CurrencyTotal, error) {
	distinct := GetDB(ctx, r.db).Model(&model.ExportLog{}).
		Select("DISTINCT ON (invoice_number, currency, total_amount) currency, total_amount").
		Where("user_id = ? AND created_at >= ? AND created_at <= ?", userID, start, end)

	var totals []model.CurrencyTotal
	if err := GetDB(ctx, r.db).Table("(?) as invoices", distinct).
		Select("currency, COUNT(*) as count, COALESCE(SUM(total_amount), 0) as total_amount").
		Group("currency").
		Order("currency").
		Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("failed to total exports by currency: %w", err)
	}
	return totals, nil
}
