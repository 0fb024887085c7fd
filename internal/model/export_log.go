package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExportLog records one successful export: who, which invoice, which format.
type ExportLog struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        *uuid.UUID      `gorm:"type:uuid;index" json:"user_id"` // nil for anonymous exports
	User          *User           `gorm:"foreignKey:UserID" json:"-"`
	InvoiceNumber string          `gorm:"type:varchar(100);index" json:"invoice_number"`
	Kind          string          `gorm:"type:varchar(20);not null;index" json:"kind"`
	Template      int             `json:"template"`
	Currency      string          `gorm:"type:varchar(10)" json:"currency"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(20,6)" json:"total_amount"`
	Fingerprint   string          `gorm:"type:char(64);index" json:"fingerprint"`
	SizeBytes     int             `json:"size_bytes"`
	CacheHit      bool            `json:"cache_hit"`
	Warnings      string          `gorm:"type:jsonb" json:"warnings"` // JSON array of {code,message}
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}
