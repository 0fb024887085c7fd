package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExportStatistics aggregates a user's exports within a time range
type ExportStatistics struct {
	TotalExports       int64           `json:"total_exports"`
	ByKind             []KindCount     `json:"by_kind"`
	ByCurrency         []CurrencyTotal `json:"by_currency"`
	TimeRangeStartDate time.Time       `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time       `json:"time_range_end_date"`
}

type KindCount struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

// CurrencyTotal sums invoice totals per currency; amounts in different
// currencies are never added together.
type CurrencyTotal struct {
	Currency    string          `json:"currency"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}
