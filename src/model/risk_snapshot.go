package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskSnapshot is a point-in-time portfolio rollup written by the portfolio
// aggregator. Readers treat the newest row as current truth.
type RiskSnapshot struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Timestamp        time.Time       `gorm:"not null;index" json:"timestamp"`
	TotalCapital     decimal.Decimal `gorm:"type:double precision;not null" json:"total_capital"`
	AvailableCapital decimal.Decimal `gorm:"type:double precision;not null" json:"available_capital"`
	TotalExposure    decimal.Decimal `gorm:"type:double precision;not null" json:"total_exposure"`
	DailyPnl         decimal.Decimal `gorm:"type:double precision;not null" json:"daily_pnl"`
	TotalPnl         decimal.Decimal `gorm:"type:double precision;not null" json:"total_pnl"`
	OpenPositions    int             `json:"open_positions"`
}

func (RiskSnapshot) TableName() string {
	return "risk_metrics"
}

// InitialSnapshot is what readers assume when nothing was recorded yet.
func InitialSnapshot(initialCapital decimal.Decimal) RiskSnapshot {
	return RiskSnapshot{
		TotalCapital:     initialCapital,
		AvailableCapital: initialCapital,
		TotalExposure:    decimal.Zero,
		DailyPnl:         decimal.Zero,
		TotalPnl:         decimal.Zero,
	}
}
