package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"

	TradeStatusClosed = "closed"
)

// Trade is one executed (or simulated) order. Rows are never updated.
type Trade struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Timestamp  time.Time       `gorm:"not null;index" json:"timestamp"`
	Exchange   string          `gorm:"size:50;not null" json:"exchange"`
	Symbol     string          `gorm:"size:50;not null;index" json:"symbol"`
	Side       string          `gorm:"size:10;not null" json:"side"`
	Price      decimal.Decimal `gorm:"type:double precision;not null" json:"price"`
	Amount     decimal.Decimal `gorm:"type:double precision;not null" json:"amount"`
	Cost       decimal.Decimal `gorm:"type:double precision" json:"cost"`
	Fee        decimal.Decimal `gorm:"type:double precision;default:0" json:"fee"`
	Agent      string          `gorm:"size:50" json:"agent"`
	Status     string          `gorm:"size:20" json:"status"`
	OrderID    string          `gorm:"size:100;index" json:"order_id"`
	PositionID *uint           `gorm:"index" json:"position_id,omitempty"`
}

func (Trade) TableName() string {
	return "trades"
}
