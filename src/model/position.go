package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionSideLong = "long"

	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

type Position struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	Timestamp     time.Time        `gorm:"not null;index" json:"timestamp"`
	Exchange      string           `gorm:"size:50" json:"exchange"`
	Symbol        string           `gorm:"size:50;not null;index" json:"symbol"`
	Side          string           `gorm:"size:10;not null" json:"side"`
	EntryPrice    decimal.Decimal  `gorm:"type:double precision;not null" json:"entry_price"`
	CurrentPrice  decimal.Decimal  `gorm:"type:double precision;not null" json:"current_price"`
	Amount        decimal.Decimal  `gorm:"type:double precision;not null" json:"amount"`
	UnrealizedPnl decimal.Decimal  `gorm:"type:double precision;default:0" json:"unrealized_pnl"`
	RealizedPnl   decimal.Decimal  `gorm:"type:double precision;default:0" json:"realized_pnl"`
	ExitPrice     *decimal.Decimal `gorm:"type:double precision" json:"exit_price,omitempty"`
	Agent         string           `gorm:"size:50" json:"agent"`
	Status        string           `gorm:"size:20;not null;default:open;index" json:"status"`
	ClosedAt      *time.Time       `gorm:"index" json:"closed_at,omitempty"`
}

func (Position) TableName() string {
	return "positions"
}

// Notional is amount * current price.
func (p Position) Notional() decimal.Decimal {
	return p.Amount.Mul(p.CurrentPrice)
}

// PnlFraction is (current - entry) / entry, zero when the entry is unknown.
func (p Position) PnlFraction() decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return p.CurrentPrice.Sub(p.EntryPrice).Div(p.EntryPrice)
}
