package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar persisted by the collector. The natural key is
// (symbol, timestamp, exchange); replays of the same bar are ignored.
type Candle struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Symbol    string          `json:"symbol"    gorm:"type:varchar(50);not null;uniqueIndex:ux_market_data_symbol_ts_exchange,priority:1;index:idx_market_data_symbol_ts,priority:1"`
	Timestamp time.Time       `json:"timestamp" gorm:"not null;uniqueIndex:ux_market_data_symbol_ts_exchange,priority:2;index:idx_market_data_symbol_ts,priority:2"`
	Exchange  string          `json:"exchange"  gorm:"type:varchar(50);not null;uniqueIndex:ux_market_data_symbol_ts_exchange,priority:3"`
	Timeframe string          `json:"timeframe" gorm:"type:varchar(10)"`
	Open      decimal.Decimal `json:"open"   gorm:"type:double precision;not null"`
	High      decimal.Decimal `json:"high"   gorm:"type:double precision;not null"`
	Low       decimal.Decimal `json:"low"    gorm:"type:double precision;not null"`
	Close     decimal.Decimal `json:"close"  gorm:"type:double precision;not null"`
	Volume    decimal.Decimal `json:"volume" gorm:"type:double precision;not null"`
}

func (Candle) TableName() string {
	return "market_data"
}

// Closes returns the close prices in the same order as candles.
func Closes(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}

// Volumes returns the volumes in the same order as candles.
func Volumes(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i := range candles {
		out[i] = candles[i].Volume
	}
	return out
}
