package signals

import (
	"context"

	"cryptoagents/src/model"

	"github.com/shopspring/decimal"
)

// Evaluation is what a strategy concluded for one symbol.
type Evaluation struct {
	Side       model.Side
	Price      decimal.Decimal
	Confidence decimal.Decimal
	Summary    string
	Reasoning  string

	// Emit publishes a signal; Record writes the decision even without one.
	Emit   bool
	Record bool
}

// Strategy turns a newest-first candle window into an optional signal.
type Strategy interface {
	Name() string
	// Lookback is how many candles to read.
	Lookback() int
	// MinCandles below which the symbol is skipped for the cycle.
	MinCandles() int
	// Evaluate returns nil when nothing should be recorded.
	Evaluate(ctx context.Context, symbol string, candles []model.Candle) (*Evaluation, error)
}
