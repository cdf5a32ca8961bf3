// Package tp_sl holds the stop-loss and take-profit rules for long positions.
package tp_sl

import (
	"cryptoagents/src/model"

	"github.com/shopspring/decimal"
)

const (
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
)

var one = decimal.NewFromInt(1)

// Levels returns the absolute stop and target prices for an entry.
func Levels(entry, stopLoss, takeProfit decimal.Decimal) (stop, target decimal.Decimal) {
	return entry.Mul(one.Sub(stopLoss)), entry.Mul(one.Add(takeProfit))
}

// Evaluate compares the position's pnl fraction against the thresholds.
// Both bounds are inclusive; a position with no entry price never triggers.
func Evaluate(p model.Position, stopLoss, takeProfit decimal.Decimal) (reason string, triggered bool) {
	if p.EntryPrice.IsZero() {
		return "", false
	}

	pnl := p.PnlFraction()
	switch {
	case pnl.LessThanOrEqual(stopLoss.Neg()):
		return ReasonStopLoss, true
	case pnl.GreaterThanOrEqual(takeProfit):
		return ReasonTakeProfit, true
	default:
		return "", false
	}
}

func IsBullish(c model.Candle) bool { return c.Close.GreaterThan(c.Open) }

func AvgLow(candles []model.Candle) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range candles {
		sum = sum.Add(c.Low)
	}
	return sum.Div(decimal.NewFromInt(int64(len(candles))))
}

// TrailingStop suggests a raised stop for a long from newest-first candles.
//
// - gate: previous candle bullish
// - floor: avg(low) over lookback
// - clamp: candidate <= prev.Low
// - update: SL = max(SL, candidate)
func TrailingStop(currentSL decimal.Decimal, candles []model.Candle, lookback int) (newSL decimal.Decimal, moved bool) {
	if len(candles) < 2 {
		return currentSL, false
	}
	if lookback <= 0 {
		lookback = 20
	}
	if lookback > len(candles) {
		lookback = len(candles)
	}

	prev := candles[1]
	if !IsBullish(prev) {
		return currentSL, false
	}

	candidate := AvgLow(candles[:lookback])
	if candidate.GreaterThan(prev.Low) {
		candidate = prev.Low
	}

	if candidate.GreaterThan(currentSL) {
		return candidate, true
	}
	return currentSL, false
}
