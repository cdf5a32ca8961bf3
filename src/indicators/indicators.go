// Package indicators holds the price math shared by the signal generators.
// Every series is newest first: index 0 is the latest candle.
package indicators

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	hundred             = decimal.NewFromInt(100)
)

// Mean is the arithmetic mean; zero for an empty slice.
func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, values...).Div(decimal.NewFromInt(int64(len(values))))
}

// SMA averages the newest window values.
func SMA(values []decimal.Decimal, window int) (decimal.Decimal, error) {
	if window <= 0 || len(values) < window {
		return decimal.Zero, ErrInsufficientData
	}
	return Mean(values[:window]), nil
}

// PercentChange is (current - previous) / previous * 100.
func PercentChange(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred)
}

// RSI computes the relative strength index over period deltas of a
// newest-first series. Deltas are taken in series order (older minus newer),
// gains and losses are averaged over the first period deltas, and RS is zero
// when there were no losses.
func RSI(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 || len(closes) < period+1 {
		return decimal.Zero, ErrInsufficientData
	}

	gains := decimal.Zero
	losses := decimal.Zero
	for i := 0; i < period; i++ {
		delta := closes[i+1].Sub(closes[i])
		if delta.IsPositive() {
			gains = gains.Add(delta)
		} else {
			losses = losses.Add(delta.Neg())
		}
	}

	n := decimal.NewFromInt(int64(period))
	avgGain := gains.Div(n)
	avgLoss := losses.Div(n)

	rs := decimal.Zero
	if !avgLoss.IsZero() {
		rs = avgGain.Div(avgLoss)
	}

	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs))), nil
}
