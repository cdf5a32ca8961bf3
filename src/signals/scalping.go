package signals

import (
	"context"
	"fmt"

	"cryptoagents/src/indicators"
	"cryptoagents/src/model"

	"github.com/shopspring/decimal"
)

type ScalpingParams struct {
	Lookback        int
	MinCandles      int
	ChangeWindow    int
	ChangeThreshold decimal.Decimal // percent
	VolumeMultiple  decimal.Decimal
	ConfidenceScale decimal.Decimal
	ConfidenceCap   decimal.Decimal
}

func DefaultScalpingParams() ScalpingParams {
	return ScalpingParams{
		Lookback:        20,
		MinCandles:      10,
		ChangeWindow:    5,
		ChangeThreshold: decimal.RequireFromString("0.5"),
		VolumeMultiple:  decimal.RequireFromString("1.5"),
		ConfidenceScale: decimal.NewFromInt(10),
		ConfidenceCap:   decimal.NewFromInt(95),
	}
}

// Scalping fires on short momentum confirmed by a volume spike.
type Scalping struct {
	params ScalpingParams
}

func NewScalping(params ScalpingParams) *Scalping {
	return &Scalping{params: params}
}

func (s *Scalping) Name() string    { return "scalping" }
func (s *Scalping) Lookback() int   { return s.params.Lookback }
func (s *Scalping) MinCandles() int { return s.params.MinCandles }

func (s *Scalping) Evaluate(_ context.Context, symbol string, candles []model.Candle) (*Evaluation, error) {
	w := s.params.ChangeWindow
	if len(candles) < w+1 {
		return nil, indicators.ErrInsufficientData
	}

	closes := model.Closes(candles)
	volumes := model.Volumes(candles)

	change := indicators.PercentChange(closes[0], closes[w])
	avgVolume := indicators.Mean(volumes[1 : w+1])
	spike := avgVolume.IsPositive() && volumes[0].GreaterThan(avgVolume.Mul(s.params.VolumeMultiple))

	ratio := decimal.Zero
	if avgVolume.IsPositive() {
		ratio = volumes[0].Div(avgVolume)
	}

	var side model.Side
	switch {
	case spike && change.GreaterThan(s.params.ChangeThreshold):
		side = model.SideBuy
	case spike && change.LessThan(s.params.ChangeThreshold.Neg()):
		side = model.SideSell
	default:
		return nil, nil
	}

	confidence := decimal.Min(change.Abs().Mul(s.params.ConfidenceScale), s.params.ConfidenceCap)

	return &Evaluation{
		Side:       side,
		Price:      closes[0],
		Confidence: confidence,
		Summary:    fmt.Sprintf("%s %s", upper(side), symbol),
		Reasoning: fmt.Sprintf("Price change: %s%%, Volume ratio: %sx",
			change.StringFixed(2), ratio.StringFixed(2)),
		Emit:   true,
		Record: true,
	}, nil
}
