package signals

import (
	"context"
	"fmt"

	"cryptoagents/src/indicators"
	"cryptoagents/src/model"

	"github.com/shopspring/decimal"
)

type SwingParams struct {
	Lookback   int
	MinCandles int
	ShortMA    int
	LongMA     int
	RSIPeriod  int
	Overbought decimal.Decimal
	Oversold   decimal.Decimal
	Confidence decimal.Decimal
}

func DefaultSwingParams() SwingParams {
	return SwingParams{
		Lookback:   100,
		MinCandles: 50,
		ShortMA:    20,
		LongMA:     50,
		RSIPeriod:  14,
		Overbought: decimal.NewFromInt(70),
		Oversold:   decimal.NewFromInt(30),
		Confidence: decimal.NewFromInt(70),
	}
}

// Swing follows aligned moving averages filtered by RSI.
type Swing struct {
	params SwingParams
}

func NewSwing(params SwingParams) *Swing {
	return &Swing{params: params}
}

func (s *Swing) Name() string    { return "swing" }
func (s *Swing) Lookback() int   { return s.params.Lookback }
func (s *Swing) MinCandles() int { return s.params.MinCandles }

func (s *Swing) Evaluate(_ context.Context, symbol string, candles []model.Candle) (*Evaluation, error) {
	closes := model.Closes(candles)

	maShort, err := indicators.SMA(closes, s.params.ShortMA)
	if err != nil {
		return nil, err
	}
	maLong, err := indicators.SMA(closes, s.params.LongMA)
	if err != nil {
		return nil, err
	}
	rsi, err := indicators.RSI(closes, s.params.RSIPeriod)
	if err != nil {
		return nil, err
	}

	price := closes[0]
	var side model.Side
	switch {
	case price.GreaterThan(maShort) && maShort.GreaterThan(maLong) && rsi.LessThan(s.params.Overbought):
		side = model.SideBuy
	case price.LessThan(maShort) && maShort.LessThan(maLong) && rsi.GreaterThan(s.params.Oversold):
		side = model.SideSell
	default:
		return nil, nil
	}

	return &Evaluation{
		Side:       side,
		Price:      price,
		Confidence: s.params.Confidence,
		Summary:    fmt.Sprintf("%s %s", upper(side), symbol),
		Reasoning: fmt.Sprintf("MA%d: %s, MA%d: %s, RSI: %s",
			s.params.ShortMA, maShort.StringFixed(2),
			s.params.LongMA, maLong.StringFixed(2),
			rsi.StringFixed(2)),
		Emit:   true,
		Record: true,
	}, nil
}
