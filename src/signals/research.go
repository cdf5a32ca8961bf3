package signals

import (
	"context"
	"fmt"
	"time"

	"cryptoagents/src/cache"
	"cryptoagents/src/indicators"
	"cryptoagents/src/llm"
	"cryptoagents/src/model"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	TrendStrongUp   = "STRONG UPTREND"
	TrendUp         = "UPTREND"
	TrendStrongDown = "STRONG DOWNTREND"
	TrendDown       = "DOWNTREND"
	TrendSideways   = "SIDEWAYS"

	researchSystemPrompt = "You are an expert cryptocurrency market analyst with deep knowledge of technical analysis and market psychology."
	defaultConfidence    = 70
)

type ResearchParams struct {
	Lookback      int
	MinCandles    int
	MinConfidence decimal.Decimal
	Timeout       time.Duration
	CacheTTL      time.Duration
}

func DefaultResearchParams() ResearchParams {
	return ResearchParams{
		Lookback:      100,
		MinCandles:    20,
		MinConfidence: decimal.NewFromInt(65),
		Timeout:       45 * time.Second,
		CacheTTL:      cache.AnalysisTTL,
	}
}

// Technicals is the price context handed to the model.
type Technicals struct {
	Price       decimal.Decimal `json:"price"`
	SMA20       decimal.Decimal `json:"sma_20"`
	SMA50       decimal.Decimal `json:"sma_50"`
	Change1     decimal.Decimal `json:"change_1"`
	Change24    decimal.Decimal `json:"change_24"`
	VolumeRatio decimal.Decimal `json:"volume_ratio"`
	Trend       string          `json:"trend"`
}

// Analysis is what gets cached for dashboards and later cycles.
type Analysis struct {
	Symbol     string     `json:"symbol"`
	Technicals Technicals `json:"technicals"`
	Commentary string     `json:"commentary"`
	Confidence float64    `json:"confidence"`
	Decision   string     `json:"decision"`
	CreatedAt  time.Time  `json:"created_at"`
}

type analysisCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Research delegates the judgement to a chat model and only acts when the
// model's stated confidence agrees with the measured trend.
type Research struct {
	params ResearchParams
	model  llm.ChatModel
	cache  analysisCache
	log    *logger.Entry
}

func NewResearch(params ResearchParams, chat llm.ChatModel, c analysisCache) *Research {
	return &Research{
		params: params,
		model:  chat,
		cache:  c,
		log:    logger.WithField("component", "research"),
	}
}

func (r *Research) Name() string    { return "research" }
func (r *Research) Lookback() int   { return r.params.Lookback }
func (r *Research) MinCandles() int { return r.params.MinCandles }

// ComputeTechnicals expects at least 20 newest-first candles.
func ComputeTechnicals(candles []model.Candle) (Technicals, error) {
	closes := model.Closes(candles)
	volumes := model.Volumes(candles)

	sma20, err := indicators.SMA(closes, 20)
	if err != nil {
		return Technicals{}, err
	}
	sma50, err := indicators.SMA(closes, 50)
	if err != nil {
		sma50 = indicators.Mean(closes)
	}

	t := Technicals{
		Price:       closes[0],
		SMA20:       sma20,
		SMA50:       sma50,
		Change1:     indicators.PercentChange(closes[0], closes[1]),
		VolumeRatio: decimal.NewFromInt(1),
	}
	if len(closes) >= 24 {
		t.Change24 = indicators.PercentChange(closes[0], closes[23])
	}
	if avg := indicators.Mean(volumes[:20]); avg.IsPositive() {
		t.VolumeRatio = volumes[0].Div(avg)
	}

	switch {
	case t.Price.GreaterThan(sma20) && sma20.GreaterThan(sma50):
		t.Trend = TrendStrongUp
	case t.Price.GreaterThan(sma20):
		t.Trend = TrendUp
	case t.Price.LessThan(sma20) && sma20.LessThan(sma50):
		t.Trend = TrendStrongDown
	case t.Price.LessThan(sma20):
		t.Trend = TrendDown
	default:
		t.Trend = TrendSideways
	}
	return t, nil
}

func buildPrompt(symbol string, t Technicals) string {
	return fmt.Sprintf(`As a professional cryptocurrency analyst, provide a detailed market analysis for %s.

Technical Data:
- Current Price: $%s
- 20-period SMA: $%s
- 50-period SMA: $%s
- 1-candle Change: %s%%
- 24-candle Change: %s%%
- Volume Ratio: %sx
- Detected Trend: %s

Cover market sentiment, key support and resistance levels, a trading opportunity with reasoning,
and the risk factors that would invalidate it. End with a line "Confidence: NN" (0-100).`,
		symbol,
		t.Price.StringFixed(2), t.SMA20.StringFixed(2), t.SMA50.StringFixed(2),
		t.Change1.StringFixed(2), t.Change24.StringFixed(2), t.VolumeRatio.StringFixed(2),
		t.Trend)
}

func (r *Research) Evaluate(ctx context.Context, symbol string, candles []model.Candle) (*Evaluation, error) {
	tech, err := ComputeTechnicals(candles)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.params.Timeout)
	defer cancel()

	commentary, err := llm.Complete(callCtx, r.model, researchSystemPrompt, buildPrompt(symbol, tech))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.WithError(err).WithField("symbol", symbol).Warn("analysis unavailable this cycle")
		return nil, nil
	}

	confidence := decimal.NewFromFloat(llm.ParseConfidence(commentary, defaultConfidence))

	eval := &Evaluation{
		Price:      tech.Price,
		Confidence: confidence,
		Summary:    "MARKET ANALYSIS: " + symbol,
		Record:     true,
	}
	if confidence.GreaterThan(r.params.MinConfidence) {
		switch tech.Trend {
		case TrendStrongUp, TrendUp:
			eval.Side, eval.Emit, eval.Summary = model.SideBuy, true, "BULLISH SIGNAL: "+symbol
		case TrendStrongDown, TrendDown:
			eval.Side, eval.Emit, eval.Summary = model.SideSell, true, "BEARISH SIGNAL: "+symbol
		}
	}

	eval.Reasoning = fmt.Sprintf("Trend: %s, Price: %s, SMA20: %s, SMA50: %s, 24-candle change: %s%%, Volume: %sx\n\n%s",
		tech.Trend, tech.Price.StringFixed(2), tech.SMA20.StringFixed(2), tech.SMA50.StringFixed(2),
		tech.Change24.StringFixed(2), tech.VolumeRatio.StringFixed(2), commentary)

	if r.cache != nil {
		analysis := Analysis{
			Symbol:     symbol,
			Technicals: tech,
			Commentary: commentary,
			Confidence: confidence.InexactFloat64(),
			Decision:   eval.Summary,
			CreatedAt:  time.Now().UTC(),
		}
		if err := r.cache.Set(ctx, cache.AnalysisKey(symbol), analysis, r.params.CacheTTL); err != nil {
			r.log.WithError(err).WithField("symbol", symbol).Warn("failed to cache analysis")
		}
	}

	return eval, nil
}
