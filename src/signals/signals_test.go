package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"cryptoagents/src/model"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// candles builds a newest-first series; closes[0] is the latest bar.
func candles(closes []int64, volumes []int64) []model.Candle {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]model.Candle, len(closes))
	for i := range closes {
		v := int64(100)
		if i < len(volumes) {
			v = volumes[i]
		}
		out[i] = model.Candle{
			Symbol:    "BTC/USDT",
			Exchange:  "binance",
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
			Close:     decimal.NewFromInt(closes[i]),
			Volume:    decimal.NewFromInt(v),
		}
	}
	return out
}

// uptrend is strictly rising toward the newest bar.
func uptrend(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(200 - i)
	}
	return out
}

func downtrend(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(100 + i)
	}
	return out
}

// choppyDown falls toward the newest bar but keeps small bounces so the
// momentum reading is not pinned at an extreme.
func choppyDown(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(100 + 2*i)
		if i%2 == 1 {
			out[i] -= 3
		}
	}
	return out
}

func TestScalping_VolumeSpikeBuy(t *testing.T) {
	s := NewScalping(DefaultScalpingParams())

	eval, err := s.Evaluate(context.Background(), "BTC/USDT",
		candles([]int64{101, 100, 100, 100, 100, 100}, []int64{300, 100, 100, 100, 100, 100}))
	require.NoError(t, err)
	require.NotNil(t, eval)
	require.Equal(t, model.SideBuy, eval.Side)
	require.True(t, eval.Confidence.Equal(decimal.NewFromInt(10)), eval.Confidence.String())
	require.Equal(t, "BUY BTC/USDT", eval.Summary)
	require.True(t, eval.Emit)
}

func TestScalping_NoSpikeNoSignal(t *testing.T) {
	s := NewScalping(DefaultScalpingParams())

	eval, err := s.Evaluate(context.Background(), "BTC/USDT",
		candles([]int64{110, 100, 100, 100, 100, 100}, []int64{120, 100, 100, 100, 100, 100}))
	require.NoError(t, err)
	require.Nil(t, eval)
}

func TestScalping_SellAndConfidenceCap(t *testing.T) {
	s := NewScalping(DefaultScalpingParams())

	eval, err := s.Evaluate(context.Background(), "ETH/USDT",
		candles([]int64{80, 100, 100, 100, 100, 100}, []int64{500, 100, 100, 100, 100, 100}))
	require.NoError(t, err)
	require.NotNil(t, eval)
	require.Equal(t, model.SideSell, eval.Side)
	require.True(t, eval.Confidence.Equal(decimal.NewFromInt(95)))
}

func TestSwing_UptrendBuys(t *testing.T) {
	s := NewSwing(DefaultSwingParams())

	eval, err := s.Evaluate(context.Background(), "BTC/USDT", candles(uptrend(60), nil))
	require.NoError(t, err)
	require.NotNil(t, eval)
	require.Equal(t, model.SideBuy, eval.Side)
	require.True(t, eval.Confidence.Equal(decimal.NewFromInt(70)))
	require.True(t, eval.Price.Equal(decimal.NewFromInt(200)))
}

func TestSwing_DowntrendSells(t *testing.T) {
	s := NewSwing(DefaultSwingParams())

	eval, err := s.Evaluate(context.Background(), "BTC/USDT", candles(choppyDown(60), nil))
	require.NoError(t, err)
	require.NotNil(t, eval)
	require.Equal(t, model.SideSell, eval.Side)
	require.Contains(t, eval.Reasoning, "RSI: 83.33")
}

func TestSwing_FlatHolds(t *testing.T) {
	flat := make([]int64, 60)
	for i := range flat {
		flat[i] = 100
	}
	eval, err := NewSwing(DefaultSwingParams()).Evaluate(context.Background(), "BTC/USDT", candles(flat, nil))
	require.NoError(t, err)
	require.Nil(t, eval)
}

type stubChat struct {
	reply string
	err   error
	calls int
}

func (s *stubChat) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.reply, nil), nil
}

type memoryCache struct {
	values map[string]interface{}
	ttls   map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]interface{}{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	c.values[key] = value
	c.ttls[key] = ttl
	return nil
}

func TestResearch_ConfidentUptrendBuys(t *testing.T) {
	chat := &stubChat{reply: "Momentum is strong above both averages.\nConfidence: 80"}
	c := newMemoryCache()
	r := NewResearch(DefaultResearchParams(), chat, c)

	eval, err := r.Evaluate(context.Background(), "BTC/USDT", candles(uptrend(60), nil))
	require.NoError(t, err)
	require.NotNil(t, eval)
	require.True(t, eval.Emit)
	require.True(t, eval.Record)
	require.Equal(t, model.SideBuy, eval.Side)
	require.True(t, eval.Confidence.Equal(decimal.NewFromInt(80)))
	require.Equal(t, "BULLISH SIGNAL: BTC/USDT", eval.Summary)
	require.Contains(t, eval.Reasoning, TrendStrongUp)

	cached, ok := c.values["research:BTC/USDT:analysis"].(Analysis)
	require.True(t, ok)
	require.Equal(t, TrendStrongUp, cached.Technicals.Trend)
	require.Equal(t, 1800*time.Second, c.ttls["research:BTC/USDT:analysis"])
}

func TestResearch_LowConfidenceOnlyRecords(t *testing.T) {
	chat := &stubChat{reply: "Mixed picture. confidence 50"}
	r := NewResearch(DefaultResearchParams(), chat, nil)

	eval, err := r.Evaluate(context.Background(), "BTC/USDT", candles(downtrend(60), nil))
	require.NoError(t, err)
	require.NotNil(t, eval)
	require.False(t, eval.Emit)
	require.True(t, eval.Record)
	require.Equal(t, "MARKET ANALYSIS: BTC/USDT", eval.Summary)
}

func TestResearch_MissingConfidenceUsesDefault(t *testing.T) {
	chat := &stubChat{reply: "No explicit score given."}
	r := NewResearch(DefaultResearchParams(), chat, nil)

	eval, err := r.Evaluate(context.Background(), "BTC/USDT", candles(downtrend(60), nil))
	require.NoError(t, err)
	require.True(t, eval.Confidence.Equal(decimal.NewFromInt(70)))
	require.True(t, eval.Emit)
	require.Equal(t, model.SideSell, eval.Side)
}

func TestResearch_ModelFailureSkipsCycle(t *testing.T) {
	chat := &stubChat{err: errors.New("upstream 503")}
	r := NewResearch(DefaultResearchParams(), chat, nil)

	eval, err := r.Evaluate(context.Background(), "BTC/USDT", candles(uptrend(60), nil))
	require.NoError(t, err)
	require.Nil(t, eval)
	require.Equal(t, 1, chat.calls)
}

func TestComputeTechnicals_ShortSeriesFallsBackToMean(t *testing.T) {
	tech, err := ComputeTechnicals(candles(uptrend(30), nil))
	require.NoError(t, err)
	require.True(t, tech.SMA20.Equal(decimal.RequireFromString("190.5")))
	require.True(t, tech.SMA50.Equal(decimal.RequireFromString("185.5")))
	require.Equal(t, TrendStrongUp, tech.Trend)
}
