package executors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptoagents/cmd/collector"
	"cryptoagents/src/bus"
	"cryptoagents/src/cache"
	"cryptoagents/src/connectors"
	"cryptoagents/src/model"
	"cryptoagents/src/repository"
	"cryptoagents/src/risk"
	"cryptoagents/src/signals"

	"github.com/alicebob/miniredis/v2"
	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func next(t *testing.T, sub *bus.Subscription) model.Signal {
	t.Helper()
	select {
	case s, ok := <-sub.Signals():
		require.True(t, ok)
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
	return model.Signal{}
}

// uptrendKlines serves n hourly Binance klines, oldest first, closing one
// higher each hour and ending at last.
func uptrendKlines(t *testing.T, n, last int) *httptest.Server {
	t.Helper()
	newest := time.Now().UTC().Truncate(time.Hour)

	rows := make([][]interface{}, 0, n)
	for i := n - 1; i >= 0; i-- {
		open := newest.Add(-time.Duration(i) * time.Hour).UnixMilli()
		price := decimal.NewFromInt(int64(last - i)).String()
		rows = append(rows, []interface{}{
			open, price, price, price, price, "10",
			open + time.Hour.Milliseconds() - 1, "0", 100, "0", "0", "0",
		})
	}
	body, err := json.Marshal(rows)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPipeline_UptrendBuysOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client, err := bus.NewRedisClient(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	b := bus.NewRedisBus(client, 10)

	srv := uptrendKlines(t, 100, 200)
	exchange := connectors.NewGoexExchange("binance", binance.NewWithConfig(&goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   srv.URL,
	}))
	candles := repository.NewCandleRepositoryWithDB(h.db)
	col, err := collector.New(&collector.Config{Limit: 100, Timeframe: "1h", Pairs: []string{"BTC/USDT"}},
		exchange, candles, cache.NewRedisCache(client))
	require.NoError(t, err)

	inserted, err := col.CollectSymbol(ctx, "BTC/USDT")
	require.NoError(t, err)
	require.Equal(t, 100, inserted)

	raw, err := b.Subscribe(ctx, bus.ChannelSignals)
	require.NoError(t, err)
	defer raw.Close()
	approved, err := b.Subscribe(ctx, bus.ChannelApproved)
	require.NoError(t, err)
	defer approved.Close()

	gen := signals.NewGenerator(signals.NewSwing(signals.DefaultSwingParams()), []string{"BTC/USDT"},
		candles, h.decisions, b)
	require.NoError(t, gen.RunCycle(ctx))

	published := next(t, raw)
	require.Equal(t, model.SideBuy, published.Side)
	require.True(t, published.Confidence.Equal(decimal.NewFromInt(70)))

	limits := risk.DefaultConfig()
	validator := risk.NewValidator(limits, h.snapshots, h.positions, b)
	ok, err := validator.HandleSignal(ctx, published)
	require.NoError(t, err)
	require.True(t, ok)

	forwarded := next(t, approved)
	require.Equal(t, published.ID, forwarded.ID)

	e := NewExecutor(testConfig(), limits, "binance", h.stores, StorePrice{Candles: candles}, connectors.SimulatedPlacer{})
	res, err := e.Execute(ctx, forwarded)
	require.NoError(t, err)

	trades, err := h.trades.ListBySymbol(ctx, "BTC/USDT")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.True(t, trades[0].Price.Equal(decimal.NewFromInt(200)))
	// 10000 * 0.1 / 200
	require.True(t, trades[0].Amount.Equal(decimal.NewFromInt(5)), trades[0].Amount.String())

	open, err := h.positions.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, res.Opened.ID, open[0].ID)

	var dec model.Decision
	require.NoError(t, h.db.First(&dec, *published.DecisionID).Error)
	require.True(t, dec.Executed)
}
