package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptoagents/cmd/agent"
	"cryptoagents/src/cache"
	"cryptoagents/src/connectors"
	"cryptoagents/src/model"
	"cryptoagents/src/repository"

	logger "github.com/sirupsen/logrus"
)

type ohlcvFetcher interface {
	Name() string
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)
}

type candleWriter interface {
	InsertIgnore(ctx context.Context, candle *model.Candle) (bool, error)
}

type latestCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Collector copies recent candles from the exchange into the store and
// mirrors the newest one into the cache.
type Collector struct {
	Log    *logger.Entry
	Config *Config

	exchange ohlcvFetcher
	candles  candleWriter
	cache    latestCache
}

func New(cfg *Config, exchange ohlcvFetcher, candles candleWriter, c latestCache) (*Collector, error) {
	if _, ok := connectors.Timeframes[cfg.Timeframe]; !ok {
		return nil, fmt.Errorf("COLLECTOR_TIMEFRAME: %w: %s", connectors.ErrUnsupportedTimeframe, cfg.Timeframe)
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	return &Collector{
		Log:      logger.WithField("cmd", "collector"),
		Config:   cfg,
		exchange: exchange,
		candles:  candles,
		cache:    c,
	}, nil
}

func (c *Collector) Start() error {
	ctx, stop := agent.Context()
	defer stop()

	rt, err := agent.New(ctx, "collector")
	if err != nil {
		return err
	}
	defer rt.Close()

	exchange, err := connectors.NewBinance(connectors.GetConfig())
	if err != nil {
		return err
	}

	collector, err := New(c.Config, exchange, repository.NewCandleRepository(), rt.Cache)
	if err != nil {
		return err
	}

	return rt.Run(ctx, c.Config.Interval, collector.RunCycle)
}

// RunCycle collects every pair once. Exchange failures only cost that pair
// its data for the cycle; the cycle fails when the store rejected every pair.
func (c *Collector) RunCycle(ctx context.Context) error {
	var storeErrs []error

	for _, symbol := range c.Config.Pairs {
		inserted, err := c.CollectSymbol(ctx, symbol)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var fetchErr *fetchError
		switch {
		case errors.As(err, &fetchErr):
			c.Log.WithError(err).WithField("symbol", symbol).Warn("no market data this cycle")
		case err != nil:
			c.Log.WithError(err).WithField("symbol", symbol).Error("failed to store market data")
			storeErrs = append(storeErrs, err)
		default:
			c.Log.WithFields(logger.Fields{
				"symbol":   symbol,
				"inserted": inserted,
			}).Debug("market data collected")
		}
	}

	if len(c.Config.Pairs) > 0 && len(storeErrs) == len(c.Config.Pairs) {
		return fmt.Errorf("collector cycle failed for all pairs: %w", errors.Join(storeErrs...))
	}
	return nil
}

type fetchError struct {
	err error
}

func (e *fetchError) Error() string { return e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// CollectSymbol stores the latest candles for symbol and returns how many
// were new.
func (c *Collector) CollectSymbol(ctx context.Context, symbol string) (int, error) {
	candles, err := c.exchange.FetchOHLCV(ctx, symbol, c.Config.Timeframe, c.Config.Limit)
	if err != nil {
		return 0, &fetchError{err: err}
	}
	if len(candles) == 0 {
		return 0, nil
	}

	inserted := 0
	for i := range candles {
		ok, err := c.candles.InsertIgnore(ctx, &candles[i])
		if err != nil {
			return inserted, fmt.Errorf("insert candle %s %s: %w", symbol, candles[i].Timestamp, err)
		}
		if ok {
			inserted++
		}
	}

	newest := candles[0]
	for _, candle := range candles[1:] {
		if candle.Timestamp.After(newest.Timestamp) {
			newest = candle
		}
	}
	if c.cache != nil {
		key := cache.LatestCandleKey(c.exchange.Name(), symbol)
		if err := c.cache.Set(ctx, key, newest, cache.LatestCandleTTL); err != nil {
			c.Log.WithError(err).WithField("key", key).Warn("failed to cache latest candle")
		}
	}

	c.Log.WithFields(logger.Fields{
		"symbol":   symbol,
		"close":    newest.Close.String(),
		"inserted": inserted,
	}).Info("OHLCV data stored")
	return inserted, nil
}
