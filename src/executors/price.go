package executors

import (
	"context"
	"errors"
	"fmt"

	"cryptoagents/src/cache"
	"cryptoagents/src/connectors"
	"cryptoagents/src/model"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PriceSource gives the price an order is sized and recorded at.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type tickerFetcher interface {
	FetchTicker(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type cacheReader interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
}

type closeReader interface {
	LatestClose(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// TickerPrice asks the exchange for the last traded price.
type TickerPrice struct {
	Exchange tickerFetcher
}

func (p TickerPrice) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return p.Exchange.FetchTicker(ctx, symbol)
}

// StorePrice uses the newest collected candle close.
type StorePrice struct {
	Candles closeReader
}

func (p StorePrice) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := p.Candles.LatestClose(ctx, symbol)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, fmt.Errorf("%w: no stored candles for %s", connectors.ErrNoPrice, symbol)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("latest close %s: %w", symbol, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", connectors.ErrNoPrice, symbol)
	}
	return price, nil
}

// CachedPrice reads the latest candle the collector mirrors into the cache
// and defers to Fallback on a miss, a cache error or a non-positive close.
type CachedPrice struct {
	Cache    cacheReader
	Exchange string
	Fallback PriceSource
}

func (p CachedPrice) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var candle model.Candle
	key := cache.LatestCandleKey(p.Exchange, symbol)
	ok, err := p.Cache.Get(ctx, key, &candle)
	if err != nil {
		logger.WithError(err).WithField("key", key).Warn("price cache read failed")
	}
	if ok && candle.Close.IsPositive() {
		return candle.Close, nil
	}
	return p.Fallback.Price(ctx, symbol)
}
