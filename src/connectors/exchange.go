package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cryptoagents/src/model"
	"cryptoagents/src/security"
	"cryptoagents/src/utils"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrUnsupportedTimeframe = errors.New("unsupported timeframe")
	ErrNoPrice              = errors.New("exchange returned no price")
)

// Timeframes maps the supported candle timeframes to goex periods and their length.
var Timeframes = map[string]struct {
	Period   goex.KlinePeriod
	Duration time.Duration
}{
	"1m":  {goex.KLINE_PERIOD_1MIN, time.Minute},
	"5m":  {goex.KLINE_PERIOD_5MIN, 5 * time.Minute},
	"15m": {goex.KLINE_PERIOD_15MIN, 15 * time.Minute},
	"30m": {goex.KLINE_PERIOD_30MIN, 30 * time.Minute},
	"1h":  {goex.KLINE_PERIOD_1H, time.Hour},
	"4h":  {goex.KLINE_PERIOD_4H, 4 * time.Hour},
	"1d":  {goex.KLINE_PERIOD_1DAY, 24 * time.Hour},
}

// Order is the exchange-agnostic result of a placed order.
type Order struct {
	ID     string
	Status string
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// GoexExchange adapts a goex spot client to the pipeline's exchange boundary.
// goex calls are not cancellable, so the context is only checked up front.
type GoexExchange struct {
	name string
	api  goex.API
	log  *logger.Entry
}

func NewGoexExchange(name string, api goex.API) *GoexExchange {
	return &GoexExchange{
		name: strings.ToLower(name),
		api:  api,
		log:  logger.WithFields(logger.Fields{"component": "exchange", "exchange": name}),
	}
}

// NewBinance builds the Binance spot client. Credentials may be stored
// encrypted ("enc:" prefix).
func NewBinance(cfg Config) (*GoexExchange, error) {
	apiKey, err := security.Resolve(cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("resolve BINANCE_API_KEY: %w", err)
	}
	apiSecret, err := security.Resolve(cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("resolve BINANCE_API_SECRET: %w", err)
	}

	apiConfig := &goex.APIConfig{
		HttpClient:   &http.Client{Timeout: cfg.Timeout},
		Endpoint:     cfg.ExchangeEndpoint,
		ApiKey:       apiKey,
		ApiSecretKey: apiSecret,
	}
	return NewGoexExchange(cfg.ExchangeName, binance.NewWithConfig(apiConfig)), nil
}

func (e *GoexExchange) Name() string {
	return e.name
}

// ToPair converts "BTC/USDT" into a goex currency pair.
func ToPair(symbol string) (goex.CurrencyPair, error) {
	base, quote, err := utils.SplitPair(symbol)
	if err != nil {
		return goex.CurrencyPair{}, err
	}
	return goex.NewCurrencyPair(goex.Currency{Symbol: base}, goex.Currency{Symbol: quote}), nil
}

// FetchOHLCV returns up to limit recent candles, oldest first, stamped with
// symbol as configured (not the exchange's spelling).
func (e *GoexExchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tf, ok := Timeframes[timeframe]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTimeframe, timeframe)
	}
	pair, err := ToPair(symbol)
	if err != nil {
		return nil, err
	}

	klines, err := e.api.GetKlineRecords(pair, tf.Period, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, timeframe, err)
	}

	candles := make([]model.Candle, 0, len(klines))
	for i := range klines {
		k := klines[i]
		candles = append(candles, model.Candle{
			Symbol:    symbol,
			Timestamp: time.Unix(k.Timestamp, 0).UTC(),
			Exchange:  e.name,
			Timeframe: timeframe,
			Open:      decimal.NewFromFloat(k.Open),
			High:      decimal.NewFromFloat(k.High),
			Low:       decimal.NewFromFloat(k.Low),
			Close:     decimal.NewFromFloat(k.Close),
			Volume:    decimal.NewFromFloat(k.Vol),
		})
	}
	return candles, nil
}

// FetchTicker returns the last traded price.
func (e *GoexExchange) FetchTicker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	pair, err := ToPair(symbol)
	if err != nil {
		return decimal.Zero, err
	}

	ticker, err := e.api.GetTicker(pair)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch ticker %s: %w", symbol, err)
	}
	if ticker == nil || ticker.Last <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	return decimal.NewFromFloat(ticker.Last), nil
}

// FetchBalance returns free balances keyed by currency symbol.
func (e *GoexExchange) FetchBalance(ctx context.Context) (map[string]decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	account, err := e.api.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}

	balances := make(map[string]decimal.Decimal, len(account.SubAccounts))
	for currency, sub := range account.SubAccounts {
		if sub.Amount == 0 {
			continue
		}
		balances[currency.Symbol] = decimal.NewFromFloat(sub.Amount)
	}
	return balances, nil
}

// PlaceMarketOrder sends a market buy or sell for amount units of the base currency.
func (e *GoexExchange) PlaceMarketOrder(
	ctx context.Context,
	side model.Side,
	symbol string,
	amount, price decimal.Decimal,
) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, err := ToPair(symbol)
	if err != nil {
		return nil, err
	}

	var placed *goex.Order
	switch side {
	case model.SideBuy:
		placed, err = e.api.MarketBuy(amount.String(), price.String(), pair)
	case model.SideSell:
		placed, err = e.api.MarketSell(amount.String(), price.String(), pair)
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidSide, side)
	}
	if err != nil {
		return nil, fmt.Errorf("place %s order %s: %w", side, symbol, err)
	}

	order := &Order{
		ID:     placed.OrderID2,
		Status: strings.ToLower(fmt.Sprint(placed.Status)),
		Price:  price,
		Amount: amount,
	}
	if placed.AvgPrice > 0 {
		order.Price = decimal.NewFromFloat(placed.AvgPrice)
	}
	if placed.DealAmount > 0 {
		order.Amount = decimal.NewFromFloat(placed.DealAmount)
	}

	e.log.WithFields(logger.Fields{
		"symbol":   symbol,
		"side":     side,
		"order_id": order.ID,
		"status":   order.Status,
	}).Info("order placed")
	return order, nil
}
