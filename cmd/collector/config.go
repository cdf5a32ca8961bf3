package collector

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Interval  time.Duration `envconfig:"COLLECTOR_INTERVAL" default:"60s"`
	Limit     int           `envconfig:"COLLECTOR_LIMIT" default:"10"`
	Timeframe string        `envconfig:"COLLECTOR_TIMEFRAME" default:"1h"`
	Pairs     []string      `envconfig:"TRADING_PAIRS" default:"BTC/USDT,ETH/USDT,SOL/USDT,BNB/USDT"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
