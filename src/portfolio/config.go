package portfolio

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Interval         time.Duration `envconfig:"PORTFOLIO_INTERVAL" default:"60s"`
	TrailingLookback int           `envconfig:"PORTFOLIO_TRAILING_LOOKBACK" default:"20"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
