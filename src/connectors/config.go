package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/nntaoli-project/goex/binance"
)

type Config struct {
	ExchangeName     string        `envconfig:"EXCHANGE_NAME" default:"binance"`
	ExchangeEndpoint string        `envconfig:"EXCHANGE_ENDPOINT" default:""`
	APIKey           string        `envconfig:"BINANCE_API_KEY"`
	APISecret        string        `envconfig:"BINANCE_API_SECRET"`
	Timeout          time.Duration `envconfig:"EXCHANGE_TIMEOUT" default:"15s"`

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
	TelegramAPIURL   string `envconfig:"TELEGRAM_API_URL" default:"https://api.telegram.org"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	if config.ExchangeEndpoint == "" {
		config.ExchangeEndpoint = binance.GLOBAL_API_BASE_URL
	}
	return config
}
