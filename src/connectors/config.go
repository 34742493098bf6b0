package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AlpacaPaperBaseURL string `envconfig:"ALPACA_PAPER_BASE_URL" default:"https://paper-api.alpaca.markets"`
	AlpacaLiveBaseURL  string `envconfig:"ALPACA_LIVE_BASE_URL" default:"https://api.alpaca.markets"`

	CoinbaseBaseURL string `envconfig:"COINBASE_BASE_URL" default:"https://api.exchange.coinbase.com"`

	HTTPTimeout time.Duration `envconfig:"BROKER_HTTP_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
