package bot

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AlpacaAPIKey    string `envconfig:"ALPACA_API_KEY"`
	AlpacaAPISecret string `envconfig:"ALPACA_API_SECRET"`
	AlpacaBaseURL   string `envconfig:"ALPACA_BASE_URL" default:"https://paper-api.alpaca.markets"`
	AlpacaDataURL   string `envconfig:"ALPACA_DATA_URL" default:"https://data.alpaca.markets"`
	AlpacaStreamURL string `envconfig:"ALPACA_STREAM_URL"`

	EnableQuoteStream bool `envconfig:"ENABLE_QUOTE_STREAM" default:"true"`
	EnableDB          bool `envconfig:"ENABLE_DB" default:"true"`

	PredictorURL string `envconfig:"PREDICTOR_URL" default:"http://localhost:9000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
