package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const defaultDataBaseURL = "https://data.alpaca.markets"

// MarketData is the quote boundary the engine consumes.
type MarketData interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	IsMarketOpen(ctx context.Context) (bool, error)
}

// Client fetches quotes and the market clock over REST.
type Client struct {
	http  *resty.Client
	clock *resty.Client
}

type latestTradeResponse struct {
	Symbol string `json:"symbol"`
	Trade  struct {
		Price     float64 `json:"p"`
		Timestamp string  `json:"t"`
	} `json:"trade"`
}

type clockResponse struct {
	IsOpen    bool   `json:"is_open"`
	NextOpen  string `json:"next_open"`
	NextClose string `json:"next_close"`
}

// NewClient builds a market-data client. Quotes come from the data host,
// the market clock from the trading host, both with the same credentials.
func NewClient(apiKey, apiSecret, dataBaseURL, tradingBaseURL string) *Client {
	if strings.TrimSpace(dataBaseURL) == "" {
		dataBaseURL = defaultDataBaseURL
	}

	newResty := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(strings.TrimRight(base, "/")).
			SetTimeout(10 * time.Second).
			SetRetryCount(3).
			SetRetryWaitTime(300 * time.Millisecond).
			SetHeader("APCA-API-KEY-ID", apiKey).
			SetHeader("APCA-API-SECRET-KEY", apiSecret)
	}

	return &Client{
		http:  newResty(dataBaseURL),
		clock: newResty(tradingBaseURL),
	}
}

func (c *Client) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var out latestTradeResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v2/stocks/" + symbol + "/trades/latest")
	if err != nil {
		return decimal.Zero, fmt.Errorf("latest price %s: %w", symbol, err)
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("latest price %s: status %d", symbol, resp.StatusCode())
	}
	if out.Trade.Price <= 0 {
		return decimal.Zero, fmt.Errorf("latest price %s: no trade in response", symbol)
	}

	return decimal.NewFromFloat(out.Trade.Price), nil
}

func (c *Client) IsMarketOpen(ctx context.Context) (bool, error) {
	var out clockResponse

	resp, err := c.clock.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v2/clock")
	if err != nil {
		return false, fmt.Errorf("market clock: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("market clock: status %d", resp.StatusCode())
	}

	logger.WithField("is_open", out.IsOpen).Debug("market clock fetched")
	return out.IsOpen, nil
}
