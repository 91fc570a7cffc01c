// REST API CLIENT FOR THE ALPACA TRADING API (v2)
// RESTY ONLY + INTERNAL RETRY
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/model"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second

	defaultAlpacaBaseURL = "https://paper-api.alpaca.markets"
)

// AlpacaClient talks to the Alpaca trading API. Transport-level failures and
// 5xx/429 responses are retried inside resty; API rejections are classified
// at the response boundary and surface as plain or critical errors.
type AlpacaClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == 429 || code >= 500
}

func NewAlpacaClient(apiKey, apiSecret, baseURL string) *AlpacaClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultAlpacaBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp).
		SetHeader("APCA-API-KEY-ID", apiKey).
		SetHeader("APCA-API-SECRET-KEY", apiSecret)

	return &AlpacaClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		http:      httpClient,
	}
}

// ---------------------------------------------------
// Response payloads. Alpaca serializes numbers as strings.
// ---------------------------------------------------

type alpacaAccount struct {
	Cash        string `json:"cash"`
	Equity      string `json:"equity"`
	BuyingPower string `json:"buying_power"`
}

type alpacaOrder struct {
	ID             string  `json:"id"`
	ClientOrderID  string  `json:"client_order_id"`
	Symbol         string  `json:"symbol"`
	Qty            string  `json:"qty"`
	FilledQty      string  `json:"filled_qty"`
	FilledAvgPrice *string `json:"filled_avg_price"`
	Side           string  `json:"side"`
	Status         string  `json:"status"`
	SubmittedAt    string  `json:"submitted_at"`
	FilledAt       *string `json:"filled_at"`
}

type alpacaPosition struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
	CurrentPrice  string `json:"current_price"`
}

func (c *AlpacaClient) checkResp(resp *resty.Response, op string) error {
	if !resp.IsError() {
		return nil
	}

	var apiErr apiError
	if err := json.Unmarshal(resp.Body(), &apiErr); err != nil {
		apiErr.Message = string(resp.Body())
	}

	err := classify(resp.StatusCode(), apiErr)
	logger.WithError(err).WithField("op", op).Error("alpaca request rejected")
	return err
}

// ---------------------------------------------------
// Broker implementation
// ---------------------------------------------------

func (c *AlpacaClient) GetAccount(ctx context.Context) (Account, error) {
	var out alpacaAccount

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v2/account")
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	if err := c.checkResp(resp, "GetAccount"); err != nil {
		return Account{}, err
	}

	account := Account{}
	if account.Cash, err = parseDecimal(out.Cash, "cash"); err != nil {
		return Account{}, err
	}
	if account.Equity, err = parseDecimal(out.Equity, "equity"); err != nil {
		return Account{}, err
	}
	if account.BuyingPower, err = parseDecimal(out.BuyingPower, "buying_power"); err != nil {
		return Account{}, err
	}
	return account, nil
}

func (c *AlpacaClient) PlaceMarketOrder(ctx context.Context, symbol string, qty int64, side string) (PlacedOrder, error) {
	clientOrderID := newClientOrderID()

	body := map[string]string{
		"symbol":          symbol,
		"qty":             strconv.FormatInt(qty, 10),
		"side":            side,
		"type":            "market",
		"time_in_force":   "day",
		"client_order_id": clientOrderID,
	}

	var out alpacaOrder
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v2/orders")
	if err != nil {
		return PlacedOrder{}, fmt.Errorf("place market order %s %s: %w", side, symbol, err)
	}
	if err := c.checkResp(resp, "PlaceMarketOrder"); err != nil {
		return PlacedOrder{}, err
	}

	submittedAt, _ := time.Parse(time.RFC3339, out.SubmittedAt)

	logger.WithFields(logger.Fields{
		"symbol":   symbol,
		"side":     side,
		"qty":      qty,
		"order_id": out.ID,
	}).Info("market order submitted")

	return PlacedOrder{
		OrderID:       out.ID,
		ClientOrderID: clientOrderID,
		SubmittedAt:   submittedAt,
	}, nil
}

func (c *AlpacaClient) CancelOrder(ctx context.Context, orderID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/v2/orders/" + orderID)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return c.checkResp(resp, "CancelOrder")
}

func (c *AlpacaClient) GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error) {
	var out alpacaOrder

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v2/orders/" + orderID)
	if err != nil {
		return OrderStatus{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	if err := c.checkResp(resp, "GetOrderStatus"); err != nil {
		return OrderStatus{}, err
	}

	status := OrderStatus{
		OrderID: out.ID,
		Status:  mapOrderStatus(out.Status),
	}

	if out.FilledQty != "" {
		filled, err := strconv.ParseFloat(out.FilledQty, 64)
		if err != nil {
			return OrderStatus{}, fmt.Errorf("parse filled_qty %q: %w", out.FilledQty, err)
		}
		status.FilledQty = int64(filled)
	}
	if out.FilledAvgPrice != nil && *out.FilledAvgPrice != "" {
		price, err := parseDecimal(*out.FilledAvgPrice, "filled_avg_price")
		if err != nil {
			return OrderStatus{}, err
		}
		status.FilledPrice = price
	}
	if out.FilledAt != nil && *out.FilledAt != "" {
		if t, err := time.Parse(time.RFC3339, *out.FilledAt); err == nil {
			status.FilledAt = &t
		}
	}

	return status, nil
}

func (c *AlpacaClient) GetOpenPositions(ctx context.Context) ([]BrokerPosition, error) {
	var out []alpacaPosition

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v2/positions")
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	if err := c.checkResp(resp, "GetOpenPositions"); err != nil {
		return nil, err
	}

	positions := make([]BrokerPosition, 0, len(out))
	for _, p := range out {
		qty, err := strconv.ParseFloat(p.Qty, 64)
		if err != nil {
			return nil, fmt.Errorf("parse position qty %q: %w", p.Qty, err)
		}
		entry, err := parseDecimal(p.AvgEntryPrice, "avg_entry_price")
		if err != nil {
			return nil, err
		}
		current, err := parseDecimal(p.CurrentPrice, "current_price")
		if err != nil {
			return nil, err
		}
		positions = append(positions, BrokerPosition{
			Symbol:       p.Symbol,
			Quantity:     int64(qty),
			EntryPrice:   entry,
			CurrentPrice: current,
		})
	}
	return positions, nil
}

func (c *AlpacaClient) ClosePosition(ctx context.Context, symbol string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/v2/positions/" + symbol)
	if err != nil {
		return fmt.Errorf("close position %s: %w", symbol, err)
	}
	return c.checkResp(resp, "ClosePosition")
}

// ---------------------------------------------------
// Helpers
// ---------------------------------------------------

// newClientOrderID builds a unique client id so a resubmitted request can
// never double-fill on the broker side.
// sb-<4-digit-int>-<uuid>
func newClientOrderID() string {
	r := 1000 + rand.Intn(9000)
	return fmt.Sprintf("sb-%d-%s", r, uuid.NewString())
}

func mapOrderStatus(s string) string {
	switch strings.ToLower(s) {
	case "filled":
		return model.OrderStatusFilled
	case "canceled", "cancelled", "done_for_day":
		return model.OrderStatusCancelled
	case "rejected", "stopped", "suspended":
		return model.OrderStatusRejected
	case "expired":
		return model.OrderStatusExpired
	default:
		// new, accepted, pending_new, partially_filled, ...
		return model.OrderStatusPending
	}
}
