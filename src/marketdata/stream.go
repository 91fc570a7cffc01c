package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const defaultStreamURL = "wss://stream.data.alpaca.markets/v2/iex"

// QuoteHandler receives each streamed trade price.
type QuoteHandler func(symbol string, price decimal.Decimal, at time.Time)

// Stream consumes the live trade feed over a websocket and pushes prices to
// a handler. It reconnects with backoff until the context ends; the REST
// client remains the fallback when the stream is down.
type Stream struct {
	apiKey    string
	apiSecret string
	url       string
	symbols   []string
	handler   QuoteHandler
}

func NewStream(apiKey, apiSecret, url string, symbols []string, handler QuoteHandler) *Stream {
	if url == "" {
		url = defaultStreamURL
	}
	return &Stream{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		url:       url,
		symbols:   symbols,
		handler:   handler,
	}
}

type streamMessage struct {
	Type      string  `json:"T"`
	Symbol    string  `json:"S"`
	Price     float64 `json:"p"`
	Timestamp string  `json:"t"`
	Message   string  `json:"msg"`
}

// Run blocks until ctx is done, reconnecting on every failure.
func (s *Stream) Run(ctx context.Context) {
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}

		logger.WithError(err).WithField("backoff", backoff.String()).
			Warn("quote stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (s *Stream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial quote stream: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	auth := map[string]string{"action": "auth", "key": s.apiKey, "secret": s.apiSecret}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("auth quote stream: %w", err)
	}

	sub := map[string]any{"action": "subscribe", "trades": s.symbols}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe quote stream: %w", err)
	}

	logger.WithField("symbols", s.symbols).Info("quote stream connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read quote stream: %w", err)
		}

		var msgs []streamMessage
		if err := json.Unmarshal(raw, &msgs); err != nil {
			logger.WithError(err).Debug("skipping unparseable stream frame")
			continue
		}

		for _, msg := range msgs {
			switch msg.Type {
			case "t":
				if msg.Price <= 0 || s.handler == nil {
					continue
				}
				at, _ := time.Parse(time.RFC3339Nano, msg.Timestamp)
				s.handler(msg.Symbol, decimal.NewFromFloat(msg.Price), at)
			case "error":
				logger.WithField("msg", msg.Message).Error("quote stream error frame")
			}
		}
	}
}
