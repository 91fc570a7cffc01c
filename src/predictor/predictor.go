package predictor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Prediction is a directional call with a confidence score in [0, 1].
type Prediction struct {
	Symbol     string
	Direction  string
	Confidence decimal.Decimal
	At         time.Time
}

// Predictor produces directional predictions. The model behind it is an
// external collaborator; the engine only consumes direction + confidence.
type Predictor interface {
	Predict(ctx context.Context, symbol string) (Prediction, error)
}

// HTTPPredictor queries a prediction service over REST.
type HTTPPredictor struct {
	http *resty.Client
}

type predictionResponse struct {
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
}

func NewHTTPPredictor(baseURL string, timeout time.Duration) *HTTPPredictor {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2)

	return &HTTPPredictor{http: httpClient}
}

func (p *HTTPPredictor) Predict(ctx context.Context, symbol string) (Prediction, error) {
	var out predictionResponse

	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&out).
		Get("/v1/predict")
	if err != nil {
		return Prediction{}, fmt.Errorf("predict %s: %w", symbol, err)
	}
	if resp.IsError() {
		return Prediction{}, fmt.Errorf("predict %s: status %d", symbol, resp.StatusCode())
	}

	direction := strings.ToLower(out.Direction)
	if direction != DirectionUp && direction != DirectionDown {
		return Prediction{}, fmt.Errorf("predict %s: unknown direction %q", symbol, out.Direction)
	}

	pred := Prediction{
		Symbol:     symbol,
		Direction:  direction,
		Confidence: decimal.NewFromFloat(out.Confidence),
		At:         time.Now().UTC(),
	}

	logger.WithFields(logger.Fields{
		"symbol":     symbol,
		"direction":  pred.Direction,
		"confidence": pred.Confidence.String(),
	}).Debug("prediction received")

	return pred, nil
}
