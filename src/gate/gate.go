package gate

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/config"
	"stockbot/src/model"
	"stockbot/src/predictor"
)

// Gate turns external predictions into trade signals and routes them for
// execution. In hybrid mode lower-confidence signals land in the approval
// queue, where each token is single-use: approving or rejecting removes it.
type Gate struct {
	cfg *config.Config

	mu      sync.Mutex
	pending map[string]*model.Signal
}

func NewGate(cfg *config.Config) *Gate {
	return &Gate{
		cfg:     cfg,
		pending: make(map[string]*model.Signal),
	}
}

// Evaluate maps a prediction onto a candidate signal. Only two combinations
// produce one: no position + up means buy, an open position + down means
// exit. Below the confidence threshold nothing is produced at all.
func (g *Gate) Evaluate(
	pred predictor.Prediction,
	price decimal.Decimal,
	existing *model.Position,
) *model.Signal {

	if pred.Confidence.LessThan(g.cfg.ConfidenceThresholdDec()) {
		return nil
	}

	var side, reasoning string
	hasPosition := existing != nil && existing.Status == model.PositionStatusOpen

	switch {
	case !hasPosition && pred.Direction == predictor.DirectionUp:
		side = model.SideBuy
		reasoning = fmt.Sprintf("up prediction at %s confidence, no open position",
			pred.Confidence.StringFixed(2))
	case hasPosition && pred.Direction == predictor.DirectionDown:
		side = model.SideSell
		reasoning = fmt.Sprintf("down prediction at %s confidence, exiting open position",
			pred.Confidence.StringFixed(2))
	default:
		return nil
	}

	return &model.Signal{
		Token:       uuid.NewString(),
		Symbol:      pred.Symbol,
		Side:        side,
		Confidence:  pred.Confidence,
		EntryPrice:  price,
		Status:      model.SignalStatusPending,
		Reasoning:   reasoning,
		GeneratedAt: time.Now().UTC(),
	}
}

// Route decides whether the signal auto-executes. Auto mode always
// executes, manual never does, hybrid only above the auto-execute
// threshold. Signals that do not auto-execute are queued for approval.
func (g *Gate) Route(signal *model.Signal) bool {
	auto := false
	switch g.cfg.Mode {
	case model.ModeAuto:
		auto = true
	case model.ModeManual:
		auto = false
	case model.ModeHybrid:
		auto = signal.Confidence.GreaterThanOrEqual(g.cfg.AutoExecuteThresholdDec())
	}

	signal.AutoExecute = auto
	if !auto {
		g.enqueue(signal)
	}
	return auto
}

func (g *Gate) enqueue(signal *model.Signal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending[signal.Token] = signal

	logger.WithFields(logger.Fields{
		"token":  signal.Token,
		"symbol": signal.Symbol,
		"side":   signal.Side,
	}).Info("signal queued for approval")
}

// Approve resolves a pending signal. Unknown or already-resolved tokens
// return false rather than an error, which makes a double approval a no-op.
func (g *Gate) Approve(token string) (*model.Signal, bool) {
	return g.resolve(token, model.SignalStatusApproved)
}

// Reject resolves a pending signal as rejected. Same single-use semantics
// as Approve.
func (g *Gate) Reject(token string) (*model.Signal, bool) {
	return g.resolve(token, model.SignalStatusRejected)
}

func (g *Gate) resolve(token, status string) (*model.Signal, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	signal, ok := g.pending[token]
	if !ok {
		logger.WithField("token", token).Warn("approval token not found or already resolved")
		return nil, false
	}

	delete(g.pending, token)

	now := time.Now().UTC()
	signal.Status = status
	signal.ResolvedAt = &now
	return signal, true
}

// Pending returns a copy of the queued signals, oldest first.
func (g *Gate) Pending() []model.Signal {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]model.Signal, 0, len(g.pending))
	for _, s := range g.pending {
		out = append(out, *s)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].GeneratedAt.Before(out[j-1].GeneratedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
