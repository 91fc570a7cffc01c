package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stockbot/src/database"
	"stockbot/src/model"
)

// TradeRepository persists closed-trade records.
type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository() *TradeRepository {
	return &TradeRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create inserts a new trade record.
func (r *TradeRepository) Create(ctx context.Context, trade *model.TradeRecord) error {
	err := r.db.WithContext(ctx).Create(trade).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRepository",
			"op":     "Create",
			"symbol": trade.Symbol,
		}).WithError(err).Error("Failed to create trade record")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "Create",
		"trade_id": trade.ID,
		"symbol":   trade.Symbol,
		"pnl":      trade.RealizedPnL.String(),
	}).Info("Trade record created")

	return nil
}

// FindBySymbol returns trades for a symbol, most recent first.
func (r *TradeRepository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]model.TradeRecord, error) {
	var trades []model.TradeRecord

	q := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("exit_time DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&trades).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRepository",
			"op":     "FindBySymbol",
			"symbol": symbol,
		}).WithError(err).Error("Failed to load trade records")
		return nil, err
	}
	return trades, nil
}
