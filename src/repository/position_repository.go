package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stockbot/src/database"
	"stockbot/src/model"
)

// PositionRepository persists position rows; the engine's in-memory map
// stays authoritative for trading decisions.
type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository() *PositionRepository {
	return &PositionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create inserts a new position row.
func (r *PositionRepository) Create(ctx context.Context, position *model.Position) error {
	err := r.db.WithContext(ctx).Create(position).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "Create",
			"symbol": position.Symbol,
		}).WithError(err).Error("Failed to create position")
	}
	return err
}

// Save writes the full position row, used on price updates and stop moves.
func (r *PositionRepository) Save(ctx context.Context, position *model.Position) error {
	err := r.db.WithContext(ctx).Save(position).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "Save",
			"position_id": position.ID,
		}).WithError(err).Error("Failed to save position")
	}
	return err
}

// Close marks a position closed with its exit time.
func (r *PositionRepository) Close(ctx context.Context, id uint, exitTime time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":    model.PositionStatusClosed,
			"exit_time": exitTime,
		}).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "Close",
			"position_id": id,
		}).WithError(err).Error("Failed to close position")
	}
	return err
}

// FindOpen returns all open positions.
func (r *PositionRepository) FindOpen(ctx context.Context) ([]model.Position, error) {
	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("status = ?", model.PositionStatusOpen).
		Order("entry_time ASC").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}
