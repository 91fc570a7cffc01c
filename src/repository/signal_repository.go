package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stockbot/src/database"
	"stockbot/src/model"
)

// SignalRepository persists trade signals across their lifecycle.
type SignalRepository struct {
	db *gorm.DB
}

func NewSignalRepository() *SignalRepository {
	return &SignalRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *SignalRepository) WithDB(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Create inserts a new signal row.
func (r *SignalRepository) Create(ctx context.Context, signal *model.Signal) error {
	err := r.db.WithContext(ctx).Create(signal).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "SignalRepository",
			"op":     "Create",
			"symbol": signal.Symbol,
			"side":   signal.Side,
		}).WithError(err).Error("Failed to create signal")
		return err
	}
	return nil
}

// UpdateStatus moves a signal to a new status.
func (r *SignalRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	err := r.db.WithContext(ctx).
		Model(&model.Signal{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "UpdateStatus",
			"signal_id": id,
			"status":    status,
		}).WithError(err).Error("Failed to update signal status")
	}
	return err
}

// FindByToken fetches a signal by its approval token.
// Returns (nil, nil) when no signal matches.
func (r *SignalRepository) FindByToken(ctx context.Context, token string) (*model.Signal, error) {
	var signal model.Signal

	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&signal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &signal, nil
}

// FindRecent returns the latest signals, newest first.
func (r *SignalRepository) FindRecent(ctx context.Context, limit int) ([]model.Signal, error) {
	var signals []model.Signal

	q := r.db.WithContext(ctx).Order("generated_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}
