package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stockbot/src/database"
	"stockbot/src/model"
)

// BotStateRepository manages the single bot-state row. The operator
// surface reads it; only the engine writes it.
type BotStateRepository struct {
	db *gorm.DB
}

func NewBotStateRepository() *BotStateRepository {
	return &BotStateRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *BotStateRepository) WithDB(db *gorm.DB) *BotStateRepository {
	return &BotStateRepository{db: db}
}

// Get loads the state row, creating it with defaults on first use.
func (r *BotStateRepository) Get(ctx context.Context, mode string) (*model.BotState, error) {
	var state model.BotState

	err := r.db.WithContext(ctx).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = model.BotState{Mode: mode}
		if err := r.db.WithContext(ctx).Create(&state).Error; err != nil {
			return nil, err
		}
		return &state, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Save writes the state row back.
func (r *BotStateRepository) Save(ctx context.Context, state *model.BotState) error {
	err := r.db.WithContext(ctx).Save(state).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "BotStateRepository",
			"op":   "Save",
		}).WithError(err).Error("Failed to save bot state")
	}
	return err
}
