package repository

import (
	"context"
	"encoding/json"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stockbot/src/database"
	"stockbot/src/model"
)

// ExceptionRepository persists system-level errors for operator review.
type ExceptionRepository struct {
	db *gorm.DB
}

func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *ExceptionRepository) WithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create inserts an exception row.
func (r *ExceptionRepository) Create(ctx context.Context, exc *model.Exception) error {
	return r.db.WithContext(ctx).Create(exc).Error
}

// Capture records an error with its context. A persistence failure here is
// only logged; capturing must never block trading.
func Capture(
	ctx context.Context,
	repo *ExceptionRepository,
	service, module, method, level string,
	err error,
	extra map[string]interface{},
) {
	if err == nil || repo == nil {
		return
	}

	contextJSON := ""
	if len(extra) > 0 {
		if raw, jsonErr := json.Marshal(extra); jsonErr == nil {
			contextJSON = string(raw)
		}
	}

	exc := &model.Exception{
		Service: service,
		Module:  module,
		Method:  method,
		Message: err.Error(),
		Level:   level,
		Context: contextJSON,
	}

	if createErr := repo.Create(ctx, exc); createErr != nil {
		logger.WithError(createErr).WithFields(map[string]interface{}{
			"service": service,
			"module":  module,
			"method":  method,
		}).Error("Failed to persist exception, in-memory state remains authoritative")
	}
}
