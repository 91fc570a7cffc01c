package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stockbot/src/database"
	"stockbot/src/model"
)

// OrderRepository handles read/write operations for orders and their logs.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateWithAutoLog inserts a new order plus its first log row.
func (r *OrderRepository) CreateWithAutoLog(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			logger.WithFields(map[string]interface{}{
				"repo":   "OrderRepository",
				"op":     "CreateWithAutoLog",
				"symbol": order.Symbol,
			}).WithError(err).Error("Failed to create order")
			return err
		}

		log := model.OrderLog{
			OrderID:  order.ID,
			Symbol:   order.Symbol,
			Side:     order.Side,
			Quantity: order.Quantity,
			Status:   order.Status,
			Reason:   "submitted",
		}
		return tx.Create(&log).Error
	})
}

// UpdateStatusWithAutoLog writes the order's current state and appends a
// log row describing the transition.
func (r *OrderRepository) UpdateStatusWithAutoLog(ctx context.Context, order *model.Order, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(order).Error; err != nil {
			logger.WithFields(map[string]interface{}{
				"repo":     "OrderRepository",
				"op":       "UpdateStatusWithAutoLog",
				"order_id": order.ID,
				"status":   order.Status,
			}).WithError(err).Error("Failed to update order")
			return err
		}

		log := model.OrderLog{
			OrderID:  order.ID,
			Symbol:   order.Symbol,
			Side:     order.Side,
			Quantity: order.Quantity,
			Status:   order.Status,
			Reason:   reason,
		}
		return tx.Create(&log).Error
	})
}

// FindPending returns all orders still awaiting a terminal state.
func (r *OrderRepository) FindPending(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order

	err := r.db.WithContext(ctx).
		Where("status = ?", model.OrderStatusPending).
		Order("submitted_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
