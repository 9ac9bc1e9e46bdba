package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order, then its lines. Callers wrap it in a transaction.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	items := order.Items
	order.Items = nil
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		order.Items = items
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
			order.Items = items
			return err
		}
	}
	order.Items = items
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uint64) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(ctx, "order_number = ?", orderNumber)
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return r.findOne(ctx, "payment_session_id = ?", sessionID)
}

func (r *repository) FindByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	return r.findOne(ctx, "payment_intent_id = ?", intentID)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where(query, arg).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) TransitionPaymentStatus(ctx context.Context, id uint64, from, to enums.PaymentStatus, intentID *string) (bool, error) {
	updates := map[string]any{
		"payment_status": to,
		"updated_at":     time.Now().UTC(),
	}
	if intentID != nil && *intentID != "" {
		updates["payment_intent_id"] = *intentID
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
