package cart

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/pkg/db"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
)

// GormRepository persists cart lines in the cart_items table.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided DB handle.
func NewRepository(conn *gorm.DB) *GormRepository {
	return &GormRepository{db: conn}
}

// WithTx scopes the repository to the provided transaction.
func (r *GormRepository) WithTx(tx *gorm.DB) *GormRepository {
	if tx == nil {
		return r
	}
	return &GormRepository{db: tx}
}

func (r *GormRepository) Find(ctx context.Context, userID, productID uint64) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *GormRepository) ListByUser(ctx context.Context, userID uint64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("order_position ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepository) MaxPosition(ctx context.Context, userID uint64) (int, error) {
	var maxPos int
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(order_position), 0)").
		Scan(&maxPos).Error
	if err != nil {
		return 0, err
	}
	return maxPos, nil
}

func (r *GormRepository) Create(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *GormRepository) UpdateLine(ctx context.Context, id uint64, quantity, position int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":       quantity,
			"order_position": position,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *GormRepository) Delete(ctx context.Context, userID, productID uint64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{}).Error
}

func (r *GormRepository) DeleteAll(ctx context.Context, userID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
