package cart

import (
	"context"

	"github.com/angelmondragon/grocery-backend/pkg/db/models"
)

// Repository is the persistence surface of the cart engine. Find returns
// (nil, nil) when the line does not exist.
type Repository interface {
	Find(ctx context.Context, userID, productID uint64) (*models.CartItem, error)
	ListByUser(ctx context.Context, userID uint64) ([]models.CartItem, error)
	MaxPosition(ctx context.Context, userID uint64) (int, error)
	Create(ctx context.Context, item *models.CartItem) error
	UpdateLine(ctx context.Context, id uint64, quantity, position int) error
	Delete(ctx context.Context, userID, productID uint64) error
	DeleteAll(ctx context.Context, userID uint64) (int64, error)
}

// ProductReader loads catalog rows. FindByID returns gorm.ErrRecordNotFound
// for unknown products; FindByIDs omits them.
type ProductReader interface {
	FindByID(ctx context.Context, id uint64) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]models.Product, error)
}

type stockRecorder interface {
	StockRejected(operation string)
}
