package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/internal/payments"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

// Repository defines persistence operations for the orders and order_items tables.
// Finders return gorm.ErrRecordNotFound when nothing matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uint64) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	FindByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error)
	// TransitionPaymentStatus moves an order out of from; false means another writer got there first.
	TransitionPaymentStatus(ctx context.Context, id uint64, from, to enums.PaymentStatus, intentID *string) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentConfirmer is the slice of the payment adapter the materializer needs.
type PaymentConfirmer interface {
	ConfirmSession(ctx context.Context, sessionID string) (*payments.Confirmation, error)
	ConfirmIntent(ctx context.Context, paymentID string) (*payments.IntentResult, error)
}

// CartClearer empties a user's cart once their order is committed.
type CartClearer interface {
	Clear(ctx context.Context, userID uint64) (int64, error)
}

type orderRecorder interface {
	OrderCreated(paymentMethod string, took time.Duration)
	SessionReplayed()
	PaymentConfirmation(outcome string)
}
