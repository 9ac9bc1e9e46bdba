package models

import (
	"time"

	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

// Order is the system-of-record for a checkout. Only PaymentStatus (and the
// payment references) change after creation.
type Order struct {
	ID               uint64              `gorm:"column:id;primaryKey;autoIncrement"`
	OrderNumber      string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID           *uint64             `gorm:"column:user_id"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	TotalAmount      int64               `gorm:"column:total_amount;not null"`
	PaymentSessionID *string             `gorm:"column:payment_session_id;uniqueIndex"`
	PaymentIntentID  *string             `gorm:"column:payment_intent_id;index"`
	CustomerName     string              `gorm:"column:customer_name;not null"`
	CustomerPhone    string              `gorm:"column:customer_phone;not null"`
	CustomerEmail    string              `gorm:"column:customer_email;not null;default:''"`
	DeliveryAddress  string              `gorm:"column:delivery_address;not null;default:''"`
	OrderNotes       string              `gorm:"column:order_notes;not null;default:''"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
