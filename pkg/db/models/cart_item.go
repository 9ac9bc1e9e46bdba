package models

import "time"

// CartItem is one (user, product) line of a shopping cart.
type CartItem struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"column:user_id;not null;uniqueIndex:idx_cart_items_user_product"`
	ProductID uint64    `gorm:"column:product_id;not null;uniqueIndex:idx_cart_items_user_product"`
	Quantity  int       `gorm:"column:quantity;not null"`
	Position  int       `gorm:"column:order_position;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartItem) TableName() string { return "cart_items" }
