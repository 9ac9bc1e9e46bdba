package models

import "time"

// OrderItem is an immutable order line. ProductName and ProductImage are
// copied from the catalog when the order is created.
type OrderItem struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID      uint64    `gorm:"column:order_id;not null;index"`
	ProductID    uint64    `gorm:"column:product_id;not null"`
	ProductName  string    `gorm:"column:product_name;not null;default:''"`
	ProductImage string    `gorm:"column:product_image;not null;default:''"`
	Quantity     int       `gorm:"column:quantity;not null"`
	UnitPrice    int64     `gorm:"column:unit_price;not null"`
	TotalPrice   int64     `gorm:"column:total_price;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }
