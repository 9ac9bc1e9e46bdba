package models

import "time"

// Product is a catalog listing. Stock is the only field mutated after creation.
type Product struct {
	ID              uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Supplier        string    `gorm:"column:supplier;not null"`
	Brand           string    `gorm:"column:brand;not null"`
	Name            string    `gorm:"column:name;not null"`
	Description     string    `gorm:"column:description;not null;default:''"`
	PriceCents      int64     `gorm:"column:price_cents;not null"`
	Stock           int       `gorm:"column:stock;not null;default:0"`
	Weight          string    `gorm:"column:weight;not null;default:''"`
	Image           string    `gorm:"column:image;not null;default:''"`
	Ingredients     *string   `gorm:"column:ingredients"`
	Allergens       *string   `gorm:"column:allergens"`
	NutritionalInfo *string   `gorm:"column:nutritional_info"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
