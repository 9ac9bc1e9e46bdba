package product

import (
	"time"

	"github.com/angelmondragon/grocery-backend/pkg/db/models"
)

// ProductDTO is the public catalog representation.
type ProductDTO struct {
	ID              uint64    `json:"id"`
	Supplier        string    `json:"supplier"`
	Brand           string    `json:"brand"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	PriceCents      int64     `json:"price_cents"`
	Stock           int       `json:"stock"`
	Weight          string    `json:"weight"`
	Image           string    `json:"image"`
	Ingredients     *string   `json:"ingredients,omitempty"`
	Allergens       *string   `json:"allergens,omitempty"`
	NutritionalInfo *string   `json:"nutritional_info,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListInput carries the raw catalog filters.
type ListInput struct {
	Supplier string
	Brand    string
	MinPrice *int64
	MaxPrice *int64
}

// FromModel maps a product row to its DTO.
func FromModel(p models.Product) ProductDTO {
	return ProductDTO{
		ID:              p.ID,
		Supplier:        p.Supplier,
		Brand:           p.Brand,
		Name:            p.Name,
		Description:     p.Description,
		PriceCents:      p.PriceCents,
		Stock:           p.Stock,
		Weight:          p.Weight,
		Image:           p.Image,
		Ingredients:     p.Ingredients,
		Allergens:       p.Allergens,
		NutritionalInfo: p.NutritionalInfo,
		CreatedAt:       p.CreatedAt,
	}
}
