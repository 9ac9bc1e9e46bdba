package cart

import (
	"time"

	"github.com/angelmondragon/grocery-backend/pkg/db/models"
)

// LineDTO is a cart line joined with the product's current attributes.
type LineDTO struct {
	ProductID   uint64    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Image       string    `json:"image"`
	Brand       string    `json:"brand"`
	Supplier    string    `json:"supplier"`
	Weight      string    `json:"weight"`
	Stock       int       `json:"stock"`
	Quantity    int       `json:"quantity"`
	Position    int       `json:"order"`
	AddedAt     time.Time `json:"added_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SyncLine is one entry of a client cart snapshot. Order is the client's
// explicit position, if it tracked one.
type SyncLine struct {
	ProductID uint64
	Quantity  int
	Order     *int
}

// Skip reasons reported by Sync.
const (
	SkipNonPositiveQuantity = "non_positive_quantity"
	SkipProductNotFound     = "product_not_found"
	SkipInsufficientStock   = "insufficient_stock"
)

// SkippedLine explains why a snapshot entry was not applied.
type SkippedLine struct {
	ProductID uint64 `json:"product_id"`
	Reason    string `json:"reason"`
}

// SyncResult summarizes a Sync call and returns the cart as it now stands.
type SyncResult struct {
	Applied int           `json:"applied"`
	Skipped []SkippedLine `json:"skipped"`
	Items   []LineDTO     `json:"items"`
}

func toLineDTO(item models.CartItem, p models.Product) LineDTO {
	return LineDTO{
		ProductID:   item.ProductID,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Image:       p.Image,
		Brand:       p.Brand,
		Supplier:    p.Supplier,
		Weight:      p.Weight,
		Stock:       p.Stock,
		Quantity:    item.Quantity,
		Position:    item.Position,
		AddedAt:     item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}
