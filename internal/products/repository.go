package product

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/pkg/db/models"
)

// Filter narrows catalog listings. Nil/empty fields are ignored.
type Filter struct {
	Supplier string
	Brand    string
	MinPrice *int64
	MaxPrice *int64
}

// Repository reads the product catalog.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads a single product.
func (r *Repository) FindByID(ctx context.Context, id uint64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads the requested products keyed by id; unknown ids are omitted.
func (r *Repository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]models.Product, error) {
	out := make(map[uint64]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// List returns products matching filter ordered by name.
func (r *Repository) List(ctx context.Context, filter Filter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.Supplier != "" {
		query = query.Where("supplier = ?", filter.Supplier)
	}
	if filter.Brand != "" {
		query = query.Where("brand = ?", filter.Brand)
	}
	if filter.MinPrice != nil {
		query = query.Where("price_cents >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price_cents <= ?", *filter.MaxPrice)
	}

	var rows []models.Product
	if err := query.Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListSuppliers returns the distinct supplier names.
func (r *Repository) ListSuppliers(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "supplier")
}

// ListBrands returns the distinct brand names.
func (r *Repository) ListBrands(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "brand")
}

func (r *Repository) distinct(ctx context.Context, column string) ([]string, error) {
	var values []string
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where(column + " <> ''").
		Distinct(column).
		Order(column + " ASC").
		Pluck(column, &values).Error
	if err != nil {
		return nil, err
	}
	return values, nil
}
