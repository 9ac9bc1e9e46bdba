package product

import (
	"context"
	"strings"

	"github.com/angelmondragon/grocery-backend/pkg/db"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

type catalogRepository interface {
	FindByID(ctx context.Context, id uint64) (*models.Product, error)
	List(ctx context.Context, filter Filter) ([]models.Product, error)
	ListSuppliers(ctx context.Context) ([]string, error)
	ListBrands(ctx context.Context) ([]string, error)
}

// Service exposes catalog reads.
type Service interface {
	List(ctx context.Context, input ListInput) ([]ProductDTO, error)
	Get(ctx context.Context, id uint64) (*ProductDTO, error)
	Suppliers(ctx context.Context) ([]string, error)
	Brands(ctx context.Context) ([]string, error)
}

type service struct {
	repo catalogRepository
}

// NewService builds the catalog service.
func NewService(repo catalogRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, input ListInput) ([]ProductDTO, error) {
	if input.MinPrice != nil && *input.MinPrice < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_price must be non-negative")
	}
	if input.MaxPrice != nil && *input.MaxPrice < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max_price must be non-negative")
	}
	if input.MinPrice != nil && input.MaxPrice != nil && *input.MinPrice > *input.MaxPrice {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_price cannot exceed max_price")
	}

	rows, err := s.repo.List(ctx, Filter{
		Supplier: strings.TrimSpace(input.Supplier),
		Brand:    strings.TrimSpace(input.Brand),
		MinPrice: input.MinPrice,
		MaxPrice: input.MaxPrice,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uint64) (*ProductDTO, error) {
	if id == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	dto := FromModel(*row)
	return &dto, nil
}

func (s *service) Suppliers(ctx context.Context) ([]string, error) {
	values, err := s.repo.ListSuppliers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list suppliers")
	}
	return nonNil(values), nil
}

func (s *service) Brands(ctx context.Context) ([]string, error) {
	values, err := s.repo.ListBrands(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list brands")
	}
	return nonNil(values), nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
