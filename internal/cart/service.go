package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/grocery-backend/pkg/checkout"
	"github.com/angelmondragon/grocery-backend/pkg/db"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/metrics"
)

// Service is the cart reconciliation engine. Add is additive; Update and Sync
// replace the stored quantity.
type Service interface {
	Add(ctx context.Context, userID, productID uint64, quantity int) (*LineDTO, error)
	Update(ctx context.Context, userID, productID uint64, quantity int) (*LineDTO, error)
	Remove(ctx context.Context, userID, productID uint64) error
	Clear(ctx context.Context, userID uint64) (int64, error)
	Sync(ctx context.Context, userID uint64, lines []SyncLine) (*SyncResult, error)
	List(ctx context.Context, userID uint64) ([]LineDTO, error)
}

// ServiceParams wires the engine dependencies.
type ServiceParams struct {
	Repo     Repository
	Products ProductReader
	Logger   *logger.Logger
	Metrics  *metrics.CheckoutMetrics
}

type service struct {
	repo     Repository
	products ProductReader
	logg     *logger.Logger
	metrics  stockRecorder
}

// NewService builds the cart engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		logg:     logg,
		metrics:  params.Metrics,
	}, nil
}

func (s *service) Add(ctx context.Context, userID, productID uint64, quantity int) (*LineDTO, error) {
	if err := validateIDs(userID, productID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.Find(ctx, userID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}

	current := 0
	if existing != nil {
		current = existing.Quantity
	}
	if err := s.checkStock("add", product, current, quantity); err != nil {
		return nil, err
	}

	item, err := s.persist(ctx, userID, product.ID, existing, current+quantity, nil)
	if err != nil {
		return nil, err
	}
	dto := toLineDTO(*item, *product)
	return &dto, nil
}

// Update returns (nil, nil) when quantity <= 0 removed the line.
func (s *service) Update(ctx context.Context, userID, productID uint64, quantity int) (*LineDTO, error) {
	if err := validateIDs(userID, productID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, s.Remove(ctx, userID, productID)
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.checkStock("update", product, 0, quantity); err != nil {
		return nil, err
	}
	existing, err := s.repo.Find(ctx, userID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}

	item, err := s.persist(ctx, userID, product.ID, existing, quantity, nil)
	if err != nil {
		return nil, err
	}
	dto := toLineDTO(*item, *product)
	return &dto, nil
}

func (s *service) Remove(ctx context.Context, userID, productID uint64) error {
	if err := validateIDs(userID, productID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "remove cart line")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, userID uint64) (int64, error) {
	if userID == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	deleted, err := s.repo.DeleteAll(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "clear cart")
	}
	return deleted, nil
}

// Sync merges a client snapshot into the stored cart. It never deletes lines
// missing from the snapshot.
func (s *service) Sync(ctx context.Context, userID uint64, lines []SyncLine) (*SyncResult, error) {
	if userID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	byProduct := make(map[uint64]models.CartItem, len(existing))
	maxPosition := 0
	for _, item := range existing {
		byProduct[item.ProductID] = item
		if item.Position > maxPosition {
			maxPosition = item.Position
		}
	}

	ids := make([]uint64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	result := &SyncResult{Skipped: []SkippedLine{}}
	for index, line := range lines {
		if line.Quantity <= 0 {
			result.Skipped = append(result.Skipped, SkippedLine{ProductID: line.ProductID, Reason: SkipNonPositiveQuantity})
			continue
		}
		product, ok := catalog[line.ProductID]
		if !ok {
			result.Skipped = append(result.Skipped, SkippedLine{ProductID: line.ProductID, Reason: SkipProductNotFound})
			continue
		}
		if err := s.checkStock("sync", &product, 0, line.Quantity); err != nil {
			result.Skipped = append(result.Skipped, SkippedLine{ProductID: line.ProductID, Reason: SkipInsufficientStock})
			continue
		}

		var current *models.CartItem
		position := maxPosition + index + 1
		if item, ok := byProduct[line.ProductID]; ok {
			current = &item
			position = item.Position
		}
		if line.Order != nil {
			position = *line.Order
		}

		item, err := s.persist(ctx, userID, line.ProductID, current, line.Quantity, &position)
		if err != nil {
			return nil, err
		}
		byProduct[line.ProductID] = *item
		result.Applied++
	}

	items, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.Items = items

	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id": userID,
		"applied": result.Applied,
		"skipped": len(result.Skipped),
	})
	s.logg.Info(ctx, "cart.sync.applied")
	return result, nil
}

func (s *service) List(ctx context.Context, userID uint64) ([]LineDTO, error) {
	if userID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	ids := make([]uint64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	out := make([]LineDTO, 0, len(items))
	for _, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok {
			continue
		}
		out = append(out, toLineDTO(item, product))
	}
	return out, nil
}

func (s *service) loadProduct(ctx context.Context, productID uint64) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// checkStock validates held+quantity against stock without computing the sum.
func (s *service) checkStock(operation string, product *models.Product, held, quantity int) error {
	err := checkout.ValidateStock(checkout.StockCheck{
		ProductID:   product.ID,
		ProductName: product.Name,
		Held:        held,
		Requested:   quantity,
		Available:   product.Stock,
	})
	if err != nil && s.metrics != nil {
		s.metrics.StockRejected(operation)
	}
	return err
}

// persist writes quantity for the line. A nil position keeps the existing
// position, or appends after the current maximum for new lines.
func (s *service) persist(ctx context.Context, userID, productID uint64, existing *models.CartItem, quantity int, position *int) (*models.CartItem, error) {
	if existing != nil {
		pos := existing.Position
		if position != nil {
			pos = *position
		}
		if err := s.repo.UpdateLine(ctx, existing.ID, quantity, pos); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update cart line")
		}
		updated := *existing
		updated.Quantity = quantity
		updated.Position = pos
		updated.UpdatedAt = time.Now().UTC()
		return &updated, nil
	}

	var pos int
	if position != nil {
		pos = *position
	} else {
		maxPosition, err := s.repo.MaxPosition(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart positions")
		}
		pos = maxPosition + 1
	}

	item := &models.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		Position:  pos,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart line changed concurrently, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create cart line")
	}
	return item, nil
}

func validateIDs(userID, productID uint64) error {
	if userID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	return nil
}
