package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/grocery-backend/internal/payments"
	pkgcheckout "github.com/angelmondragon/grocery-backend/pkg/checkout"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]models.Product, error)
}

// SessionCreator opens hosted checkout pages with the payment provider.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error)
}

// Service starts card checkouts. No order exists until the payment is verified.
type Service interface {
	CreateSession(ctx context.Context, input SessionInput) (*payments.CheckoutSession, error)
}

// ItemRequest is a product and quantity picked by the customer; prices come from the catalog.
type ItemRequest struct {
	ProductID uint64
	Quantity  int
}

// SessionInput captures the checkout form.
type SessionInput struct {
	UserID   *uint64
	Customer payments.Customer
	Items    []ItemRequest
}

type service struct {
	products productLoader
	sessions SessionCreator
	logg     *logger.Logger
}

// NewService builds the checkout service. A nil creator means card payments are disabled.
func NewService(products productLoader, sessions SessionCreator, logg *logger.Logger) (Service, error) {
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{products: products, sessions: sessions, logg: logg}, nil
}

func (s *service) CreateSession(ctx context.Context, input SessionInput) (*payments.CheckoutSession, error) {
	if s.sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are not configured")
	}
	customer := payments.Customer{
		Name:    strings.TrimSpace(input.Customer.Name),
		Phone:   strings.TrimSpace(input.Customer.Phone),
		Email:   strings.TrimSpace(input.Customer.Email),
		Address: strings.TrimSpace(input.Customer.Address),
		Notes:   strings.TrimSpace(input.Customer.Notes),
	}
	if customer.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer_name is required")
	}
	if customer.Phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer_phone is required")
	}

	requested, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(requested))
	for _, item := range requested {
		ids = append(ids, item.ProductID)
	}
	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	priced := make([]payments.Item, 0, len(requested))
	lines := make([]pkgcheckout.LineInput, 0, len(requested))
	var total int64
	for _, item := range requested {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if err := pkgcheckout.ValidateStock(pkgcheckout.StockCheck{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   item.Quantity,
			Available:   product.Stock,
		}); err != nil {
			return nil, err
		}
		priced = append(priced, payments.Item{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			Quantity:  item.Quantity,
			UnitPrice: product.PriceCents,
		})
		lines = append(lines, pkgcheckout.LineInput{ProductID: product.ID, Quantity: item.Quantity, UnitPrice: product.PriceCents})
		total += pkgcheckout.LineTotal(product.PriceCents, item.Quantity)
	}
	if err := pkgcheckout.ValidateLines(lines); err != nil {
		return nil, err
	}

	sess, err := s.sessions.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		Customer:    customer,
		Items:       priced,
		TotalAmount: total,
		UserID:      input.UserID,
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"session_id":   sess.ID,
		"total_amount": total,
		"items":        len(priced),
	})
	s.logg.Info(ctx, "checkout.session.created")
	return sess, nil
}

// mergeItems folds repeated products into one line, keeping first-seen order.
func mergeItems(items []ItemRequest) ([]ItemRequest, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	index := make(map[uint64]int, len(items))
	out := make([]ItemRequest, 0, len(items))
	for _, item := range items {
		if item.ProductID == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
		}
		if item.Quantity <= 0 || item.Quantity > pkgcheckout.MaxLineQuantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", pkgcheckout.MaxLineQuantity))
		}
		if pos, ok := index[item.ProductID]; ok {
			if out[pos].Quantity > pkgcheckout.MaxLineQuantity-item.Quantity {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", pkgcheckout.MaxLineQuantity)).
					WithDetails(map[string]any{"product_id": item.ProductID})
			}
			out[pos].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out, nil
}
