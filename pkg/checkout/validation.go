package checkout

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

// Upper bounds for a single order line. They keep LineTotal well inside int64.
const (
	MaxLineQuantity = 10_000
	MaxUnitPrice    = 100_000_000
)

// StockCheck describes a quantity about to be persisted for a product:
// Requested units on top of the Held units already in the cart.
type StockCheck struct {
	ProductID   uint64
	ProductName string
	Held        int
	Requested   int
	Available   int
}

// StockDetail is returned to callers when a stock check fails.
type StockDetail struct {
	ProductID   uint64 `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Held        int    `json:"in_cart,omitempty"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// ValidateStock rejects a quantity that would take the line above the product's
// current stock. Every cart mutation path goes through here. The comparison is
// done as Requested <= Available-Held so it cannot overflow.
func ValidateStock(check StockCheck) error {
	if check.Requested > 0 && check.Held >= 0 && check.Requested <= check.Available-check.Held {
		return nil
	}
	available := check.Available
	if available < 0 {
		available = 0
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("only %d unit(s) available", available)).WithDetails(StockDetail{
		ProductID:   check.ProductID,
		ProductName: check.ProductName,
		Held:        check.Held,
		Requested:   check.Requested,
		Available:   available,
	})
}

// LineInput is one requested order line.
type LineInput struct {
	ProductID uint64
	Quantity  int
	UnitPrice int64
}

// LineViolation explains why an order line was rejected.
type LineViolation struct {
	Index     int    `json:"index"`
	ProductID uint64 `json:"product_id"`
	Reason    string `json:"reason"`
}

// ValidateLines requires a non-empty list whose lines carry a product, a quantity
// in 1..MaxLineQuantity and a unit price in 1..MaxUnitPrice.
func ValidateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}

	var violations []LineViolation
	for i, line := range lines {
		switch {
		case line.ProductID == 0:
			violations = append(violations, LineViolation{Index: i, Reason: "product_id is required"})
		case line.Quantity <= 0:
			violations = append(violations, LineViolation{Index: i, ProductID: line.ProductID, Reason: "quantity must be positive"})
		case line.Quantity > MaxLineQuantity:
			violations = append(violations, LineViolation{Index: i, ProductID: line.ProductID, Reason: fmt.Sprintf("quantity must not exceed %d", MaxLineQuantity)})
		case line.UnitPrice <= 0:
			violations = append(violations, LineViolation{Index: i, ProductID: line.ProductID, Reason: "unit_price must be positive"})
		case line.UnitPrice > MaxUnitPrice:
			violations = append(violations, LineViolation{Index: i, ProductID: line.ProductID, Reason: fmt.Sprintf("unit_price must not exceed %d", MaxUnitPrice)})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order items: %d", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

// LineTotal is unit price times quantity, in minor units. Inputs are expected
// to have passed ValidateLines.
func LineTotal(unitPrice int64, quantity int) int64 {
	return unitPrice * int64(quantity)
}
