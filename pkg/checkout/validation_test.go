package checkout

import (
	"math"
	"testing"

	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

func TestValidateStock(t *testing.T) {
	if err := ValidateStock(StockCheck{ProductID: 42, Requested: 5, Available: 5}); err != nil {
		t.Fatalf("exact stock should pass, got %v", err)
	}

	err := ValidateStock(StockCheck{ProductID: 42, ProductName: "Oats", Requested: 6, Available: 5})
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected pkgerrors.Error, got %T", err)
	}
	if typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected code %s, got %s", pkgerrors.CodeInsufficientStock, typed.Code())
	}
	detail, ok := typed.Details().(StockDetail)
	if !ok {
		t.Fatalf("expected StockDetail, got %T", typed.Details())
	}
	if detail.Requested != 6 || detail.Available != 5 || detail.ProductID != 42 {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestValidateStockCountsHeldUnits(t *testing.T) {
	if err := ValidateStock(StockCheck{ProductID: 42, Held: 3, Requested: 2, Available: 5}); err != nil {
		t.Fatalf("held plus requested within stock should pass, got %v", err)
	}
	err := ValidateStock(StockCheck{ProductID: 42, Held: 3, Requested: 3, Available: 5})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if detail := pkgerrors.As(err).Details().(StockDetail); detail.Held != 3 || detail.Requested != 3 {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestValidateStockHugeQuantities(t *testing.T) {
	cases := []StockCheck{
		{ProductID: 42, Held: 3, Requested: math.MaxInt, Available: 5},
		{ProductID: 42, Held: math.MaxInt, Requested: 1, Available: 5},
		{ProductID: 42, Requested: math.MinInt, Available: 5},
		{ProductID: 42, Requested: 0, Available: 5},
	}
	for _, check := range cases {
		if err := ValidateStock(check); !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
			t.Fatalf("expected insufficient stock for %+v, got %v", check, err)
		}
	}
}

func TestValidateStockClampsNegativeAvailability(t *testing.T) {
	err := ValidateStock(StockCheck{ProductID: 1, Requested: 1, Available: -3})
	detail := pkgerrors.As(err).Details().(StockDetail)
	if detail.Available != 0 {
		t.Fatalf("expected available to clamp at 0, got %d", detail.Available)
	}
}

func TestValidateLinesEmpty(t *testing.T) {
	err := ValidateLines(nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateLinesViolations(t *testing.T) {
	err := ValidateLines([]LineInput{
		{ProductID: 7, Quantity: 2, UnitPrice: 1000},
		{ProductID: 0, Quantity: 1, UnitPrice: 100},
		{ProductID: 8, Quantity: 0, UnitPrice: 100},
		{ProductID: 9, Quantity: 1, UnitPrice: 0},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	violations, ok := details["violations"].([]LineViolation)
	if !ok {
		t.Fatalf("expected violations slice, got %T", details["violations"])
	}
	if len(violations) != 3 {
		t.Fatalf("expected 3 violations, got %d", len(violations))
	}
	if violations[0].Index != 1 || violations[1].ProductID != 8 || violations[2].ProductID != 9 {
		t.Fatalf("unexpected violations %+v", violations)
	}
}

func TestValidateLinesUpperBounds(t *testing.T) {
	err := ValidateLines([]LineInput{
		{ProductID: 1, Quantity: MaxLineQuantity, UnitPrice: MaxUnitPrice},
		{ProductID: 2, Quantity: math.MaxInt, UnitPrice: 100},
		{ProductID: 3, Quantity: 1, UnitPrice: math.MaxInt64},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	violations := typed.Details().(map[string]any)["violations"].([]LineViolation)
	if len(violations) != 2 || violations[0].ProductID != 2 || violations[1].ProductID != 3 {
		t.Fatalf("unexpected violations %+v", violations)
	}
	if got := LineTotal(MaxUnitPrice, MaxLineQuantity); got != int64(MaxUnitPrice)*MaxLineQuantity {
		t.Fatalf("unexpected bounded line total %d", got)
	}
}

func TestValidateLinesOK(t *testing.T) {
	if err := ValidateLines([]LineInput{{ProductID: 7, Quantity: 2, UnitPrice: 1000}}); err != nil {
		t.Fatalf("expected valid lines, got %v", err)
	}
	if got := LineTotal(1000, 2); got != 2000 {
		t.Fatalf("expected 2000, got %d", got)
	}
}
