package controllers

import (
	"net/http"

	"github.com/angelmondragon/grocery-backend/api/middleware"
	"github.com/angelmondragon/grocery-backend/api/responses"
	"github.com/angelmondragon/grocery-backend/api/validators"
	cartsvc "github.com/angelmondragon/grocery-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

type cartLineRequest struct {
	ProductID uint64 `json:"product_id" validate:"required"`
	Quantity  *int   `json:"quantity"`
}

type cartUpdateRequest struct {
	ProductID uint64 `json:"product_id" validate:"required"`
	Quantity  *int   `json:"quantity" validate:"required"`
}

// Snapshot rows are the client's cached product objects; only these fields matter.
type cartSyncItem struct {
	ID       uint64 `json:"id"`
	Quantity int    `json:"quantity"`
	Order    *int   `json:"order"`
}

type cartSyncRequest struct {
	CartItems []cartSyncItem `json:"cart_items"`
}

// CartList returns the caller's cart in display order.
func CartList(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := cartUser(w, r, svc, logg)
		if !ok {
			return
		}
		lines, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, lines)
	}
}

// CartAdd adds quantity (default 1) on top of what the cart already holds.
func CartAdd(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := cartUser(w, r, svc, logg)
		if !ok {
			return
		}

		var body cartLineRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity := 1
		if body.Quantity != nil {
			quantity = *body.Quantity
		}

		line, err := svc.Add(r.Context(), userID, body.ProductID, quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"message": "product added to cart", "item": line})
	}
}

// CartUpdate sets the line quantity; zero removes the line.
func CartUpdate(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := cartUser(w, r, svc, logg)
		if !ok {
			return
		}

		var body cartUpdateRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := svc.Update(r.Context(), userID, body.ProductID, *body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if line == nil {
			responses.WriteSuccess(w, map[string]any{"message": "product removed from cart"})
			return
		}
		responses.WriteSuccess(w, map[string]any{"message": "cart updated", "item": line})
	}
}

func CartRemove(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := cartUser(w, r, svc, logg)
		if !ok {
			return
		}

		productID, err := validators.ParseQueryID(r, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), userID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"message": "product removed from cart"})
	}
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := cartUser(w, r, svc, logg)
		if !ok {
			return
		}

		deleted, err := svc.Clear(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"message": "cart cleared", "deleted_count": deleted})
	}
}

// CartSync merges a client snapshot into the stored cart.
func CartSync(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := cartUser(w, r, svc, logg)
		if !ok {
			return
		}

		var body cartSyncRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]cartsvc.SyncLine, 0, len(body.CartItems))
		for _, item := range body.CartItems {
			lines = append(lines, cartsvc.SyncLine{
				ProductID: item.ID,
				Quantity:  item.Quantity,
				Order:     item.Order,
			})
		}

		result, err := svc.Sync(r.Context(), userID, lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func cartUser(w http.ResponseWriter, r *http.Request, svc cartsvc.Service, logg *logger.Logger) (uint64, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return 0, false
	}
	userID := middleware.UserIDFromContext(r.Context())
	if userID == 0 {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return 0, false
	}
	return userID, true
}
