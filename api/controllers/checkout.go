package controllers

import (
	"net/http"

	"github.com/angelmondragon/grocery-backend/api/middleware"
	"github.com/angelmondragon/grocery-backend/api/responses"
	"github.com/angelmondragon/grocery-backend/api/validators"
	"github.com/angelmondragon/grocery-backend/internal/checkout"
	"github.com/angelmondragon/grocery-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

type checkoutItemRequest struct {
	ProductID uint64 `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// Item prices sent by the client are ignored; the catalog prices the session.
type checkoutSessionRequest struct {
	CustomerName    string                `json:"customer_name" validate:"required"`
	CustomerPhone   string                `json:"customer_phone" validate:"required"`
	CustomerEmail   string                `json:"customer_email"`
	DeliveryAddress string                `json:"delivery_address"`
	OrderNotes      string                `json:"order_notes"`
	Items           []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CheckoutSessionCreate opens a hosted card checkout and returns its id and URL.
func CheckoutSessionCreate(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var body checkoutSessionRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkout.SessionInput{
			Customer: payments.Customer{
				Name:    validators.SanitizeString(body.CustomerName, maxNameLen),
				Phone:   validators.SanitizeString(body.CustomerPhone, maxPhoneLen),
				Email:   validators.SanitizeString(body.CustomerEmail, maxEmailLen),
				Address: validators.SanitizeString(body.DeliveryAddress, maxAddressLen),
				Notes:   validators.SanitizeString(body.OrderNotes, maxNotesLen),
			},
			Items: make([]checkout.ItemRequest, 0, len(body.Items)),
		}
		for _, item := range body.Items {
			input.Items = append(input.Items, checkout.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		if id := middleware.UserIDFromContext(r.Context()); id != 0 {
			input.UserID = &id
		}

		session, err := svc.CreateSession(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}
