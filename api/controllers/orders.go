package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/grocery-backend/api/middleware"
	"github.com/angelmondragon/grocery-backend/api/responses"
	"github.com/angelmondragon/grocery-backend/api/validators"
	"github.com/angelmondragon/grocery-backend/internal/orders"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

const (
	maxNameLen    = 120
	maxPhoneLen   = 40
	maxEmailLen   = 254
	maxAddressLen = 500
	maxNotesLen   = 1000

	// orderParam holds the order number on lookups and the numeric id on payment confirmation.
	orderParam = "order"
)

// Amounts are integer cents. Any payment_status, payment_session_id or
// payment_intent_id sent by the client is ignored; card orders are settled
// only through confirm-payment or verify-payment.
type orderItemRequest struct {
	ProductID uint64 `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url"`
}

type createOrderRequest struct {
	CustomerName    string             `json:"customer_name" validate:"required"`
	CustomerPhone   string             `json:"customer_phone" validate:"required"`
	CustomerEmail   string             `json:"customer_email"`
	DeliveryAddress string             `json:"delivery_address"`
	OrderNotes      string             `json:"order_notes"`
	PaymentMethod   string             `json:"payment_method" validate:"required"`
	TotalAmount     int64              `json:"total_amount"`
	Items           []orderItemRequest `json:"items" validate:"required,dive"`
}

func (req createOrderRequest) toInput(userID uint64) (orders.CreateOrderInput, error) {
	method, err := enums.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return orders.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment_method must be cash, card or transfer")
	}

	items := make([]orders.LineInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orders.LineInput{
			ProductID:    item.ProductID,
			ProductName:  validators.SanitizeString(item.Name, maxNameLen),
			ProductImage: strings.TrimSpace(item.ImageURL),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		})
	}

	input := orders.CreateOrderInput{
		Customer: orders.CustomerInfo{
			Name:            validators.SanitizeString(req.CustomerName, maxNameLen),
			Phone:           validators.SanitizeString(req.CustomerPhone, maxPhoneLen),
			Email:           validators.SanitizeString(req.CustomerEmail, maxEmailLen),
			DeliveryAddress: validators.SanitizeString(req.DeliveryAddress, maxAddressLen),
			Notes:           validators.SanitizeString(req.OrderNotes, maxNotesLen),
		},
		Items:         items,
		PaymentMethod: method,
		TotalAmount:   req.TotalAmount,
	}
	if userID != 0 {
		input.UserID = &userID
	}
	return input, nil
}

// OrderCreate materializes an order from the checkout form. Guests are allowed.
func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var body createOrderRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order.Summary())
	}
}

// OrderDetail looks an order up by its public order number.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		number := strings.TrimSpace(chi.URLParam(r, orderParam))
		if number == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		order, err := svc.GetByNumber(r.Context(), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type confirmPaymentRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
}

// OrderConfirmPayment settles a pending card order against the provider.
func OrderConfirmPayment(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := validators.ParsePathID(r, orderParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ConfirmCardPayment(r.Context(), orderID, strings.TrimSpace(body.PaymentID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order.Summary())
	}
}

type verifyPaymentRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// VerifyPayment materializes the order for a paid checkout session. Repeated
// calls return the order created by the first one.
func VerifyPayment(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var body verifyPaymentRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var userID *uint64
		if id := middleware.UserIDFromContext(r.Context()); id != 0 {
			userID = &id
		}

		result, err := svc.MaterializeFromPaymentConfirmation(r.Context(), body.SessionID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result.Order.Summary())
	}
}
