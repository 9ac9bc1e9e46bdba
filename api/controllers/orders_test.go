package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/angelmondragon/grocery-backend/internal/orders"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

type stubOrderService struct {
	created     orders.CreateOrderInput
	sessionID   string
	sessionUser *uint64
	confirmedID uint64
	paymentID   string
	err         error
}

func (s *stubOrderService) CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*orders.OrderDTO, error) {
	s.created = input
	if s.err != nil {
		return nil, s.err
	}
	return &orders.OrderDTO{
		ID:            11,
		OrderNumber:   "ORD-20261019-ABC123",
		TotalAmount:   input.TotalAmount,
		PaymentMethod: input.PaymentMethod,
		PaymentStatus: input.PaymentMethod.InitialStatus(),
	}, nil
}

func (s *stubOrderService) MaterializeFromPaymentConfirmation(ctx context.Context, sessionID string, userID *uint64) (*orders.MaterializeResult, error) {
	s.sessionID = sessionID
	s.sessionUser = userID
	if s.err != nil {
		return nil, s.err
	}
	return &orders.MaterializeResult{Order: orders.OrderDTO{
		ID:            12,
		OrderNumber:   "ORD-20261019-CARD01",
		TotalAmount:   4500,
		PaymentStatus: enums.PaymentStatusCompleted,
	}, Replayed: true}, nil
}

func (s *stubOrderService) ConfirmCardPayment(ctx context.Context, orderID uint64, paymentID string) (*orders.OrderDTO, error) {
	s.confirmedID = orderID
	s.paymentID = paymentID
	if s.err != nil {
		return nil, s.err
	}
	return &orders.OrderDTO{ID: orderID, PaymentStatus: enums.PaymentStatusCompleted}, nil
}

func (s *stubOrderService) MarkSessionFailed(ctx context.Context, sessionID string) (*orders.OrderDTO, error) {
	return nil, nil
}

func (s *stubOrderService) GetByNumber(ctx context.Context, orderNumber string) (*orders.OrderDTO, error) {
	if orderNumber != "ORD-1" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &orders.OrderDTO{ID: 1, OrderNumber: orderNumber, Items: []orders.ItemDTO{}}, nil
}

const cashOrderBody = `{
	"customer_name": "  Ana Lopez ",
	"customer_phone": "5550001111",
	"payment_method": "Cash",
	"payment_status": "completed",
	"total_amount": 2000,
	"items": [{"product_id": 7, "quantity": 2, "unit_price": 1000, "name": "Leche"}]
}`

func TestOrderCreateGuest(t *testing.T) {
	svc := &stubOrderService{}
	rec := serve(OrderCreate(svc, nil), newJSONRequest(http.MethodPost, "/api/orders", cashOrderBody))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}

	var summary orders.Summary
	decodeBody(t, rec, &summary)
	if summary.OrderID != 11 || summary.TotalAmount != 2000 || summary.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("unexpected summary %+v", summary)
	}

	in := svc.created
	if in.UserID != nil {
		t.Fatalf("guest order must not carry a user")
	}
	if in.Customer.Name != "Ana Lopez" || in.PaymentMethod != enums.PaymentMethodCash {
		t.Fatalf("unexpected input %+v", in)
	}
	if len(in.Items) != 1 || in.Items[0].UnitPrice != 1000 || in.Items[0].ProductName != "Leche" {
		t.Fatalf("unexpected items %+v", in.Items)
	}
}

func TestOrderCreateAttachesUser(t *testing.T) {
	svc := &stubOrderService{}
	rec := serve(OrderCreate(svc, nil), withUser(newJSONRequest(http.MethodPost, "/api/orders", cashOrderBody), 3))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	if svc.created.UserID == nil || *svc.created.UserID != 3 {
		t.Fatalf("expected user 3 attached")
	}
}

func TestOrderCreateIgnoresClientPaymentReferences(t *testing.T) {
	svc := &stubOrderService{}
	body := `{"customer_name":"Ana","customer_phone":"1","payment_method":"card","payment_status":"completed",` +
		`"payment_session_id":"cs_paid_elsewhere","payment_intent_id":"pi_paid_elsewhere","total_amount":100,` +
		`"items":[{"product_id":1,"quantity":1,"unit_price":100}]}`
	rec := serve(OrderCreate(svc, nil), newJSONRequest(http.MethodPost, "/api/orders", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	in := svc.created
	if in.PaymentSessionID != nil || in.PaymentIntentID != nil || in.PaymentVerified {
		t.Fatalf("client payment references must not reach the service: %+v", in)
	}
}

func TestOrderCreateRejectsUnknownPaymentMethod(t *testing.T) {
	svc := &stubOrderService{}
	body := `{"customer_name":"Ana","customer_phone":"1","payment_method":"crypto","total_amount":100,"items":[{"product_id":1,"quantity":1,"unit_price":100}]}`
	rec := serve(OrderCreate(svc, nil), newJSONRequest(http.MethodPost, "/api/orders", body))
	assertErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestOrderCreatePropagatesServiceValidation(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeValidation, "items must not be empty")}
	body := `{"customer_name":"Ana","customer_phone":"1","payment_method":"cash","total_amount":100,"items":[]}`
	rec := serve(OrderCreate(svc, nil), newJSONRequest(http.MethodPost, "/api/orders", body))
	assertErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestOrderDetail(t *testing.T) {
	svc := &stubOrderService{}
	rec := serve(OrderDetail(svc, nil), withURLParam(newJSONRequest(http.MethodGet, "/api/orders/ORD-1", ""), orderParam, "ORD-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	rec = serve(OrderDetail(svc, nil), withURLParam(newJSONRequest(http.MethodGet, "/api/orders/ORD-2", ""), orderParam, "ORD-2"))
	assertErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestOrderConfirmPayment(t *testing.T) {
	svc := &stubOrderService{}
	req := withURLParam(newJSONRequest(http.MethodPost, "/api/orders/12/confirm-payment", `{"payment_id":" pi_123 "}`), orderParam, "12")
	rec := serve(OrderConfirmPayment(svc, nil), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.confirmedID != 12 || svc.paymentID != "pi_123" {
		t.Fatalf("unexpected confirm call %d %q", svc.confirmedID, svc.paymentID)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting card payment")
	rec = serve(OrderConfirmPayment(svc, nil), withURLParam(newJSONRequest(http.MethodPost, "/api/orders/12/confirm-payment", `{"payment_id":"pi_123"}`), orderParam, "12"))
	assertErrorCode(t, rec, http.StatusUnprocessableEntity, "STATE_CONFLICT")
}

func TestVerifyPayment(t *testing.T) {
	svc := &stubOrderService{}
	rec := serve(VerifyPayment(svc, nil), withUser(newJSONRequest(http.MethodPost, "/api/verify-payment", `{"session_id":"cs_test_1"}`), 8))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	var summary orders.Summary
	decodeBody(t, rec, &summary)
	if summary.OrderNumber != "ORD-20261019-CARD01" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if svc.sessionID != "cs_test_1" || svc.sessionUser == nil || *svc.sessionUser != 8 {
		t.Fatalf("unexpected materialize call %q %v", svc.sessionID, svc.sessionUser)
	}
}

func TestVerifyPaymentErrors(t *testing.T) {
	rec := serve(VerifyPayment(&stubOrderService{}, nil), newJSONRequest(http.MethodPost, "/api/verify-payment", `{}`))
	assertErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "payment not completed")}
	rec = serve(VerifyPayment(svc, nil), newJSONRequest(http.MethodPost, "/api/verify-payment", `{"session_id":"cs_open"}`))
	assertErrorCode(t, rec, http.StatusBadRequest, "PAYMENT_NOT_COMPLETED")
	if svc.sessionUser != nil {
		t.Fatalf("anonymous verification must not attach a user")
	}
}
