package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/internal/payments"
	"github.com/angelmondragon/grocery-backend/pkg/checkout"
	"github.com/angelmondragon/grocery-backend/pkg/db"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/metrics"
)

const maxNumberAttempts = 3

var errSessionTaken = errors.New("payment session already materialized")

// Service is the order materializer.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	MaterializeFromPaymentConfirmation(ctx context.Context, sessionID string, userID *uint64) (*MaterializeResult, error)
	ConfirmCardPayment(ctx context.Context, orderID uint64, paymentID string) (*OrderDTO, error)
	MarkSessionFailed(ctx context.Context, sessionID string) (*OrderDTO, error)
	GetByNumber(ctx context.Context, orderNumber string) (*OrderDTO, error)
}

type productReader interface {
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]models.Product, error)
}

// ServiceParams wires the materializer. Payments, Cart, Products and Metrics are optional.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Payments PaymentConfirmer
	Cart     CartClearer
	Products productReader
	Logger   *logger.Logger
	Metrics  *metrics.CheckoutMetrics
	Numbers  NumberGenerator
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	payments PaymentConfirmer
	cart     CartClearer
	products productReader
	logg     *logger.Logger
	metrics  orderRecorder
	numbers  NumberGenerator
	now      func() time.Time
}

// NewService builds the order materializer with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	svc := &service{
		repo:     params.Repo,
		tx:       params.Tx,
		payments: params.Payments,
		cart:     params.Cart,
		products: params.Products,
		logg:     params.Logger,
		metrics:  params.Metrics,
		numbers:  params.Numbers,
		now:      params.Now,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.numbers == nil {
		svc.numbers = NewNumberGenerator(defaultNumberPrefix)
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if input.PaymentSessionID != nil {
		trimmed := strings.TrimSpace(*input.PaymentSessionID)
		if trimmed == "" {
			input.PaymentSessionID = nil
		} else {
			input.PaymentSessionID = &trimmed
		}
	}
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	if input.PaymentSessionID != nil {
		existing, err := s.repo.FindBySessionID(ctx, *input.PaymentSessionID)
		if err == nil {
			s.logReplay(ctx, existing)
			dto := toOrderDTO(existing)
			return &dto, nil
		}
		if !db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment session")
		}
	}

	order, err := s.persist(ctx, input)
	if errors.Is(err, errSessionTaken) {
		winner, findErr := s.repo.FindBySessionID(ctx, *input.PaymentSessionID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "reload order for payment session")
		}
		s.logReplay(ctx, winner)
		dto := toOrderDTO(winner)
		return &dto, nil
	}
	if err != nil {
		return nil, err
	}
	dto := toOrderDTO(order)
	return &dto, nil
}

// MaterializeFromPaymentConfirmation turns a paid provider session into an order
// exactly once. Later calls with the same session return the stored order.
func (s *service) MaterializeFromPaymentConfirmation(ctx context.Context, sessionID string, userID *uint64) (*MaterializeResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session_id is required")
	}

	existing, err := s.repo.FindBySessionID(ctx, sessionID)
	switch {
	case err == nil:
		return s.replay(ctx, existing)
	case !db.IsNotFound(err):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment session")
	}
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are not configured")
	}

	conf, err := s.payments.ConfirmSession(ctx, sessionID)
	if err != nil {
		s.recordPayment("error")
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment session")
		}
		return nil, asDependency(err, "confirm payment session")
	}
	switch conf.Status {
	case payments.StatusPaid:
	case payments.StatusFailed:
		s.recordPayment("failed")
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "payment failed")
	default:
		s.recordPayment("unpaid")
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "payment not completed")
	}

	if conf.PaymentIntentID != "" {
		other, err := s.repo.FindByPaymentIntentID(ctx, conf.PaymentIntentID)
		switch {
		case err == nil && other.PaymentSessionID != nil && *other.PaymentSessionID == sessionID:
			s.logReplay(ctx, other)
			return &MaterializeResult{Order: toOrderDTO(other), Replayed: true}, nil
		case err == nil:
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled another order")
		case !db.IsNotFound(err):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment intent")
		}
	}

	input := inputFromConfirmation(conf, sessionID)
	if userID != nil {
		input.UserID = userID
	}
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	order, err := s.persist(ctx, input)
	if errors.Is(err, errSessionTaken) {
		winner, findErr := s.repo.FindBySessionID(ctx, sessionID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "reload order for payment session")
		}
		s.logReplay(ctx, winner)
		return &MaterializeResult{Order: toOrderDTO(winner), Replayed: true}, nil
	}
	if err != nil {
		return nil, err
	}
	s.recordPayment("paid")
	return &MaterializeResult{Order: toOrderDTO(order)}, nil
}

func (s *service) ConfirmCardPayment(ctx context.Context, orderID uint64, paymentID string) (*OrderDTO, error) {
	if orderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_id is required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapFindError(err)
	}
	switch order.PaymentStatus {
	case enums.PaymentStatusCompleted:
		dto := toOrderDTO(order)
		return &dto, nil
	case enums.PaymentStatusFailed:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already failed for this order")
	}
	if order.PaymentMethod != enums.PaymentMethodCard {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting a card payment")
	}
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are not configured")
	}

	res, err := s.payments.ConfirmIntent(ctx, paymentID)
	if err != nil {
		s.recordPayment("error")
		return nil, asDependency(err, "confirm payment")
	}
	if err := s.checkPaymentBinding(ctx, order, res); err != nil {
		return nil, err
	}
	updated, err := s.applyPaymentResult(ctx, order, res.Status, res.ID)
	if err != nil {
		return nil, err
	}
	dto := toOrderDTO(updated)
	return &dto, nil
}

// MarkSessionFailed fails the pending order tied to a session, if any.
func (s *service) MarkSessionFailed(ctx context.Context, sessionID string) (*OrderDTO, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session_id is required")
	}
	order, err := s.repo.FindBySessionID(ctx, sessionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment session")
	}
	if order.PaymentStatus == enums.PaymentStatusPending {
		if _, err := s.repo.TransitionPaymentStatus(ctx, order.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed, nil); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "mark order failed")
		}
		if order, err = s.repo.FindByID(ctx, order.ID); err != nil {
			return nil, mapFindError(err)
		}
		s.recordPayment("failed")
	}
	dto := toOrderDTO(order)
	return &dto, nil
}

func (s *service) GetByNumber(ctx context.Context, orderNumber string) (*OrderDTO, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, mapFindError(err)
	}
	dto := toOrderDTO(order)
	return &dto, nil
}

// replay answers a repeated confirmation. A pending order tied to the session
// is settled against the provider first.
func (s *service) replay(ctx context.Context, order *models.Order) (*MaterializeResult, error) {
	switch order.PaymentStatus {
	case enums.PaymentStatusFailed:
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "payment failed")
	case enums.PaymentStatusPending:
		if s.payments == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are not configured")
		}
		conf, err := s.payments.ConfirmSession(ctx, *order.PaymentSessionID)
		if err != nil {
			s.recordPayment("error")
			return nil, asDependency(err, "confirm payment session")
		}
		if conf.Status == payments.StatusPaid {
			if err := matchConfirmation(order, conf); err != nil {
				return nil, err
			}
			if err := s.ensureIntentUnused(ctx, order.ID, conf.PaymentIntentID); err != nil {
				return nil, err
			}
		}
		updated, err := s.applyPaymentResult(ctx, order, conf.Status, conf.PaymentIntentID)
		if err != nil {
			return nil, err
		}
		order = updated
	}
	s.logReplay(ctx, order)
	return &MaterializeResult{Order: toOrderDTO(order), Replayed: true}, nil
}

// checkPaymentBinding refuses a payment made for another session, another
// intent or another amount than the order carries.
func (s *service) checkPaymentBinding(ctx context.Context, order *models.Order, res *payments.IntentResult) error {
	if res.SessionID != "" && (order.PaymentSessionID == nil || *order.PaymentSessionID != res.SessionID) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment belongs to a different checkout session")
	}
	if order.PaymentIntentID != nil && *order.PaymentIntentID != "" && *order.PaymentIntentID != res.ID {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment does not match the order's payment intent")
	}
	if res.Amount != order.TotalAmount {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment amount does not match order total").
			WithDetails(map[string]any{"order_total": order.TotalAmount, "paid_amount": res.Amount})
	}
	return s.ensureIntentUnused(ctx, order.ID, res.ID)
}

// ensureIntentUnused allows one order per payment intent.
func (s *service) ensureIntentUnused(ctx context.Context, orderID uint64, intentID string) error {
	if intentID == "" {
		return nil
	}
	other, err := s.repo.FindByPaymentIntentID(ctx, intentID)
	switch {
	case err == nil && other.ID != orderID:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled another order")
	case err != nil && !db.IsNotFound(err):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment intent")
	}
	return nil
}

func (s *service) applyPaymentResult(ctx context.Context, order *models.Order, status payments.Status, intentID string) (*models.Order, error) {
	var intent *string
	if intentID != "" {
		intent = &intentID
	}

	switch status {
	case payments.StatusPaid:
		if _, err := s.repo.TransitionPaymentStatus(ctx, order.ID, enums.PaymentStatusPending, enums.PaymentStatusCompleted, intent); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "complete order payment")
		}
		updated, err := s.repo.FindByID(ctx, order.ID)
		if err != nil {
			return nil, mapFindError(err)
		}
		if updated.PaymentStatus != enums.PaymentStatusCompleted {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order payment changed concurrently")
		}
		s.recordPayment("paid")
		ctx = s.logg.WithFields(ctx, map[string]any{"order_id": updated.ID, "order_number": updated.OrderNumber})
		s.logg.Info(ctx, "payment.confirmed")
		return updated, nil
	case payments.StatusFailed:
		if _, err := s.repo.TransitionPaymentStatus(ctx, order.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed, intent); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "fail order payment")
		}
		s.recordPayment("failed")
		ctx = s.logg.WithFields(ctx, map[string]any{"order_id": order.ID, "order_number": order.OrderNumber})
		s.logg.Warn(ctx, "payment.failed")
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "payment failed")
	default:
		s.recordPayment("unpaid")
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "payment is still processing")
	}
}

// persist writes the order and its lines in one transaction, retrying order
// number collisions. A session-id collision surfaces as errSessionTaken.
func (s *service) persist(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	s.fillProductDetails(ctx, input.Items)

	status := input.PaymentMethod.InitialStatus()
	if input.PaymentMethod == enums.PaymentMethodCard && input.PaymentVerified {
		status = enums.PaymentStatusCompleted
	}

	start := s.now()
	var (
		order *models.Order
		err   error
	)
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		order = buildOrder(input, status, s.numbers(start))
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).Create(ctx, order)
		})
		if err == nil {
			break
		}
		if input.PaymentSessionID != nil && isSessionConflict(err) {
			return nil, errSessionTaken
		}
		if !isNumberConflict(err) {
			break
		}
		s.logg.Warn(s.logg.WithField(ctx, "order_number", order.OrderNumber), "order number collision, regenerating")
	}
	if err != nil {
		s.logg.Error(ctx, "persist order", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "persist order")
	}

	if s.metrics != nil {
		s.metrics.OrderCreated(order.PaymentMethod.String(), s.now().Sub(start))
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID,
		"order_number":   order.OrderNumber,
		"payment_method": order.PaymentMethod,
		"payment_status": order.PaymentStatus,
		"total_amount":   order.TotalAmount,
	})
	s.logg.Info(ctx, "order.created")

	if input.UserID != nil && s.cart != nil {
		if _, err := s.cart.Clear(ctx, *input.UserID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "clear cart after order failed")
		}
	}
	return order, nil
}

func (s *service) fillProductDetails(ctx context.Context, items []LineInput) {
	if s.products == nil {
		return
	}
	var missing []uint64
	for _, item := range items {
		if item.ProductName == "" || item.ProductImage == "" {
			missing = append(missing, item.ProductID)
		}
	}
	if len(missing) == 0 {
		return
	}
	catalog, err := s.products.FindByIDs(ctx, missing)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "load product details for order lines")
		return
	}
	for i := range items {
		product, ok := catalog[items[i].ProductID]
		if !ok {
			continue
		}
		if items[i].ProductName == "" {
			items[i].ProductName = product.Name
		}
		if items[i].ProductImage == "" {
			items[i].ProductImage = product.Image
		}
	}
}

func (s *service) logReplay(ctx context.Context, order *models.Order) {
	if s.metrics != nil {
		s.metrics.SessionReplayed()
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": order.ID, "order_number": order.OrderNumber})
	s.logg.Info(ctx, "order.replayed")
}

func (s *service) recordPayment(outcome string) {
	if s.metrics != nil {
		s.metrics.PaymentConfirmation(outcome)
	}
}

func validateCreateInput(input CreateOrderInput) error {
	if strings.TrimSpace(input.Customer.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer_name is required")
	}
	if strings.TrimSpace(input.Customer.Phone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer_phone is required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment_method must be cash, card or transfer")
	}
	lines := make([]checkout.LineInput, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, checkout.LineInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if err := checkout.ValidateLines(lines); err != nil {
		return err
	}
	if input.TotalAmount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "total_amount must be positive")
	}
	return nil
}

func buildOrder(input CreateOrderInput, status enums.PaymentStatus, number string) *models.Order {
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, models.OrderItem{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductImage: item.ProductImage,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			TotalPrice:   checkout.LineTotal(item.UnitPrice, item.Quantity),
		})
	}
	return &models.Order{
		OrderNumber:      number,
		UserID:           input.UserID,
		PaymentMethod:    input.PaymentMethod,
		PaymentStatus:    status,
		TotalAmount:      input.TotalAmount,
		PaymentSessionID: input.PaymentSessionID,
		PaymentIntentID:  input.PaymentIntentID,
		CustomerName:     strings.TrimSpace(input.Customer.Name),
		CustomerPhone:    strings.TrimSpace(input.Customer.Phone),
		CustomerEmail:    strings.TrimSpace(input.Customer.Email),
		DeliveryAddress:  strings.TrimSpace(input.Customer.DeliveryAddress),
		OrderNotes:       strings.TrimSpace(input.Customer.Notes),
		Items:            items,
	}
}

func inputFromConfirmation(conf *payments.Confirmation, sessionID string) CreateOrderInput {
	items := make([]LineInput, 0, len(conf.Items))
	var sum int64
	for _, item := range conf.Items {
		items = append(items, LineInput{
			ProductID:    item.ProductID,
			ProductName:  item.Name,
			ProductImage: item.Image,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		})
		sum += checkout.LineTotal(item.UnitPrice, item.Quantity)
	}
	total := conf.TotalAmount
	if total <= 0 {
		total = sum
	}
	input := CreateOrderInput{
		UserID: conf.UserID,
		Customer: CustomerInfo{
			Name:            conf.Customer.Name,
			Phone:           conf.Customer.Phone,
			Email:           conf.Customer.Email,
			DeliveryAddress: conf.Customer.Address,
			Notes:           conf.Customer.Notes,
		},
		Items:            items,
		PaymentMethod:    enums.PaymentMethodCard,
		TotalAmount:      total,
		PaymentSessionID: &sessionID,
		PaymentVerified:  true,
	}
	if conf.PaymentIntentID != "" {
		intent := conf.PaymentIntentID
		input.PaymentIntentID = &intent
	}
	return input
}

type lineKey struct {
	productID uint64
	quantity  int
	unitPrice int64
}

// matchConfirmation checks that a paid session describes exactly the stored order.
func matchConfirmation(order *models.Order, conf *payments.Confirmation) error {
	mismatch := pkgerrors.New(pkgerrors.CodeStateConflict, "paid session does not match the order")
	if conf.TotalAmount != order.TotalAmount || len(conf.Items) != len(order.Items) {
		return mismatch.WithDetails(map[string]any{"order_total": order.TotalAmount, "paid_amount": conf.TotalAmount})
	}
	want := make(map[lineKey]int, len(order.Items))
	for _, item := range order.Items {
		want[lineKey{item.ProductID, item.Quantity, item.UnitPrice}]++
	}
	for _, item := range conf.Items {
		key := lineKey{item.ProductID, item.Quantity, item.UnitPrice}
		if want[key] == 0 {
			return mismatch
		}
		want[key]--
	}
	return nil
}

func isSessionConflict(err error) bool {
	return db.IsUniqueViolation(err, "idx_orders_payment_session_id") ||
		db.IsUniqueViolation(err, "orders.payment_session_id")
}

func isNumberConflict(err error) bool {
	return db.IsUniqueViolation(err, "idx_orders_order_number") ||
		db.IsUniqueViolation(err, "orders.order_number")
}

func mapFindError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

// asDependency keeps typed adapter errors and wraps anything else.
func asDependency(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
