package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/grocery-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

type orderMaterializer interface {
	MaterializeFromPaymentConfirmation(ctx context.Context, sessionID string, userID *uint64) (*orders.MaterializeResult, error)
	MarkSessionFailed(ctx context.Context, sessionID string) (*orders.OrderDTO, error)
}

type ServiceParams struct {
	Orders orderMaterializer
	Logger *logger.Logger
}

// Service applies Stripe Checkout events to orders.
type Service struct {
	orders orderMaterializer
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order materializer required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{orders: params.Orders, logg: logg}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		sess, err := decodeSession(event)
		if err != nil {
			return err
		}
		// Delayed payment methods complete the session before the money arrives.
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			return nil
		}
		res, err := s.orders.MaterializeFromPaymentConfirmation(ctx, sess.ID, nil)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodePaymentNotCompleted) {
				return nil
			}
			// Mismatched sessions are acknowledged; they will never apply.
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				ctx = s.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "session_id": sess.ID, "error": err.Error()})
				s.logg.Warn(ctx, "stripe checkout session rejected")
				return nil
			}
			return err
		}
		ctx = s.logg.WithFields(ctx, map[string]any{
			"event_id":     event.ID,
			"order_number": res.Order.OrderNumber,
			"replayed":     res.Replayed,
		})
		s.logg.Info(ctx, "stripe checkout session applied")
		return nil
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypeCheckoutSessionExpired:
		sess, err := decodeSession(event)
		if err != nil {
			return err
		}
		order, err := s.orders.MarkSessionFailed(ctx, sess.ID)
		if err != nil {
			return err
		}
		if order != nil {
			ctx = s.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "order_number": order.OrderNumber})
			s.logg.Warn(ctx, "stripe checkout session failed")
		}
		return nil
	default:
		return nil
	}
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}
	if sess.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	return &sess, nil
}
