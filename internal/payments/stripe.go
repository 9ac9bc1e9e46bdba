package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/grocery-backend/pkg/stripe"
)

const checkoutSessionPrefix = "cs_"

// stripeAPI is the subset of Stripe calls the adapter needs.
type stripeAPI interface {
	NewSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSession(ctx context.Context, id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeClientWrapper struct{}

func (stripeClientWrapper) NewSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}

func (stripeClientWrapper) GetSession(ctx context.Context, id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params == nil {
		params = &stripe.CheckoutSessionParams{}
	}
	params.Context = ctx
	return session.Get(id, params)
}

func (stripeClientWrapper) GetPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		params = &stripe.PaymentIntentParams{}
	}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

// StripeAdapter implements Adapter on top of Stripe Checkout.
type StripeAdapter struct {
	api        stripeAPI
	currency   string
	successURL string
	cancelURL  string
}

// NewStripeAdapter builds the adapter from the configured Stripe client.
func NewStripeAdapter(client *pkgstripe.Client) (*StripeAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return newStripeAdapter(stripeClientWrapper{}, client.Currency(), client.SuccessURL(), client.CancelURL()), nil
}

func newStripeAdapter(api stripeAPI, currency, successURL, cancelURL string) *StripeAdapter {
	return &StripeAdapter{
		api:        api,
		currency:   currency,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (a *StripeAdapter) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	metadata, err := EncodeMetadata(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout too large")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(a.successURL),
		CancelURL:  stripe.String(a.cancelURL),
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	for _, item := range req.Items {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if strings.HasPrefix(item.Image, "http") {
			productData.Images = stripe.StringSlice([]string{item.Image})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(a.currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(item.UnitPrice),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}

	sess, err := a.api.NewSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (a *StripeAdapter) ConfirmSession(ctx context.Context, sessionID string) (*Confirmation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session_id is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("payment_intent")
	sess, err := a.api.GetSession(ctx, sessionID, params)
	if err != nil {
		return nil, mapStripeError(err, "retrieve checkout session")
	}

	conf := &Confirmation{
		SessionID:   sess.ID,
		Status:      sessionStatus(sess),
		TotalAmount: sess.AmountTotal,
		Currency:    string(sess.Currency),
	}
	if sess.PaymentIntent != nil {
		conf.PaymentIntentID = sess.PaymentIntent.ID
	}
	if conf.Status != StatusPaid {
		return conf, nil
	}

	customer, items, total, userID, err := DecodeMetadata(sess.Metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout session metadata is unusable")
	}
	if customer.Email == "" && sess.CustomerDetails != nil {
		customer.Email = sess.CustomerDetails.Email
	}
	conf.Customer = customer
	conf.Items = items
	conf.UserID = userID
	if total > 0 {
		conf.TotalAmount = total
	}
	return conf, nil
}

func (a *StripeAdapter) ConfirmIntent(ctx context.Context, paymentID string) (*IntentResult, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_id is required")
	}

	if strings.HasPrefix(paymentID, checkoutSessionPrefix) {
		conf, err := a.ConfirmSession(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		id := conf.PaymentIntentID
		if id == "" {
			id = conf.SessionID
		}
		return &IntentResult{ID: id, SessionID: conf.SessionID, Status: conf.Status, Amount: conf.TotalAmount}, nil
	}

	intent, err := a.api.GetPaymentIntent(ctx, paymentID, nil)
	if err != nil {
		return nil, mapStripeError(err, "retrieve payment intent")
	}
	return &IntentResult{ID: intent.ID, Status: intentStatus(intent), Amount: intent.Amount}, nil
}

func sessionStatus(sess *stripe.CheckoutSession) Status {
	switch sess.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return StatusPaid
	}
	if sess.Status == stripe.CheckoutSessionStatusExpired {
		return StatusFailed
	}
	return StatusUnpaid
}

// intentStatus treats requires_payment_method as failed only after an attempt was declined.
func intentStatus(intent *stripe.PaymentIntent) Status {
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusPaid
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if intent.LastPaymentError != nil {
			return StatusFailed
		}
		return StatusUnpaid
	default:
		return StatusUnpaid
	}
}

// mapStripeError turns Stripe's "resource_missing" into NotFound and everything
// else into a dependency failure.
func mapStripeError(err error, msg string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment session not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
