package payments

import "context"

// Status is the provider-agnostic outcome of a payment lookup.
type Status string

const (
	StatusPaid   Status = "paid"
	StatusUnpaid Status = "unpaid"
	StatusFailed Status = "failed"
)

// Customer is the contact data carried through the provider session.
type Customer struct {
	Name    string
	Phone   string
	Email   string
	Address string
	Notes   string
}

// Item is a priced line as recorded on the provider session. UnitPrice is in cents.
type Item struct {
	ProductID uint64
	Name      string
	Image     string
	Quantity  int
	UnitPrice int64
}

// Confirmation is what the provider reports for a checkout session.
type Confirmation struct {
	SessionID       string
	PaymentIntentID string
	Status          Status
	TotalAmount     int64
	Currency        string
	Customer        Customer
	Items           []Item
	UserID          *uint64
}

// IntentResult is the state of a single payment attempt. Amount is in cents;
// SessionID is set when the attempt was looked up through a checkout session.
type IntentResult struct {
	ID        string
	SessionID string
	Status    Status
	Amount    int64
}

// CheckoutRequest describes a hosted checkout page to open. Items must already be priced.
type CheckoutRequest struct {
	Customer    Customer
	Items       []Item
	TotalAmount int64
	UserID      *uint64
}

// CheckoutSession identifies a hosted checkout page.
type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// Adapter is the boundary to the payment provider.
type Adapter interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ConfirmSession(ctx context.Context, sessionID string) (*Confirmation, error)
	// ConfirmIntent accepts either a payment intent id or a checkout session id.
	ConfirmIntent(ctx context.Context, paymentID string) (*IntentResult, error)
}
