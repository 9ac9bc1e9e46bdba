package orders

import (
	"time"

	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

// CustomerInfo is the contact block captured at checkout.
type CustomerInfo struct {
	Name            string
	Phone           string
	Email           string
	DeliveryAddress string
	Notes           string
}

// LineInput is one requested order line. UnitPrice is in cents.
type LineInput struct {
	ProductID    uint64
	ProductName  string
	ProductImage string
	Quantity     int
	UnitPrice    int64
}

// CreateOrderInput carries everything needed to materialize an order.
// PaymentVerified marks a card order whose payment was already confirmed upstream.
type CreateOrderInput struct {
	UserID           *uint64
	Customer         CustomerInfo
	Items            []LineInput
	PaymentMethod    enums.PaymentMethod
	TotalAmount      int64
	PaymentSessionID *string
	PaymentIntentID  *string
	PaymentVerified  bool
}

// ItemDTO is the API view of an order line.
type ItemDTO struct {
	ProductID    uint64 `json:"product_id"`
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image,omitempty"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unit_price"`
	TotalPrice   int64  `json:"total_price"`
}

// OrderDTO is the API view of an order.
type OrderDTO struct {
	ID               uint64              `json:"id"`
	OrderNumber      string              `json:"order_number"`
	UserID           *uint64             `json:"user_id,omitempty"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	TotalAmount      int64               `json:"total_amount"`
	PaymentSessionID *string             `json:"payment_session_id,omitempty"`
	PaymentIntentID  *string             `json:"payment_intent_id,omitempty"`
	CustomerName     string              `json:"customer_name"`
	CustomerPhone    string              `json:"customer_phone"`
	CustomerEmail    string              `json:"customer_email,omitempty"`
	DeliveryAddress  string              `json:"delivery_address,omitempty"`
	OrderNotes       string              `json:"order_notes,omitempty"`
	Items            []ItemDTO           `json:"items"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Summary is the compact response returned after creating or verifying an order.
type Summary struct {
	OrderID       uint64              `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	TotalAmount   int64               `json:"total_amount"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
}

// MaterializeResult reports whether the order was created by this call or replayed.
type MaterializeResult struct {
	Order    OrderDTO
	Replayed bool
}

func (o OrderDTO) Summary() Summary {
	return Summary{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		TotalAmount:   o.TotalAmount,
		PaymentStatus: o.PaymentStatus,
	}
}

func toOrderDTO(order *models.Order) OrderDTO {
	items := make([]ItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ItemDTO{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductImage: item.ProductImage,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			TotalPrice:   item.TotalPrice,
		})
	}
	return OrderDTO{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		UserID:           order.UserID,
		PaymentMethod:    order.PaymentMethod,
		PaymentStatus:    order.PaymentStatus,
		TotalAmount:      order.TotalAmount,
		PaymentSessionID: order.PaymentSessionID,
		PaymentIntentID:  order.PaymentIntentID,
		CustomerName:     order.CustomerName,
		CustomerPhone:    order.CustomerPhone,
		CustomerEmail:    order.CustomerEmail,
		DeliveryAddress:  order.DeliveryAddress,
		OrderNotes:       order.OrderNotes,
		Items:            items,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}
