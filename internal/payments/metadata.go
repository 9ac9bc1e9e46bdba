package payments

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Stripe limits metadata to 50 keys with values of at most 500 characters.
const (
	maxMetadataValue = 500
	maxItemChunks    = 40
)

const (
	metaCustomerName    = "customer_name"
	metaCustomerPhone   = "customer_phone"
	metaCustomerEmail   = "customer_email"
	metaDeliveryAddress = "delivery_address"
	metaOrderNotes      = "order_notes"
	metaTotalAmount     = "total_amount"
	metaUserID          = "user_id"
	metaItemsCount      = "items_count"
	metaItemsPrefix     = "items_"
)

type metadataItem struct {
	ProductID uint64          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// EncodeMetadata flattens a checkout request into Stripe session metadata.
// Prices are written in major units; the item list is split across items_N keys.
func EncodeMetadata(req CheckoutRequest) (map[string]string, error) {
	out := map[string]string{
		metaCustomerName:  truncate(req.Customer.Name),
		metaCustomerPhone: truncate(req.Customer.Phone),
		metaTotalAmount:   centsToMajor(req.TotalAmount).StringFixed(2),
	}
	if req.Customer.Email != "" {
		out[metaCustomerEmail] = truncate(req.Customer.Email)
	}
	if req.Customer.Address != "" {
		out[metaDeliveryAddress] = truncate(req.Customer.Address)
	}
	if req.Customer.Notes != "" {
		out[metaOrderNotes] = truncate(req.Customer.Notes)
	}
	if req.UserID != nil {
		out[metaUserID] = strconv.FormatUint(*req.UserID, 10)
	}

	items := make([]metadataItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, metadataItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: centsToMajor(item.UnitPrice),
		})
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode metadata items: %w", err)
	}

	chunks := chunk(string(raw), maxMetadataValue)
	if len(chunks) > maxItemChunks {
		return nil, fmt.Errorf("too many items for session metadata (%d chunks)", len(chunks))
	}
	for i, part := range chunks {
		out[metaItemsPrefix+strconv.Itoa(i)] = part
	}
	out[metaItemsCount] = strconv.Itoa(len(chunks))
	return out, nil
}

// DecodeMetadata rebuilds the customer, item list, total and user id written by
// EncodeMetadata. Every problem found is reported, not just the first.
func DecodeMetadata(meta map[string]string) (Customer, []Item, int64, *uint64, error) {
	customer := Customer{
		Name:    meta[metaCustomerName],
		Phone:   meta[metaCustomerPhone],
		Email:   meta[metaCustomerEmail],
		Address: meta[metaDeliveryAddress],
		Notes:   meta[metaOrderNotes],
	}

	var errs error
	count, err := strconv.Atoi(meta[metaItemsCount])
	if err != nil || count <= 0 {
		return customer, nil, 0, nil, fmt.Errorf("session metadata has no items")
	}

	var raw strings.Builder
	for i := 0; i < count; i++ {
		part, ok := meta[metaItemsPrefix+strconv.Itoa(i)]
		if !ok {
			return customer, nil, 0, nil, fmt.Errorf("session metadata missing %s%d", metaItemsPrefix, i)
		}
		raw.WriteString(part)
	}

	var decoded []metadataItem
	if err := json.Unmarshal([]byte(raw.String()), &decoded); err != nil {
		return customer, nil, 0, nil, fmt.Errorf("decode metadata items: %w", err)
	}

	items := make([]Item, 0, len(decoded))
	for i, item := range decoded {
		cents, err := majorToCents(item.UnitPrice)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("item %d: %w", i, err))
			continue
		}
		items = append(items, Item{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: cents,
		})
	}

	var total int64
	if value := meta[metaTotalAmount]; value != "" {
		amount, err := decimal.NewFromString(value)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("total_amount: %w", err))
		} else if total, err = majorToCents(amount); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("total_amount: %w", err))
		}
	}

	var userID *uint64
	if value := meta[metaUserID]; value != "" {
		id, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("user_id: %w", err))
		} else {
			userID = &id
		}
	}

	if errs != nil {
		return customer, nil, 0, nil, errs
	}
	return customer, items, total, userID, nil
}

func centsToMajor(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

func majorToCents(amount decimal.Decimal) (int64, error) {
	cents := amount.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-cent precision", amount.String())
	}
	return cents.IntPart(), nil
}

func truncate(value string) string {
	if len(value) <= maxMetadataValue {
		return value
	}
	return chunk(value, maxMetadataValue)[0]
}

// chunk splits s into pieces of at most size bytes without breaking runes.
func chunk(s string, size int) []string {
	if s == "" {
		return []string{""}
	}
	var parts []string
	for len(s) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	return append(parts, s)
}
