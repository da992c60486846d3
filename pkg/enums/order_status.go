package enums

import "fmt"

// OrderStatus tracks the settlement lifecycle of a tour order.
type OrderStatus string

const (
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusSettled   OrderStatus = "settled"
	OrderStatusCanceled  OrderStatus = "canceled"
)

// legacyOrderStatusSynonyms maps values still emitted by older writers onto
// the canonical set. They are accepted on read and never written back.
var legacyOrderStatusSynonyms = map[string]OrderStatus{
	"pending": OrderStatusPaid,
}

var validOrderStatuses = []OrderStatus{
	OrderStatusPaid,
	OrderStatusConfirmed,
	OrderStatusSettled,
	OrderStatusCanceled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known canonical OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsConfirmable reports whether an order in this status may be confirmed.
func (o OrderStatus) IsConfirmable() bool {
	return o == OrderStatusPaid
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// NormalizeOrderStatus parses raw input, folding legacy synonyms onto the
// canonical set.
func NormalizeOrderStatus(value string) (OrderStatus, error) {
	if canonical, ok := legacyOrderStatusSynonyms[value]; ok {
		return canonical, nil
	}
	return ParseOrderStatus(value)
}
