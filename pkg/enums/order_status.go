package enums

import "fmt"

// OrderStatus tracks an order from reference allocation to refund.
type OrderStatus string

const (
	// OrderStatusNew has a reference but no items yet.
	OrderStatusNew        OrderStatus = "NEW"
	OrderStatusCreated    OrderStatus = "CREATED"
	OrderStatusHold       OrderStatus = "HOLD"
	OrderStatusFailed     OrderStatus = "FAILED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusCreated,
	OrderStatusHold,
	OrderStatusFailed,
	OrderStatusCancelled,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusRefunded,
}

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusNew:        "New",
	OrderStatusCreated:    "Created",
	OrderStatusHold:       "Hold",
	OrderStatusFailed:     "Failed",
	OrderStatusCancelled:  "Cancelled",
	OrderStatusProcessing: "Processing",
	OrderStatusShipped:    "Shipped",
	OrderStatusCompleted:  "Completed",
	OrderStatusRefunded:   "Refunded",
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// Label returns the human readable name, falling back to the raw value.
func (s OrderStatus) Label() string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// OrderStatuses lists every known status in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(validOrderStatuses))
	copy(out, validOrderStatuses)
	return out
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
