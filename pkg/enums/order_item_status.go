package enums

import "fmt"

// OrderItemStatus tracks fulfillment of a single order line.
type OrderItemStatus string

const (
	OrderItemStatusPending    OrderItemStatus = "PENDING"
	OrderItemStatusConfirmed  OrderItemStatus = "CONFIRMED"
	OrderItemStatusProcessing OrderItemStatus = "PROCESSING"
	OrderItemStatusShipped    OrderItemStatus = "SHIPPED"
	OrderItemStatusDelivered  OrderItemStatus = "DELIVERED"
	OrderItemStatusCancelled  OrderItemStatus = "CANCELLED"
	OrderItemStatusReturned   OrderItemStatus = "RETURNED"
)

var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusPending,
	OrderItemStatusConfirmed,
	OrderItemStatusProcessing,
	OrderItemStatusShipped,
	OrderItemStatusDelivered,
	OrderItemStatusCancelled,
	OrderItemStatusReturned,
}

// String implements fmt.Stringer.
func (s OrderItemStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderItemStatus.
func (s OrderItemStatus) IsValid() bool {
	for _, candidate := range validOrderItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderItemStatus) IsTerminal() bool {
	switch s {
	case OrderItemStatusDelivered, OrderItemStatusCancelled, OrderItemStatusReturned:
		return true
	default:
		return false
	}
}

// ParseOrderItemStatus converts raw input into an OrderItemStatus.
func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	for _, candidate := range validOrderItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order item status %q", value)
}
