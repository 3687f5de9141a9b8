package orders

import "github.com/hydromart/marketplace-backend/pkg/enums"

// Aggregate derives an order status from its item statuses:
//
//  1. every item DELIVERED  -> DELIVERED
//  2. every item CANCELLED  -> CANCELLED
//  3. any item SHIPPED      -> SHIPPED
//  4. any item PROCESSING or CONFIRMED -> PROCESSING
//  5. otherwise current is returned unchanged
//
// Rule 5 covers mixes such as DELIVERED+PENDING or DELIVERED+CANCELLED and the
// empty item list. Those orders keep whatever status they had.
func Aggregate(current enums.OrderStatus, items []enums.OrderItemStatus) enums.OrderStatus {
	if len(items) == 0 {
		return current
	}

	var delivered, cancelled, shipped, inProgress int
	for _, status := range items {
		switch status {
		case enums.OrderItemStatusDelivered:
			delivered++
		case enums.OrderItemStatusCancelled:
			cancelled++
		case enums.OrderItemStatusShipped:
			shipped++
		case enums.OrderItemStatusProcessing, enums.OrderItemStatusConfirmed:
			inProgress++
		}
	}

	switch {
	case delivered == len(items):
		return enums.OrderStatusDelivered
	case cancelled == len(items):
		return enums.OrderStatusCancelled
	case shipped > 0:
		return enums.OrderStatusShipped
	case inProgress > 0:
		return enums.OrderStatusProcessing
	default:
		return current
	}
}

var fanOutTable = map[enums.OrderStatus]enums.OrderItemStatus{
	enums.OrderStatusPending:    enums.OrderItemStatusPending,
	enums.OrderStatusPaid:       enums.OrderItemStatusPending,
	enums.OrderStatusConfirmed:  enums.OrderItemStatusConfirmed,
	enums.OrderStatusProcessing: enums.OrderItemStatusProcessing,
	enums.OrderStatusShipped:    enums.OrderItemStatusShipped,
	enums.OrderStatusDelivered:  enums.OrderItemStatusDelivered,
	enums.OrderStatusCancelled:  enums.OrderItemStatusCancelled,
	enums.OrderStatusReturned:   enums.OrderItemStatusReturned,
}

// FanOutItemStatus translates an order-level status into the status applied to
// each of its items.
func FanOutItemStatus(status enums.OrderStatus) (enums.OrderItemStatus, bool) {
	item, ok := fanOutTable[status]
	return item, ok
}
