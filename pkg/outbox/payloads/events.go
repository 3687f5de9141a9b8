package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/hydromart/marketplace-backend/pkg/enums"
)

// OrderPlacedEvent is emitted once an order and its items are created with
// stock reserved.
type OrderPlacedEvent struct {
	OrderID       uuid.UUID  `json:"order_id"`
	OrderNumber   string     `json:"order_number"`
	UserID        uuid.UUID  `json:"user_id"`
	TranID        string     `json:"tran_id"`
	ItemCount     int        `json:"item_count"`
	SubtotalCents int        `json:"subtotal_cents"`
	DiscountCents int        `json:"discount_cents"`
	TotalCents    int        `json:"total_cents"`
	PromoCodeID   *uuid.UUID `json:"promo_code_id,omitempty"`
}

// OrderStatusChangedEvent is emitted whenever an order's fulfillment status
// moves, whether by fan-out or re-aggregation.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	Source      string            `json:"source"`
}

// OrderItemStatusChangedEvent is emitted per item transition.
type OrderItemStatusChangedEvent struct {
	OrderID     uuid.UUID             `json:"order_id"`
	OrderItemID uuid.UUID             `json:"order_item_id"`
	VendorID    *uuid.UUID            `json:"vendor_id,omitempty"`
	From        enums.OrderItemStatus `json:"from"`
	To          enums.OrderItemStatus `json:"to"`
}

// VendorCreditedEvent records a delivery settlement credit.
type VendorCreditedEvent struct {
	VendorID          uuid.UUID `json:"vendor_id"`
	OrderID           uuid.UUID `json:"order_id"`
	OrderItemID       uuid.UUID `json:"order_item_id"`
	AmountCents       int       `json:"amount_cents"`
	BalanceAfterCents int       `json:"balance_after_cents"`
}

// VendorPayoutRecordedEvent records a balance debit for a payout.
type VendorPayoutRecordedEvent struct {
	VendorID          uuid.UUID `json:"vendor_id"`
	AmountCents       int       `json:"amount_cents"`
	BalanceAfterCents int       `json:"balance_after_cents"`
	Reference         string    `json:"reference,omitempty"`
}

// StockRestoredEvent records the quantity returned to a product on cancel.
type StockRestoredEvent struct {
	ProductID   uuid.UUID `json:"product_id"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
	Quantity    int       `json:"quantity"`
	StockAfter  int       `json:"stock_after"`
}

// OrderCanceledEvent is emitted once an order has been cancelled.
type OrderCanceledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Reason      string    `json:"reason,omitempty"`
	CanceledAt  time.Time `json:"canceled_at"`
}

// PaymentStatusChangedEvent tracks the independent payment axis.
type PaymentStatusChangedEvent struct {
	OrderID uuid.UUID           `json:"order_id"`
	TranID  string              `json:"tran_id,omitempty"`
	From    enums.PaymentStatus `json:"from"`
	To      enums.PaymentStatus `json:"to"`
	Reason  string              `json:"reason,omitempty"`
}
