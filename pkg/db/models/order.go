package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hydromart/marketplace-backend/pkg/enums"
)

// Order is a customer purchase spanning one or more vendors. Orders are never
// deleted; cancellation is a status.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber    string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status         enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'PENDING'"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'PENDING'"`
	SubtotalCents  int                 `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountCents  int                 `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents  int                 `gorm:"column:shipping_cents;not null;default:0"`
	VATCents       int                 `gorm:"column:vat_cents;not null;default:0"`
	TotalCents     int                 `gorm:"column:total_cents;not null;default:0"`
	TrackingNumber *string             `gorm:"column:tracking_number"`
	TrackingURL    *string             `gorm:"column:tracking_url"`
	Notes          *string             `gorm:"column:notes"`
	PromoCodeID    *uuid.UUID          `gorm:"column:promo_code_id;type:uuid"`
	TranID         *string             `gorm:"column:tran_id;uniqueIndex"`
	CancelReason   *string             `gorm:"column:cancel_reason"`
	CanceledAt     *time.Time          `gorm:"column:canceled_at"`
	DeliveredAt    *time.Time          `gorm:"column:delivered_at"`
	Items          []OrderItem         `gorm:"foreignKey:OrderID"`
	PromoCode      *PromoCode          `gorm:"foreignKey:PromoCodeID"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// ComputeTotal returns subtotal - discount + shipping + vat, floored at zero.
func (o Order) ComputeTotal() int {
	total := o.SubtotalCents - o.DiscountCents + o.ShippingCents + o.VATCents
	if total < 0 {
		return 0
	}
	return total
}
