package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hydromart/marketplace-backend/pkg/enums"
)

// OrderItem is one product line of an order, fulfilled independently.
// VendorCreditedAt and StockRestoredAt mark once-only side effects.
type OrderItem struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID         uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	VendorID          *uuid.UUID            `gorm:"column:vendor_id;type:uuid;index"`
	Status            enums.OrderItemStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	Quantity          int                   `gorm:"column:quantity;not null"`
	PriceCents        int                   `gorm:"column:price_cents;not null"`
	VendorAmountCents int                   `gorm:"column:vendor_amount_cents;not null;default:0"`
	VendorCreditedAt  *time.Time            `gorm:"column:vendor_credited_at"`
	StockRestoredAt   *time.Time            `gorm:"column:stock_restored_at"`
	Product           *Product              `gorm:"foreignKey:ProductID"`
	Vendor            *Vendor               `gorm:"foreignKey:VendorID"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
