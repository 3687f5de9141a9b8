package models

import (
	"time"

	"github.com/google/uuid"
)

// Product carries the stock counter owned by the inventory ledger.
type Product struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	VendorID   *uuid.UUID `gorm:"column:vendor_id;type:uuid;index"`
	Name       string     `gorm:"column:name;not null"`
	PriceCents int        `gorm:"column:price_cents;not null;default:0"`
	Stock      int        `gorm:"column:stock;not null;default:0"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
