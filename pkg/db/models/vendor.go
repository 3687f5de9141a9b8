package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor holds the running settlement balance. BalanceCents is written only
// by the vendor ledger.
type Vendor struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	Status       string    `gorm:"column:status;not null;default:'approved'"`
	BalanceCents int       `gorm:"column:balance_cents;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
