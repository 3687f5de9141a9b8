package models

import (
	"time"

	"github.com/google/uuid"
)

// PromoCode is read by the redemption guard; CRUD lives elsewhere.
type PromoCode struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Code          string     `gorm:"column:code;not null;uniqueIndex"`
	IsActive      bool       `gorm:"column:is_active;not null;default:true"`
	DiscountCents int        `gorm:"column:discount_cents;not null;default:0"`
	MinOrderCents int        `gorm:"column:min_order_cents;not null;default:0"`
	UsageLimit    *int       `gorm:"column:usage_limit"`
	PerUserLimit  *int       `gorm:"column:per_user_limit"`
	UsedCount     int        `gorm:"column:used_count;not null;default:0"`
	StartsAt      *time.Time `gorm:"column:starts_at"`
	EndsAt        *time.Time `gorm:"column:ends_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

type PromoRedemption struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PromoCodeID   uuid.UUID `gorm:"column:promo_code_id;type:uuid;not null;index"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	DiscountCents int       `gorm:"column:discount_cents;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
