package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hydromart/marketplace-backend/pkg/enums"
)

// VendorLedgerEntry is an append-only record of a vendor balance mutation.
// (order_item_id, type) is unique so an item can be credited once.
type VendorLedgerEntry struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	VendorID          uuid.UUID             `gorm:"column:vendor_id;type:uuid;not null;index"`
	OrderID           *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	OrderItemID       *uuid.UUID            `gorm:"column:order_item_id;type:uuid;uniqueIndex:uniq_vendor_ledger_item_type"`
	Type              enums.LedgerEntryType `gorm:"column:type;type:text;not null;uniqueIndex:uniq_vendor_ledger_item_type"`
	AmountCents       int                   `gorm:"column:amount_cents;not null"`
	BalanceAfterCents int                   `gorm:"column:balance_after_cents;not null"`
	Reference         *string               `gorm:"column:reference"`
	Metadata          json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
}
