package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (o *Order) BeforeCreate(*gorm.DB) error             { ensureID(&o.ID); return nil }
func (i *OrderItem) BeforeCreate(*gorm.DB) error         { ensureID(&i.ID); return nil }
func (v *Vendor) BeforeCreate(*gorm.DB) error            { ensureID(&v.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error           { ensureID(&p.ID); return nil }
func (e *VendorLedgerEntry) BeforeCreate(*gorm.DB) error { ensureID(&e.ID); return nil }
func (p *PromoCode) BeforeCreate(*gorm.DB) error         { ensureID(&p.ID); return nil }
func (r *PromoRedemption) BeforeCreate(*gorm.DB) error   { ensureID(&r.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error       { ensureID(&e.ID); return nil }

// All lists every persisted model, in dependency order, for dev auto-migration
// and tests.
func All() []any {
	return []any{
		&Vendor{},
		&Product{},
		&PromoCode{},
		&Order{},
		&OrderItem{},
		&VendorLedgerEntry{},
		&PromoRedemption{},
		&OutboxEvent{},
	}
}
