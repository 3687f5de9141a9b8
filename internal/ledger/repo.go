package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hydromart/marketplace-backend/pkg/db/models"
	"github.com/hydromart/marketplace-backend/pkg/pagination"
)

// Repository manages vendor balances and their append-only entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
	LockVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
	AdjustBalance(ctx context.Context, vendorID uuid.UUID, deltaCents int) error
	MarkItemCredited(ctx context.Context, itemID uuid.UUID, at time.Time) (bool, error)
	CreateEntry(ctx context.Context, entry *models.VendorLedgerEntry) error
	ListEntries(ctx context.Context, vendorID uuid.UUID, after *pagination.Cursor, limit int) ([]models.VendorLedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).First(&vendor, "id = ?", vendorID).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) LockVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&vendor, "id = ?", vendorID).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) AdjustBalance(ctx context.Context, vendorID uuid.UUID, deltaCents int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Where("id = ?", vendorID).
		Update("balance_cents", gorm.Expr("balance_cents + ?", deltaCents))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkItemCredited flips vendor_credited_at from NULL; false means the item
// was already settled.
func (r *repository) MarkItemCredited(ctx context.Context, itemID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND vendor_credited_at IS NULL", itemID).
		Update("vendor_credited_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.VendorLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, vendorID uuid.UUID, after *pagination.Cursor, limit int) ([]models.VendorLedgerEntry, error) {
	query := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID)
	if after != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var entries []models.VendorLedgerEntry
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
