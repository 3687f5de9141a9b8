package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/hydromart/marketplace-backend/pkg/db"
	"github.com/hydromart/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
)

// Ledger is the only writer of products.stock. Every call runs inside the
// caller's transaction.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*models.Product, error)
	Restore(ctx context.Context, tx *gorm.DB, item *models.OrderItem) (*RestoreResult, error)
}

// RestoreResult reports whether a restore was applied and the stock after it.
type RestoreResult struct {
	Restored   bool
	ProductID  uuid.UUID
	Quantity   int
	StockAfter int
}

type ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger wires the stock ledger.
func NewLedger(repo Repository) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &ledger{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Reserve removes qty units from the product, failing when stock is short.
func (l *ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*models.Product, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := l.repo.WithTx(tx)

	product, err := repo.LockProduct(ctx, productID)
	if err != nil {
		return nil, dbpkg.MapError(err, "load product")
	}
	ok, err := repo.TakeStock(ctx, productID, qty)
	if err != nil {
		return nil, dbpkg.MapError(err, "reserve stock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
			WithDetails(map[string]any{"product_id": productID, "stock": product.Stock, "requested": qty})
	}
	product.Stock -= qty
	return product, nil
}

// Restore adds the item's quantity back to its product exactly once. A second
// call for the same item returns Restored=false without touching stock.
func (l *ledger) Restore(ctx context.Context, tx *gorm.DB, item *models.OrderItem) (*RestoreResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if item == nil || item.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item required")
	}
	result := &RestoreResult{ProductID: item.ProductID, Quantity: item.Quantity}
	if item.Quantity <= 0 {
		return result, nil
	}
	repo := l.repo.WithTx(tx)

	now := l.now()
	marked, err := repo.MarkItemRestored(ctx, item.ID, now)
	if err != nil {
		return nil, dbpkg.MapError(err, "mark stock restored")
	}
	if !marked {
		return result, nil
	}

	if _, err := repo.LockProduct(ctx, item.ProductID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return nil, dbpkg.MapError(err, "lock product")
	}
	if err := repo.AddStock(ctx, item.ProductID, item.Quantity); err != nil {
		return nil, dbpkg.MapError(err, "restore stock")
	}
	product, err := repo.FindProduct(ctx, item.ProductID)
	if err != nil {
		return nil, dbpkg.MapError(err, "reload product")
	}

	item.StockRestoredAt = &now
	result.Restored = true
	result.StockAfter = product.Stock
	return result, nil
}
