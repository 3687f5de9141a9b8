package promos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/hydromart/marketplace-backend/pkg/db"
	"github.com/hydromart/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
)

// Guard enforces promo validity and usage limits. Usage is recorded once, when
// an order is placed; order status changes never touch it.
type Guard interface {
	Validate(ctx context.Context, input ValidateInput) (*models.PromoCode, error)
	Redeem(ctx context.Context, tx *gorm.DB, input RedeemInput) (*RedeemResult, error)
}

type ValidateInput struct {
	Code          string
	UserID        uuid.UUID
	SubtotalCents int
	Now           time.Time
}

// RedeemInput names the promo by PromoCodeID, or by Code when the ID is unset.
type RedeemInput struct {
	PromoCodeID   uuid.UUID
	Code          string
	UserID        uuid.UUID
	OrderID       uuid.UUID
	SubtotalCents int
	Now           time.Time
}

// RedeemResult reports the applied discount. Redeemed is false when the order
// had already redeemed the same code.
type RedeemResult struct {
	Redeemed      bool
	DiscountCents int
	Redemption    *models.PromoRedemption
}

type guard struct {
	repo Repository
}

func NewGuard(repo Repository) (Guard, error) {
	if repo == nil {
		return nil, fmt.Errorf("promo repository required")
	}
	return &guard{repo: repo}, nil
}

// Validate runs the redemption checks without recording usage.
func (g *guard) Validate(ctx context.Context, input ValidateInput) (*models.PromoCode, error) {
	if strings.TrimSpace(input.Code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is required")
	}
	promo, err := g.repo.FindByCode(ctx, input.Code)
	if err != nil {
		return nil, notFound(err)
	}
	uses, err := g.repo.CountUserRedemptions(ctx, promo.ID, input.UserID)
	if err != nil {
		return nil, dbpkg.MapError(err, "count promo redemptions")
	}
	if err := check(promo, uses, input.SubtotalCents, nowOr(input.Now)); err != nil {
		return nil, err
	}
	return promo, nil
}

func (g *guard) Redeem(ctx context.Context, tx *gorm.DB, input RedeemInput) (*RedeemResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.OrderID == uuid.Nil || input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order and user ids are required")
	}
	repo := g.repo.WithTx(tx)

	if input.PromoCodeID == uuid.Nil {
		if strings.TrimSpace(input.Code) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is required")
		}
		byCode, err := repo.FindByCode(ctx, input.Code)
		if err != nil {
			return nil, notFound(err)
		}
		input.PromoCodeID = byCode.ID
	}

	existing, err := repo.FindRedemptionByOrder(ctx, input.OrderID)
	switch {
	case err == nil && existing.PromoCodeID == input.PromoCodeID:
		return &RedeemResult{DiscountCents: existing.DiscountCents, Redemption: existing}, nil
	case err == nil:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already redeemed a different promo code")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, dbpkg.MapError(err, "load promo redemption")
	}

	promo, err := repo.LockByID(ctx, input.PromoCodeID)
	if err != nil {
		return nil, notFound(err)
	}
	uses, err := repo.CountUserRedemptions(ctx, promo.ID, input.UserID)
	if err != nil {
		return nil, dbpkg.MapError(err, "count promo redemptions")
	}
	if err := check(promo, uses, input.SubtotalCents, nowOr(input.Now)); err != nil {
		return nil, err
	}

	ok, err := repo.IncrementUsage(ctx, promo.ID)
	if err != nil {
		return nil, dbpkg.MapError(err, "increment promo usage")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "promo code usage limit reached")
	}

	redemption := &models.PromoRedemption{
		PromoCodeID:   promo.ID,
		UserID:        input.UserID,
		OrderID:       input.OrderID,
		DiscountCents: min(promo.DiscountCents, input.SubtotalCents),
	}
	if err := repo.CreateRedemption(ctx, redemption); err != nil {
		return nil, dbpkg.MapError(err, "record promo redemption")
	}
	return &RedeemResult{Redeemed: true, DiscountCents: redemption.DiscountCents, Redemption: redemption}, nil
}

func check(promo *models.PromoCode, userUses int64, subtotal int, now time.Time) error {
	details := map[string]any{"code": promo.Code}
	switch {
	case !promo.IsActive:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "promo code is inactive").WithDetails(details)
	case promo.StartsAt != nil && now.Before(*promo.StartsAt):
		return pkgerrors.New(pkgerrors.CodeStateConflict, "promo code is not active yet").WithDetails(details)
	case promo.EndsAt != nil && now.After(*promo.EndsAt):
		return pkgerrors.New(pkgerrors.CodeStateConflict, "promo code has expired").WithDetails(details)
	case subtotal < promo.MinOrderCents:
		details["min_order_cents"] = promo.MinOrderCents
		return pkgerrors.New(pkgerrors.CodeValidation, "order subtotal below promo minimum").WithDetails(details)
	case promo.UsageLimit != nil && promo.UsedCount >= *promo.UsageLimit:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "promo code usage limit reached").WithDetails(details)
	case promo.PerUserLimit != nil && userUses >= int64(*promo.PerUserLimit):
		return pkgerrors.New(pkgerrors.CodeStateConflict, "promo code per-user limit reached").WithDetails(details)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "promo code not found")
	}
	return dbpkg.MapError(err, "load promo code")
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
