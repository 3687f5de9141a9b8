package promos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hydromart/marketplace-backend/pkg/db/models"
)

// Repository reads promo codes and records redemptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	FindByCode(ctx context.Context, code string) (*models.PromoCode, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	CountUserRedemptions(ctx context.Context, promoID, userID uuid.UUID) (int64, error)
	FindRedemptionByOrder(ctx context.Context, orderID uuid.UUID) (*models.PromoRedemption, error)
	IncrementUsage(ctx context.Context, promoID uuid.UUID) (bool, error)
	CreateRedemption(ctx context.Context, redemption *models.PromoRedemption) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := r.db.WithContext(ctx).First(&promo, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

// FindByCode matches case-insensitively.
func (r *repository) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&promo).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&promo, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *repository) CountUserRedemptions(ctx context.Context, promoID, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.PromoRedemption{}).
		Where("promo_code_id = ? AND user_id = ?", promoID, userID).
		Count(&n).Error
	return n, err
}

func (r *repository) FindRedemptionByOrder(ctx context.Context, orderID uuid.UUID) (*models.PromoRedemption, error) {
	var redemption models.PromoRedemption
	if err := r.db.WithContext(ctx).First(&redemption, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &redemption, nil
}

// IncrementUsage bumps used_count while the global limit still allows it.
func (r *repository) IncrementUsage(ctx context.Context, promoID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", promoID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateRedemption(ctx context.Context, redemption *models.PromoRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}
