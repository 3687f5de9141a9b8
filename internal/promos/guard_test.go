package promos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hydromart/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
)

func newTestGuard(t *testing.T) (*gorm.DB, Guard) {
	t.Helper()
	dsn := "file:promos_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.PromoCode{}, &models.PromoRedemption{}))
	g, err := NewGuard(NewRepository(conn))
	require.NoError(t, err)
	return conn, g
}

func intPtr(v int) *int { return &v }

func seedPromo(t *testing.T, db *gorm.DB, promo models.PromoCode) models.PromoCode {
	t.Helper()
	require.NoError(t, db.Create(&promo).Error)
	return promo
}

func redeem(t *testing.T, db *gorm.DB, g Guard, input RedeemInput) (*RedeemResult, error) {
	t.Helper()
	var res *RedeemResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = g.Redeem(context.Background(), tx, input)
		return err
	})
	return res, err
}

func TestRedeemRecordsUsageOncePerOrder(t *testing.T) {
	db, g := newTestGuard(t)
	promo := seedPromo(t, db, models.PromoCode{Code: "WATER5", DiscountCents: 500, UsageLimit: intPtr(10)})
	input := RedeemInput{PromoCodeID: promo.ID, UserID: uuid.New(), OrderID: uuid.New(), SubtotalCents: 2000}

	res, err := redeem(t, db, g, input)
	require.NoError(t, err)
	require.True(t, res.Redeemed)
	require.Equal(t, 500, res.DiscountCents)

	again, err := redeem(t, db, g, input)
	require.NoError(t, err)
	require.False(t, again.Redeemed)
	require.Equal(t, 500, again.DiscountCents)

	var stored models.PromoCode
	require.NoError(t, db.First(&stored, "id = ?", promo.ID).Error)
	require.Equal(t, 1, stored.UsedCount)
}

func TestRedeemCapsDiscountAtSubtotal(t *testing.T) {
	db, g := newTestGuard(t)
	promo := seedPromo(t, db, models.PromoCode{Code: "BIG", DiscountCents: 5000})
	res, err := redeem(t, db, g, RedeemInput{PromoCodeID: promo.ID, UserID: uuid.New(), OrderID: uuid.New(), SubtotalCents: 1200})
	require.NoError(t, err)
	require.Equal(t, 1200, res.DiscountCents)
}

func TestRedeemEnforcesLimits(t *testing.T) {
	db, g := newTestGuard(t)
	user := uuid.New()

	global := seedPromo(t, db, models.PromoCode{Code: "ONCE", DiscountCents: 100, UsageLimit: intPtr(1)})
	_, err := redeem(t, db, g, RedeemInput{PromoCodeID: global.ID, UserID: uuid.New(), OrderID: uuid.New(), SubtotalCents: 1000})
	require.NoError(t, err)
	_, err = redeem(t, db, g, RedeemInput{PromoCodeID: global.ID, UserID: uuid.New(), OrderID: uuid.New(), SubtotalCents: 1000})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	perUser := seedPromo(t, db, models.PromoCode{Code: "MINE", DiscountCents: 100, PerUserLimit: intPtr(1)})
	_, err = redeem(t, db, g, RedeemInput{PromoCodeID: perUser.ID, UserID: user, OrderID: uuid.New(), SubtotalCents: 1000})
	require.NoError(t, err)
	_, err = redeem(t, db, g, RedeemInput{PromoCodeID: perUser.ID, UserID: user, OrderID: uuid.New(), SubtotalCents: 1000})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = redeem(t, db, g, RedeemInput{PromoCodeID: perUser.ID, UserID: uuid.New(), OrderID: uuid.New(), SubtotalCents: 1000})
	require.NoError(t, err)

	var stored models.PromoCode
	require.NoError(t, db.First(&stored, "id = ?", perUser.ID).Error)
	require.Equal(t, 2, stored.UsedCount)
}

func TestRedeemChecksWindowAndMinimum(t *testing.T) {
	db, g := newTestGuard(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	notYet := seedPromo(t, db, models.PromoCode{Code: "SOON", DiscountCents: 100, StartsAt: &future})
	expired := seedPromo(t, db, models.PromoCode{Code: "GONE", DiscountCents: 100, EndsAt: &past})
	minimum := seedPromo(t, db, models.PromoCode{Code: "MIN20", DiscountCents: 100, MinOrderCents: 2000})
	inactive := seedPromo(t, db, models.PromoCode{Code: "OFF", DiscountCents: 100})
	// is_active has a database default, so false must be written explicitly
	require.NoError(t, db.Model(&models.PromoCode{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	tests := []struct {
		name  string
		promo uuid.UUID
		code  pkgerrors.Code
	}{
		{"not started", notYet.ID, pkgerrors.CodeStateConflict},
		{"expired", expired.ID, pkgerrors.CodeStateConflict},
		{"below minimum", minimum.ID, pkgerrors.CodeValidation},
		{"inactive", inactive.ID, pkgerrors.CodeStateConflict},
		{"unknown", uuid.New(), pkgerrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := redeem(t, db, g, RedeemInput{PromoCodeID: tt.promo, UserID: uuid.New(), OrderID: uuid.New(), SubtotalCents: 1500, Now: now})
			require.Error(t, err)
			require.Equal(t, tt.code, pkgerrors.CodeOf(err))
		})
	}

	var redemptions int64
	require.NoError(t, db.Model(&models.PromoRedemption{}).Count(&redemptions).Error)
	require.Zero(t, redemptions)
}

func TestRedeemRejectsSecondPromoOnOrder(t *testing.T) {
	db, g := newTestGuard(t)
	a := seedPromo(t, db, models.PromoCode{Code: "A", DiscountCents: 100})
	b := seedPromo(t, db, models.PromoCode{Code: "B", DiscountCents: 100})
	order := uuid.New()
	user := uuid.New()

	_, err := redeem(t, db, g, RedeemInput{PromoCodeID: a.ID, UserID: user, OrderID: order, SubtotalCents: 500})
	require.NoError(t, err)
	_, err = redeem(t, db, g, RedeemInput{PromoCodeID: b.ID, UserID: user, OrderID: order, SubtotalCents: 500})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestValidateIsReadOnly(t *testing.T) {
	db, g := newTestGuard(t)
	seedPromo(t, db, models.PromoCode{Code: "Spring10", DiscountCents: 100, MinOrderCents: 500})

	promo, err := g.Validate(context.Background(), ValidateInput{Code: "spring10", UserID: uuid.New(), SubtotalCents: 800})
	require.NoError(t, err)
	require.Equal(t, 0, promo.UsedCount)

	_, err = g.Validate(context.Background(), ValidateInput{Code: "SPRING10", SubtotalCents: 100})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = g.Validate(context.Background(), ValidateInput{Code: "  "})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = g.Validate(context.Background(), ValidateInput{Code: "NOPE"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRedeemRequiresTransaction(t *testing.T) {
	_, g := newTestGuard(t)
	_, err := g.Redeem(context.Background(), nil, RedeemInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))

	_, err = NewGuard(nil)
	require.Error(t, err)
}

func TestRedeemResolvesCode(t *testing.T) {
	db, g := newTestGuard(t)
	promo := seedPromo(t, db, models.PromoCode{Code: "WELCOME", DiscountCents: 250})

	res, err := redeem(t, db, g, RedeemInput{Code: " welcome ", UserID: uuid.New(), OrderID: uuid.New(), SubtotalCents: 1000})
	require.NoError(t, err)
	require.True(t, res.Redeemed)
	require.Equal(t, promo.ID, res.Redemption.PromoCodeID)
	require.Equal(t, 250, res.DiscountCents)

	_, err = redeem(t, db, g, RedeemInput{Code: "MISSING", UserID: uuid.New(), OrderID: uuid.New(), SubtotalCents: 1000})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = redeem(t, db, g, RedeemInput{UserID: uuid.New(), OrderID: uuid.New(), SubtotalCents: 1000})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
