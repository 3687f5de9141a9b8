package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/hydromart/marketplace-backend/pkg/db"
	"github.com/hydromart/marketplace-backend/pkg/db/models"
	"github.com/hydromart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
	"github.com/hydromart/marketplace-backend/pkg/outbox"
	"github.com/hydromart/marketplace-backend/pkg/pagination"
)

type fixture struct {
	db     *gorm.DB
	svc    Service
	outbox *outbox.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Vendor{}, &models.OrderItem{}, &models.VendorLedgerEntry{}, &models.OutboxEvent{}))

	outboxRepo := outbox.NewRepository(conn)
	svc, err := NewService(NewRepository(conn), dbpkg.NewFromConn(conn), outbox.NewService(outboxRepo, nil))
	require.NoError(t, err)
	return fixture{db: conn, svc: svc, outbox: outboxRepo}
}

func (f fixture) seedVendor(t *testing.T, balance int) models.Vendor {
	t.Helper()
	v := models.Vendor{Name: "Blue Spring Water", BalanceCents: balance}
	require.NoError(t, f.db.Create(&v).Error)
	return v
}

func (f fixture) seedItem(t *testing.T, vendorID *uuid.UUID, amount int) models.OrderItem {
	t.Helper()
	item := models.OrderItem{
		OrderID:           uuid.New(),
		ProductID:         uuid.New(),
		VendorID:          vendorID,
		Status:            enums.OrderItemStatusShipped,
		Quantity:          2,
		PriceCents:        75,
		VendorAmountCents: amount,
	}
	require.NoError(t, f.db.Create(&item).Error)
	return item
}

func (f fixture) balance(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var v models.Vendor
	require.NoError(t, f.db.First(&v, "id = ?", id).Error)
	return v.BalanceCents
}

func (f fixture) credit(t *testing.T, item models.OrderItem) (*CreditResult, error) {
	t.Helper()
	var res *CreditResult
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = f.svc.CreditDelivery(context.Background(), tx, &item)
		return err
	})
	return res, err
}

func TestCreditDeliveryIsOnceOnly(t *testing.T) {
	f := newFixture(t)
	vendor := f.seedVendor(t, 0)
	item := f.seedItem(t, &vendor.ID, 100)

	first, err := f.credit(t, item)
	require.NoError(t, err)
	require.True(t, first.Credited)
	require.Equal(t, 100, first.BalanceAfterCents)
	require.Equal(t, enums.LedgerEntryDeliveryCredit, first.Entry.Type)

	second, err := f.credit(t, item)
	require.NoError(t, err)
	require.False(t, second.Credited)

	require.Equal(t, 100, f.balance(t, vendor.ID))

	ledger, err := f.svc.ListEntries(context.Background(), vendor.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, ledger.Entries, 1)
	require.Equal(t, 100, ledger.Vendor.BalanceCents)

	events, err := f.outbox.ListByAggregate(vendor.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventVendorCredited, events[0].EventType)
}

func TestCreditDeliveryWithoutVendorMarksOnly(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, nil, 100)

	res, err := f.credit(t, item)
	require.NoError(t, err)
	require.False(t, res.Credited)

	var reloaded models.OrderItem
	require.NoError(t, f.db.First(&reloaded, "id = ?", item.ID).Error)
	require.NotNil(t, reloaded.VendorCreditedAt)
}

func TestCreditDeliveryZeroAmount(t *testing.T) {
	f := newFixture(t)
	vendor := f.seedVendor(t, 40)
	item := f.seedItem(t, &vendor.ID, 0)

	res, err := f.credit(t, item)
	require.NoError(t, err)
	require.False(t, res.Credited)
	require.Equal(t, 40, f.balance(t, vendor.ID))
}

func TestCreditDeliveryUnknownVendorRollsBack(t *testing.T) {
	f := newFixture(t)
	missing := uuid.New()
	item := f.seedItem(t, &missing, 100)

	_, err := f.credit(t, item)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	var reloaded models.OrderItem
	require.NoError(t, f.db.First(&reloaded, "id = ?", item.ID).Error)
	require.Nil(t, reloaded.VendorCreditedAt)
}

func TestCreditDeliveryDuplicateEntryIsConflict(t *testing.T) {
	f := newFixture(t)
	vendor := f.seedVendor(t, 0)
	item := f.seedItem(t, &vendor.ID, 100)
	itemID := item.ID
	require.NoError(t, f.db.Create(&models.VendorLedgerEntry{
		VendorID:    vendor.ID,
		OrderItemID: &itemID,
		Type:        enums.LedgerEntryDeliveryCredit,
		AmountCents: 100,
	}).Error)

	_, err := f.credit(t, item)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, 0, f.balance(t, vendor.ID))
}

func TestRecordPayout(t *testing.T) {
	f := newFixture(t)
	vendor := f.seedVendor(t, 500)
	ctx := context.Background()

	entry, err := f.svc.RecordPayout(ctx, PayoutInput{VendorID: vendor.ID, AmountCents: 200, Reference: " wire-42 "})
	require.NoError(t, err)
	require.Equal(t, -200, entry.AmountCents)
	require.Equal(t, 300, entry.BalanceAfterCents)
	require.Equal(t, "wire-42", *entry.Reference)
	require.Equal(t, 300, f.balance(t, vendor.ID))

	_, err = f.svc.RecordPayout(ctx, PayoutInput{VendorID: vendor.ID, AmountCents: 301})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 300, f.balance(t, vendor.ID))

	_, err = f.svc.RecordPayout(ctx, PayoutInput{VendorID: vendor.ID, AmountCents: 0})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.RecordPayout(ctx, PayoutInput{VendorID: uuid.New(), AmountCents: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListEntriesUnknownVendor(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListEntries(context.Background(), uuid.New(), pagination.Params{Limit: 10})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.ListEntries(context.Background(), uuid.Nil, pagination.Params{Limit: 10})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	require.Error(t, err)
}

func TestListEntriesPagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	vendor := f.seedVendor(t, 0)
	for i := 0; i < 3; i++ {
		item := f.seedItem(t, &vendor.ID, 100)
		_, err := f.credit(t, item)
		require.NoError(t, err)
	}

	first, err := f.svc.ListEntries(context.Background(), vendor.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Entries, 2)
	require.NotEmpty(t, first.NextCursor)
	require.Equal(t, 300, first.Entries[0].BalanceAfterCents)

	second, err := f.svc.ListEntries(context.Background(), vendor.ID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Entries, 1)
	require.Empty(t, second.NextCursor)
	require.Equal(t, 100, second.Entries[0].BalanceAfterCents)

	_, err = f.svc.ListEntries(context.Background(), vendor.ID, pagination.Params{Cursor: "%%%"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
