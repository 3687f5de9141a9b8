package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/hydromart/marketplace-backend/pkg/db"
	"github.com/hydromart/marketplace-backend/pkg/db/models"
	"github.com/hydromart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
	"github.com/hydromart/marketplace-backend/pkg/outbox"
	"github.com/hydromart/marketplace-backend/pkg/outbox/payloads"
	"github.com/hydromart/marketplace-backend/pkg/pagination"
)

// Service is the only writer of vendors.balance_cents.
type Service interface {
	CreditDelivery(ctx context.Context, tx *gorm.DB, item *models.OrderItem) (*CreditResult, error)
	RecordPayout(ctx context.Context, input PayoutInput) (*models.VendorLedgerEntry, error)
	ListEntries(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*VendorLedger, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreditResult describes the outcome of a delivery settlement.
type CreditResult struct {
	Credited          bool
	VendorID          uuid.UUID
	AmountCents       int
	BalanceAfterCents int
	Entry             *models.VendorLedgerEntry
}

// PayoutInput debits a vendor balance.
type PayoutInput struct {
	VendorID    uuid.UUID
	AmountCents int
	Reference   string
	ActorUserID uuid.UUID
}

// VendorLedger is the balance plus one page of entries, newest first.
type VendorLedger struct {
	Vendor     models.Vendor
	Entries    []models.VendorLedgerEntry
	NextCursor string
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	limits pagination.Limits
	now    func() time.Time
}

// Option customizes a ledger service.
type Option func(*service)

// WithPageLimits overrides the entry listing page size bounds.
func WithPageLimits(l pagination.Limits) Option {
	return func(s *service) { s.limits = l }
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	svc := &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		limits: pagination.Limits{Default: 50, Max: 200},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// CreditDelivery credits the item's vendor amount at most once. The
// vendor_credited_at marker is claimed first; the unique (order_item_id, type)
// entry backs it at the storage level.
func (s *service) CreditDelivery(ctx context.Context, tx *gorm.DB, item *models.OrderItem) (*CreditResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if item == nil || item.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item required")
	}
	repo := s.repo.WithTx(tx)
	now := s.now()

	marked, err := repo.MarkItemCredited(ctx, item.ID, now)
	if err != nil {
		return nil, dbpkg.MapError(err, "mark item credited")
	}
	result := &CreditResult{AmountCents: item.VendorAmountCents}
	if item.VendorID != nil {
		result.VendorID = *item.VendorID
	}
	if !marked {
		return result, nil
	}
	item.VendorCreditedAt = &now
	if item.VendorID == nil || item.VendorAmountCents <= 0 {
		return result, nil
	}

	if _, err := repo.LockVendor(ctx, *item.VendorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "vendor not found")
		}
		return nil, dbpkg.MapError(err, "lock vendor")
	}
	if err := repo.AdjustBalance(ctx, *item.VendorID, item.VendorAmountCents); err != nil {
		return nil, dbpkg.MapError(err, "credit vendor balance")
	}
	vendor, err := repo.FindVendor(ctx, *item.VendorID)
	if err != nil {
		return nil, dbpkg.MapError(err, "reload vendor")
	}

	orderID := item.OrderID
	itemID := item.ID
	metadata, err := json.Marshal(map[string]any{
		"quantity":    item.Quantity,
		"price_cents": item.PriceCents,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode ledger metadata")
	}
	entry := &models.VendorLedgerEntry{
		VendorID:          vendor.ID,
		OrderID:           &orderID,
		OrderItemID:       &itemID,
		Type:              enums.LedgerEntryDeliveryCredit,
		AmountCents:       item.VendorAmountCents,
		BalanceAfterCents: vendor.BalanceCents,
		Metadata:          metadata,
		CreatedAt:         now,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "item already credited")
		}
		return nil, dbpkg.MapError(err, "record ledger entry")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventVendorCredited,
		AggregateType: enums.AggregateVendor,
		AggregateID:   vendor.ID,
		Data: payloads.VendorCreditedEvent{
			VendorID:          vendor.ID,
			OrderID:           orderID,
			OrderItemID:       itemID,
			AmountCents:       item.VendorAmountCents,
			BalanceAfterCents: vendor.BalanceCents,
		},
		OccurredAt: now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit vendor credited event")
	}

	result.Credited = true
	result.BalanceAfterCents = vendor.BalanceCents
	result.Entry = entry
	return result, nil
}

// RecordPayout debits the balance; the balance never goes below zero.
func (s *service) RecordPayout(ctx context.Context, input PayoutInput) (*models.VendorLedgerEntry, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}

	var entry *models.VendorLedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		vendor, err := repo.LockVendor(ctx, input.VendorID)
		if err != nil {
			return dbpkg.MapError(err, "load vendor")
		}
		if vendor.BalanceCents < input.AmountCents {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout exceeds vendor balance").
				WithDetails(map[string]any{"balance_cents": vendor.BalanceCents, "amount_cents": input.AmountCents})
		}
		if err := repo.AdjustBalance(ctx, vendor.ID, -input.AmountCents); err != nil {
			return dbpkg.MapError(err, "debit vendor balance")
		}
		balanceAfter := vendor.BalanceCents - input.AmountCents

		var reference *string
		if ref := strings.TrimSpace(input.Reference); ref != "" {
			reference = &ref
		}
		created := &models.VendorLedgerEntry{
			VendorID:          vendor.ID,
			Type:              enums.LedgerEntryPayout,
			AmountCents:       -input.AmountCents,
			BalanceAfterCents: balanceAfter,
			Reference:         reference,
			CreatedAt:         s.now(),
		}
		if err := repo.CreateEntry(ctx, created); err != nil {
			return dbpkg.MapError(err, "record payout entry")
		}

		var actor *outbox.ActorRef
		if input.ActorUserID != uuid.Nil {
			actor = &outbox.ActorRef{UserID: input.ActorUserID, Role: string(enums.RoleAdmin)}
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorPayoutRecorded,
			AggregateType: enums.AggregateVendor,
			AggregateID:   vendor.ID,
			Actor:         actor,
			Data: payloads.VendorPayoutRecordedEvent{
				VendorID:          vendor.ID,
				AmountCents:       input.AmountCents,
				BalanceAfterCents: balanceAfter,
				Reference:         strings.TrimSpace(input.Reference),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payout event")
		}
		entry = created
		return nil
	})
	if err != nil {
		return nil, dbpkg.MapError(err, "record payout")
	}
	return entry, nil
}

func (s *service) ListEntries(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*VendorLedger, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := s.limits.Normalize(params.Limit)

	vendor, err := s.repo.FindVendor(ctx, vendorID)
	if err != nil {
		return nil, dbpkg.MapError(err, "load vendor")
	}
	entries, err := s.repo.ListEntries(ctx, vendorID, cursor, limit+1)
	if err != nil {
		return nil, dbpkg.MapError(err, "list ledger entries")
	}

	out := &VendorLedger{Vendor: *vendor, Entries: entries}
	if len(entries) > limit {
		out.Entries = entries[:limit]
		last := out.Entries[limit-1]
		out.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return out, nil
}
