package orders

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hydromart/marketplace-backend/internal/inventory"
	"github.com/hydromart/marketplace-backend/internal/promos"
	dbpkg "github.com/hydromart/marketplace-backend/pkg/db"
	"github.com/hydromart/marketplace-backend/pkg/db/models"
	"github.com/hydromart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
	"github.com/hydromart/marketplace-backend/pkg/metrics"
	"github.com/hydromart/marketplace-backend/pkg/outbox"
	"github.com/hydromart/marketplace-backend/pkg/outbox/payloads"
)

const (
	orderNumberPrefix = "HM-"
	tranIDPrefix      = "TRX-"
	maxCommissionBps  = 10000
)

// Placer creates PENDING orders. Stock is reserved and the promo redeemed in
// the same transaction as the insert.
type Placer interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderDetail, error)
}

type PlaceItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// PlaceOrderInput describes a new order. TranID is generated when empty.
type PlaceOrderInput struct {
	UserID        uuid.UUID
	Items         []PlaceItemInput
	PromoCode     string
	ShippingCents int
	VATCents      int
	TranID        string
	Notes         string
	Actor         Actor
}

// PlacerParams wires a Placer. CommissionBps is the marketplace share of each
// line in basis points; the vendor amount is the remainder, rounded down.
type PlacerParams struct {
	Repository    Repository
	DB            txRunner
	Outbox        outboxPublisher
	Stock         inventory.Ledger
	Promos        promos.Guard
	Metrics       *metrics.SettlementMetrics
	CommissionBps int
}

type placer struct {
	repo       Repository
	tx         txRunner
	outbox     outboxPublisher
	stock      inventory.Ledger
	promos     promos.Guard
	metrics    *metrics.SettlementMetrics
	commission decimal.Decimal
	now        func() time.Time
}

func NewPlacer(params PlacerParams) (Placer, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Promos == nil {
		return nil, fmt.Errorf("promo guard required")
	}
	if params.CommissionBps < 0 || params.CommissionBps > maxCommissionBps {
		return nil, fmt.Errorf("commission must be between 0 and %d bps", maxCommissionBps)
	}
	return &placer{
		repo:       params.Repository,
		tx:         params.DB,
		outbox:     params.Outbox,
		stock:      params.Stock,
		promos:     params.Promos,
		metrics:    params.Metrics,
		commission: decimal.New(int64(params.CommissionBps), -4),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *placer) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderDetail, error) {
	lines, err := normalizeLines(input)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New()
	err = p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)
		now := p.now()

		order := &models.Order{
			ID:            orderID,
			OrderNumber:   newOrderNumber(now),
			UserID:        input.UserID,
			Status:        enums.OrderStatusPending,
			PaymentStatus: enums.PaymentStatusPending,
			ShippingCents: input.ShippingCents,
			VATCents:      input.VATCents,
			Items:         make([]models.OrderItem, 0, len(lines)),
		}
		tranID := strings.TrimSpace(input.TranID)
		if tranID == "" {
			tranID = tranIDPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
		}
		order.TranID = &tranID
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			order.Notes = &notes
		}

		for _, line := range lines {
			product, err := p.stock.Reserve(ctx, tx, line.ProductID, line.Quantity)
			if err != nil {
				return loadError(err, "product")
			}
			lineTotal := product.PriceCents * line.Quantity
			order.SubtotalCents += lineTotal
			order.Items = append(order.Items, models.OrderItem{
				OrderID:           orderID,
				ProductID:         product.ID,
				VendorID:          product.VendorID,
				Status:            enums.OrderItemStatusPending,
				Quantity:          line.Quantity,
				PriceCents:        product.PriceCents,
				VendorAmountCents: p.vendorShare(lineTotal),
			})
		}
		order.TotalCents = order.ComputeTotal()

		if err := repo.CreateOrder(ctx, order); err != nil {
			return dbpkg.MapError(err, "create order")
		}

		if code := strings.TrimSpace(input.PromoCode); code != "" {
			res, err := p.promos.Redeem(ctx, tx, promos.RedeemInput{
				Code:          code,
				UserID:        input.UserID,
				OrderID:       orderID,
				SubtotalCents: order.SubtotalCents,
				Now:           now,
			})
			if err != nil {
				return err
			}
			order.DiscountCents = res.DiscountCents
			order.PromoCodeID = &res.Redemption.PromoCodeID
			order.TotalCents = order.ComputeTotal()
			if err := repo.UpdateOrder(ctx, orderID, map[string]any{
				"promo_code_id":  order.PromoCodeID,
				"discount_cents": order.DiscountCents,
				"total_cents":    order.TotalCents,
			}); err != nil {
				return dbpkg.MapError(err, "apply promo discount")
			}
		}

		return p.emitPlaced(ctx, tx, order, input.Actor)
	})
	if err != nil {
		err = dbpkg.MapError(err, "place order")
		p.metrics.IncFailure("place_order", string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	p.metrics.IncTransition("order", string(enums.OrderStatusPending))

	order, err := p.repo.LoadOrderDetail(ctx, orderID)
	if err != nil {
		return nil, loadError(err, "order")
	}
	return newOrderDetail(order), nil
}

func (p *placer) vendorShare(lineTotal int) int {
	gross := decimal.NewFromInt(int64(lineTotal))
	return int(gross.Sub(gross.Mul(p.commission)).Floor().IntPart())
}

func (p *placer) emitPlaced(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor) error {
	if err := p.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.ref(),
		Data: payloads.OrderPlacedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			TranID:        *order.TranID,
			ItemCount:     len(order.Items),
			SubtotalCents: order.SubtotalCents,
			DiscountCents: order.DiscountCents,
			TotalCents:    order.TotalCents,
			PromoCodeID:   order.PromoCodeID,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order placed event")
	}
	return nil
}

// normalizeLines validates the request and merges repeated products. Lines
// come back sorted by product id so concurrent placements lock products in
// the same order.
func normalizeLines(input PlaceOrderInput) ([]PlaceItemInput, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if input.ShippingCents < 0 || input.VATCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping and vat must not be negative")
	}

	merged := make(map[uuid.UUID]int, len(input.Items))
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required").
				WithDetails(map[string]any{"index": i})
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"index": i, "product_id": item.ProductID})
		}
		merged[item.ProductID] += item.Quantity
	}

	lines := make([]PlaceItemInput, 0, len(merged))
	for id, qty := range merged {
		lines = append(lines, PlaceItemInput{ProductID: id, Quantity: qty})
	}
	slices.SortFunc(lines, func(a, b PlaceItemInput) int {
		return strings.Compare(a.ProductID.String(), b.ProductID.String())
	})
	return lines, nil
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return orderNumberPrefix + now.Format("060102") + "-" + suffix
}
