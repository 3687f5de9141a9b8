package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/hydromart/marketplace-backend/internal/inventory"
	"github.com/hydromart/marketplace-backend/internal/ledger"
	dbpkg "github.com/hydromart/marketplace-backend/pkg/db"
	"github.com/hydromart/marketplace-backend/pkg/db/models"
	"github.com/hydromart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
	"github.com/hydromart/marketplace-backend/pkg/metrics"
	"github.com/hydromart/marketplace-backend/pkg/outbox"
	"github.com/hydromart/marketplace-backend/pkg/outbox/payloads"
)

// Sources recorded on status events and cancellation metrics.
const (
	SourceAdmin       = "admin"
	SourcePayment     = "payment"
	SourceExpiry      = "expiry"
	sourceAggregation = "aggregation"
)

const expiredReason = "payment window expired"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the settlement engine. Every mutating call runs in a single
// transaction: order row, then item rows, then products or vendors.
type Service interface {
	GetOrder(ctx context.Context, ref string) (*OrderDetail, error)
	TransitionItem(ctx context.Context, input TransitionItemInput) (*UpdateResult, error)
	SetOrderStatus(ctx context.Context, input SetOrderStatusInput) (*UpdateResult, error)
	UpdateOrder(ctx context.Context, input UpdateOrderInput) (*UpdateResult, error)
	CancelOrder(ctx context.Context, input CancelOrderInput) (*OrderDetail, error)
	ApplyPaymentResult(ctx context.Context, input PaymentResultInput) (*OrderDetail, error)
	ExpirePendingOrders(ctx context.Context, cutoff time.Time, limit int) (*ExpiryResult, error)
}

// Actor identifies the caller for emitted events.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) ref() *outbox.ActorRef {
	if a.UserID == uuid.Nil && a.Role == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: a.UserID, Role: a.Role}
}

type TransitionItemInput struct {
	OrderRef string
	ItemID   string
	Status   string
	Actor    Actor
}

type SetOrderStatusInput struct {
	OrderRef string
	Status   string
	Actor    Actor
}

// UpdateOrderInput mirrors the admin PATCH body. Nil fields are left alone.
type UpdateOrderInput struct {
	OrderRef       string
	Status         *string
	PaymentStatus  *string
	TrackingNumber *string
	TrackingURL    *string
	Notes          *string
	ItemID         *string
	ItemStatus     *string
	Actor          Actor
}

type CancelOrderInput struct {
	OrderRef string
	Reason   string
	Source   string
	Actor    Actor
}

// PaymentResultInput is a normalized gateway notification.
type PaymentResultInput struct {
	TranID string
	Status string
	Reason string
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	stock   inventory.Ledger
	vendors ledger.Service
	metrics *metrics.SettlementMetrics
	now     func() time.Time
}

// NewService wires the settlement engine. m may be nil.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, stock inventory.Ledger, vendors ledger.Service, m *metrics.SettlementMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if vendors == nil {
		return nil, fmt.Errorf("vendor ledger required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxSvc,
		stock:   stock,
		vendors: vendors,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) GetOrder(ctx context.Context, ref string) (*OrderDetail, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}
	order, err := s.repo.FindOrderByRef(ctx, ref)
	if err != nil {
		return nil, loadError(err, "order")
	}
	return s.loadDetail(ctx, order.ID)
}

func (s *service) TransitionItem(ctx context.Context, input TransitionItemInput) (*UpdateResult, error) {
	ref := strings.TrimSpace(input.OrderRef)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}
	itemID, err := uuid.Parse(strings.TrimSpace(input.ItemID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id").
			WithDetails(map[string]any{"field": "itemId"})
	}
	target, err := enums.ParseOrderItemStatus(strings.TrimSpace(input.Status))
	if err != nil {
		return nil, invalidStatus(err, "itemStatus")
	}

	var (
		orderID uuid.UUID
		changed bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrderByRef(ctx, ref)
		if err != nil {
			return loadError(err, "order")
		}
		orderID = order.ID

		items, err := repo.LockItems(ctx, order.ID)
		if err != nil {
			return dbpkg.MapError(err, "lock order items")
		}
		idx := slices.IndexFunc(items, func(it models.OrderItem) bool { return it.ID == itemID })
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}

		changed, err = s.transitionLocked(ctx, tx, repo, &items[idx], target, input.Actor)
		if err != nil || !changed {
			return err
		}
		return s.reaggregate(ctx, tx, repo, order, items, input.Actor)
	})
	if err != nil {
		return nil, s.fail("transition_item", dbpkg.MapError(err, "transition order item"))
	}

	detail, err := s.loadDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	result := &UpdateResult{Order: detail, Message: "Order item status updated"}
	if !changed {
		result.Message = "Order item already in requested status"
	}
	for i := range detail.Items {
		if detail.Items[i].ID == itemID {
			result.Item = &detail.Items[i]
			break
		}
	}
	return result, nil
}

func (s *service) SetOrderStatus(ctx context.Context, input SetOrderStatusInput) (*UpdateResult, error) {
	status := input.Status
	return s.UpdateOrder(ctx, UpdateOrderInput{OrderRef: input.OrderRef, Status: &status, Actor: input.Actor})
}

// UpdateOrder dispatches the admin PATCH. itemId with itemStatus selects the
// single-item path; anything else is an order-level update where status fans
// out to the items.
func (s *service) UpdateOrder(ctx context.Context, input UpdateOrderInput) (*UpdateResult, error) {
	hasItemID := present(input.ItemID)
	hasItemStatus := present(input.ItemStatus)
	switch {
	case hasItemID && hasItemStatus:
		return s.TransitionItem(ctx, TransitionItemInput{
			OrderRef: input.OrderRef,
			ItemID:   *input.ItemID,
			Status:   *input.ItemStatus,
			Actor:    input.Actor,
		})
	case hasItemID != hasItemStatus:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "itemId and itemStatus must be provided together")
	}

	ref := strings.TrimSpace(input.OrderRef)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}

	var (
		target        enums.OrderStatus
		paymentTarget enums.PaymentStatus
		err           error
	)
	if present(input.Status) {
		if target, err = enums.ParseOrderStatus(strings.TrimSpace(*input.Status)); err != nil {
			return nil, invalidStatus(err, "status")
		}
	}
	if present(input.PaymentStatus) {
		if paymentTarget, err = enums.ParsePaymentStatus(strings.TrimSpace(*input.PaymentStatus)); err != nil {
			return nil, invalidStatus(err, "paymentStatus")
		}
	}
	metadata := map[string]any{}
	setOptional(metadata, "tracking_number", input.TrackingNumber)
	setOptional(metadata, "tracking_url", input.TrackingURL)
	setOptional(metadata, "notes", input.Notes)
	if target == "" && paymentTarget == "" && len(metadata) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no updatable fields provided")
	}

	var (
		orderID      uuid.UUID
		itemsChanged int
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrderByRef(ctx, ref)
		if err != nil {
			return loadError(err, "order")
		}
		orderID = order.ID

		if target != "" {
			items, err := repo.LockItems(ctx, order.ID)
			if err != nil {
				return dbpkg.MapError(err, "lock order items")
			}
			if itemsChanged, err = s.fanOut(ctx, tx, repo, order, items, target, input.Actor); err != nil {
				return err
			}
		}
		if paymentTarget != "" {
			if err := s.changePaymentStatus(ctx, tx, repo, order, paymentTarget, "", input.Actor); err != nil {
				return err
			}
		}
		if len(metadata) > 0 {
			if err := repo.UpdateOrder(ctx, order.ID, metadata); err != nil {
				return dbpkg.MapError(err, "update order details")
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("update_order", dbpkg.MapError(err, "update order"))
	}

	detail, err := s.loadDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	message := "Order updated"
	if target != "" {
		message = fmt.Sprintf("Order status set to %s; %d item(s) updated", target, itemsChanged)
	}
	return &UpdateResult{Order: detail, Message: message}, nil
}

func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) (*OrderDetail, error) {
	ref := strings.TrimSpace(input.OrderRef)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}
	source := input.Source
	if source == "" {
		source = SourceAdmin
	}

	var orderID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrderByRef(ctx, ref)
		if err != nil {
			return loadError(err, "order")
		}
		orderID = order.ID
		_, err = s.cancelLocked(ctx, tx, repo, order, strings.TrimSpace(input.Reason), source, input.Actor)
		return err
	})
	if err != nil {
		return nil, s.fail("cancel_order", dbpkg.MapError(err, "cancel order"))
	}
	return s.loadDetail(ctx, orderID)
}

// ApplyPaymentResult records a gateway outcome. VALID marks the payment paid
// and promotes a PENDING order to PAID; FAILED and CANCELLED record the
// payment status and cancel the order while it is still cancellable.
func (s *service) ApplyPaymentResult(ctx context.Context, input PaymentResultInput) (*OrderDetail, error) {
	tranID := strings.TrimSpace(input.TranID)
	if tranID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tranId is required")
	}
	outcome, err := enums.ParseGatewayPaymentStatus(strings.ToUpper(strings.TrimSpace(input.Status)))
	if err != nil {
		return nil, invalidStatus(err, "status")
	}
	reason := strings.TrimSpace(input.Reason)

	var orderID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrderByTranID(ctx, tranID)
		if err != nil {
			return loadError(err, "order")
		}
		orderID = order.ID

		if err := s.changePaymentStatus(ctx, tx, repo, order, outcome.PaymentStatus(), reason, Actor{}); err != nil {
			return err
		}
		if outcome == enums.GatewayPaymentValid {
			if order.Status != enums.OrderStatusPending {
				return nil
			}
			return s.changeOrderStatus(ctx, tx, repo, order, enums.OrderStatusPaid, SourcePayment, Actor{}, nil)
		}
		if !order.Status.IsCancellable() {
			return nil
		}
		if reason == "" {
			reason = "payment " + strings.ToLower(string(outcome))
		}
		_, err = s.cancelLocked(ctx, tx, repo, order, reason, SourcePayment, Actor{})
		return err
	})
	if err != nil {
		return nil, s.fail("apply_payment", dbpkg.MapError(err, "apply payment result"))
	}
	return s.loadDetail(ctx, orderID)
}

// ExpirePendingOrders cancels unpaid PENDING orders created before cutoff.
// Orders that were paid or moved on between listing and locking are skipped.
func (s *service) ExpirePendingOrders(ctx context.Context, cutoff time.Time, limit int) (*ExpiryResult, error) {
	candidates, err := s.repo.ListExpiredPending(ctx, cutoff, limit)
	if err != nil {
		return nil, dbpkg.MapError(err, "list expired orders")
	}
	result := &ExpiryResult{Scanned: len(candidates)}

	var errs error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		cancelled, err := s.expireOne(ctx, candidate.ID, cutoff)
		switch {
		case err == nil && cancelled:
			result.Cancelled++
		case err == nil, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
			result.Skipped++
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", candidate.OrderNumber, err))
		}
	}
	return result, errs
}

func (s *service) expireOne(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (bool, error) {
	var cancelled bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrderByRef(ctx, orderID.String())
		if err != nil {
			return loadError(err, "order")
		}
		if order.Status != enums.OrderStatusPending ||
			order.PaymentStatus != enums.PaymentStatusPending ||
			!order.CreatedAt.Before(cutoff) {
			return nil
		}
		cancelled, err = s.cancelLocked(ctx, tx, repo, order, expiredReason, SourceExpiry, Actor{})
		return err
	})
	if err != nil {
		return false, s.fail("expire_order", dbpkg.MapError(err, "expire order"))
	}
	return cancelled, nil
}

// transitionLocked applies one item transition plus its side effect. A repeat
// of the current status is a no-op.
func (s *service) transitionLocked(ctx context.Context, tx *gorm.DB, repo Repository, item *models.OrderItem, target enums.OrderItemStatus, actor Actor) (bool, error) {
	if item.Status == target {
		return false, nil
	}
	if item.Status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "order item is already in a terminal status").
			WithDetails(map[string]any{"item_id": item.ID, "status": item.Status, "requested": target})
	}
	if err := s.writeItemStatus(ctx, tx, repo, item, target, actor); err != nil {
		return false, err
	}
	if err := s.applyItemEffects(ctx, tx, item, actor); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) writeItemStatus(ctx context.Context, tx *gorm.DB, repo Repository, item *models.OrderItem, target enums.OrderItemStatus, actor Actor) error {
	from := item.Status
	ok, err := repo.UpdateItemStatus(ctx, item.ID, from, target)
	if err != nil {
		return dbpkg.MapError(err, "update order item status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "order item changed concurrently")
	}
	item.Status = target

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderItemStatusChanged,
		AggregateType: enums.AggregateOrderItem,
		AggregateID:   item.ID,
		Actor:         actor.ref(),
		Data: payloads.OrderItemStatusChangedEvent{
			OrderID:     item.OrderID,
			OrderItemID: item.ID,
			VendorID:    item.VendorID,
			From:        from,
			To:          target,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit item status event")
	}
	s.metrics.IncTransition("item", string(target))
	return nil
}

// applyItemEffects runs the ledger side effect for the item's new status.
// Both ledgers are once-only per item, so a retried call is harmless.
func (s *service) applyItemEffects(ctx context.Context, tx *gorm.DB, item *models.OrderItem, actor Actor) error {
	switch item.Status {
	case enums.OrderItemStatusDelivered:
		res, err := s.vendors.CreditDelivery(ctx, tx, item)
		if err != nil {
			return err
		}
		if res.Credited {
			s.metrics.ObserveCredit(res.AmountCents)
		}
	case enums.OrderItemStatusCancelled:
		res, err := s.stock.Restore(ctx, tx, item)
		if err != nil {
			return err
		}
		if !res.Restored {
			return nil
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockRestored,
			AggregateType: enums.AggregateOrderItem,
			AggregateID:   item.ID,
			Actor:         actor.ref(),
			Data: payloads.StockRestoredEvent{
				ProductID:   res.ProductID,
				OrderID:     item.OrderID,
				OrderItemID: item.ID,
				Quantity:    res.Quantity,
				StockAfter:  res.StockAfter,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock restored event")
		}
		s.metrics.ObserveRestock(res.Quantity)
	}
	return nil
}

func (s *service) reaggregate(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, items []models.OrderItem, actor Actor) error {
	statuses := make([]enums.OrderItemStatus, 0, len(items))
	for _, it := range items {
		statuses = append(statuses, it.Status)
	}
	next := Aggregate(order.Status, statuses)
	if next == order.Status {
		return nil
	}
	return s.changeOrderStatus(ctx, tx, repo, order, next, sourceAggregation, actor, nil)
}

// fanOut sets the order status directly and moves every non-terminal item to
// the translated status. Status writes happen first; side effects follow in
// product or vendor order.
func (s *service) fanOut(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, items []models.OrderItem, target enums.OrderStatus, actor Actor) (int, error) {
	itemTarget, ok := FanOutItemStatus(target)
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unsupported order status").
			WithDetails(map[string]any{"field": "status", "value": target})
	}

	changed := make([]*models.OrderItem, 0, len(items))
	for i := range items {
		item := &items[i]
		if item.Status == itemTarget || item.Status.IsTerminal() {
			continue
		}
		if err := s.writeItemStatus(ctx, tx, repo, item, itemTarget, actor); err != nil {
			return 0, err
		}
		changed = append(changed, item)
	}
	sortForSideEffects(changed, itemTarget)
	for _, item := range changed {
		if err := s.applyItemEffects(ctx, tx, item, actor); err != nil {
			return 0, err
		}
	}

	if order.Status != target {
		if err := s.changeOrderStatus(ctx, tx, repo, order, target, SourceAdmin, actor, nil); err != nil {
			return 0, err
		}
	}
	return len(changed), nil
}

// cancelLocked cancels a locked order. It returns false when the order was
// already cancelled.
func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, reason, source string, actor Actor) (bool, error) {
	if order.Status == enums.OrderStatusCancelled {
		return false, nil
	}
	if !order.Status.IsCancellable() {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled in its current status").
			WithDetails(map[string]any{"status": order.Status, "cancellable": []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusPaid}})
	}

	items, err := repo.LockItems(ctx, order.ID)
	if err != nil {
		return false, dbpkg.MapError(err, "lock order items")
	}
	cancelled := make([]*models.OrderItem, 0, len(items))
	for i := range items {
		item := &items[i]
		if item.Status.IsTerminal() {
			continue
		}
		if err := s.writeItemStatus(ctx, tx, repo, item, enums.OrderItemStatusCancelled, actor); err != nil {
			return false, err
		}
		cancelled = append(cancelled, item)
	}
	sortForSideEffects(cancelled, enums.OrderItemStatusCancelled)
	for _, item := range cancelled {
		if err := s.applyItemEffects(ctx, tx, item, actor); err != nil {
			return false, err
		}
	}

	var extra map[string]any
	if reason != "" {
		extra = map[string]any{"cancel_reason": reason}
	}
	if err := s.changeOrderStatus(ctx, tx, repo, order, enums.OrderStatusCancelled, source, actor, extra); err != nil {
		return false, err
	}
	if reason != "" {
		order.CancelReason = &reason
	}

	canceledAt := s.now()
	if order.CanceledAt != nil {
		canceledAt = *order.CanceledAt
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCanceled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.ref(),
		Data: payloads.OrderCanceledEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Reason:      reason,
			CanceledAt:  canceledAt,
		},
	}); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order canceled event")
	}
	s.metrics.IncCancellation(source)
	return true, nil
}

// changeOrderStatus writes the order status with its timestamps plus any extra
// columns, then emits order_status_changed.
func (s *service) changeOrderStatus(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, next enums.OrderStatus, source string, actor Actor, extra map[string]any) error {
	from := order.Status
	updates := map[string]any{"status": next}
	for k, v := range extra {
		updates[k] = v
	}
	now := s.now()
	switch next {
	case enums.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			updates["delivered_at"] = now
			order.DeliveredAt = &now
		}
	case enums.OrderStatusCancelled:
		if order.CanceledAt == nil {
			updates["canceled_at"] = now
			order.CanceledAt = &now
		}
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return dbpkg.MapError(err, "update order status")
	}
	order.Status = next

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.ref(),
		Data: payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			From:        from,
			To:          next,
			Source:      source,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
	}
	s.metrics.IncTransition("order", string(next))
	return nil
}

func (s *service) changePaymentStatus(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, next enums.PaymentStatus, reason string, actor Actor) error {
	from := order.PaymentStatus
	if from == next {
		return nil
	}
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"payment_status": next}); err != nil {
		return dbpkg.MapError(err, "update payment status")
	}
	order.PaymentStatus = next

	var tranID string
	if order.TranID != nil {
		tranID = *order.TranID
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.ref(),
		Data: payloads.PaymentStatusChangedEvent{
			OrderID: order.ID,
			TranID:  tranID,
			From:    from,
			To:      next,
			Reason:  reason,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment status event")
	}
	return nil
}

func (s *service) loadDetail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.repo.LoadOrderDetail(ctx, orderID)
	if err != nil {
		return nil, loadError(err, "order")
	}
	return newOrderDetail(order), nil
}

func (s *service) fail(operation string, err error) error {
	s.metrics.IncFailure(operation, string(pkgerrors.CodeOf(err)))
	return err
}

// sortForSideEffects orders items by the row the side effect will lock:
// vendor for credits, product for restocks.
func sortForSideEffects(items []*models.OrderItem, target enums.OrderItemStatus) {
	key := func(it *models.OrderItem) string {
		if target == enums.OrderItemStatusDelivered && it.VendorID != nil {
			return it.VendorID.String()
		}
		return it.ProductID.String()
	}
	slices.SortStableFunc(items, func(a, b *models.OrderItem) int {
		return strings.Compare(key(a), key(b))
	})
}

func loadError(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, entity+" not found")
	}
	return dbpkg.MapError(err, "load "+entity)
}

func invalidStatus(err error, field string) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).
		WithDetails(map[string]any{"field": field})
}

func present(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}

// setOptional copies a provided field into updates; a blank value clears it.
func setOptional(updates map[string]any, column string, value *string) {
	if value == nil {
		return
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		updates[column] = nil
		return
	}
	updates[column] = trimmed
}
