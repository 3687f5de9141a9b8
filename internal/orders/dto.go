package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hydromart/marketplace-backend/pkg/db/models"
	"github.com/hydromart/marketplace-backend/pkg/enums"
)

// Money carries integer cents plus a two-decimal display amount.
type Money struct {
	Cents  int    `json:"cents"`
	Amount string `json:"amount"`
}

func moneyFromCents(cents int) Money {
	return Money{
		Cents:  cents,
		Amount: decimal.NewFromInt(int64(cents)).Shift(-2).StringFixed(2),
	}
}

// ProductSummary is the product slice of an item projection.
type ProductSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Stock int       `json:"stock"`
}

// VendorSummary is the vendor slice of an item projection.
type VendorSummary struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Balance Money     `json:"balance"`
}

// PromoSummary describes the promo code attached to an order.
type PromoSummary struct {
	ID       uuid.UUID `json:"id"`
	Code     string    `json:"code"`
	Discount Money     `json:"discount"`
}

// ItemDetail is the admin projection of one order item.
type ItemDetail struct {
	ID               uuid.UUID             `json:"id"`
	OrderID          uuid.UUID             `json:"order_id"`
	Status           enums.OrderItemStatus `json:"status"`
	Quantity         int                   `json:"quantity"`
	UnitPrice        Money                 `json:"unit_price"`
	LineTotal        Money                 `json:"line_total"`
	VendorAmount     Money                 `json:"vendor_amount"`
	VendorCreditedAt *time.Time            `json:"vendor_credited_at,omitempty"`
	StockRestoredAt  *time.Time            `json:"stock_restored_at,omitempty"`
	Product          *ProductSummary       `json:"product,omitempty"`
	Vendor           *VendorSummary        `json:"vendor,omitempty"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// OrderDetail is the admin projection returned by GET and mutating routes.
type OrderDetail struct {
	ID             uuid.UUID           `json:"id"`
	OrderNumber    string              `json:"order_number"`
	UserID         uuid.UUID           `json:"user_id"`
	Status         enums.OrderStatus   `json:"status"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
	Subtotal       Money               `json:"subtotal"`
	Discount       Money               `json:"discount"`
	Shipping       Money               `json:"shipping"`
	VAT            Money               `json:"vat"`
	Total          Money               `json:"total"`
	TrackingNumber *string             `json:"tracking_number,omitempty"`
	TrackingURL    *string             `json:"tracking_url,omitempty"`
	Notes          *string             `json:"notes,omitempty"`
	TranID         *string             `json:"tran_id,omitempty"`
	CancelReason   *string             `json:"cancel_reason,omitempty"`
	CanceledAt     *time.Time          `json:"canceled_at,omitempty"`
	DeliveredAt    *time.Time          `json:"delivered_at,omitempty"`
	Promo          *PromoSummary       `json:"promo,omitempty"`
	Items          []ItemDetail        `json:"items"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func newOrderDetail(order *models.Order) *OrderDetail {
	detail := &OrderDetail{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		Subtotal:       moneyFromCents(order.SubtotalCents),
		Discount:       moneyFromCents(order.DiscountCents),
		Shipping:       moneyFromCents(order.ShippingCents),
		VAT:            moneyFromCents(order.VATCents),
		Total:          moneyFromCents(order.ComputeTotal()),
		TrackingNumber: order.TrackingNumber,
		TrackingURL:    order.TrackingURL,
		Notes:          order.Notes,
		TranID:         order.TranID,
		CancelReason:   order.CancelReason,
		CanceledAt:     order.CanceledAt,
		DeliveredAt:    order.DeliveredAt,
		Items:          make([]ItemDetail, 0, len(order.Items)),
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
	if order.PromoCode != nil {
		detail.Promo = &PromoSummary{
			ID:       order.PromoCode.ID,
			Code:     order.PromoCode.Code,
			Discount: moneyFromCents(order.DiscountCents),
		}
	}
	for i := range order.Items {
		detail.Items = append(detail.Items, newItemDetail(&order.Items[i]))
	}
	return detail
}

func newItemDetail(item *models.OrderItem) ItemDetail {
	out := ItemDetail{
		ID:               item.ID,
		OrderID:          item.OrderID,
		Status:           item.Status,
		Quantity:         item.Quantity,
		UnitPrice:        moneyFromCents(item.PriceCents),
		LineTotal:        moneyFromCents(item.PriceCents * item.Quantity),
		VendorAmount:     moneyFromCents(item.VendorAmountCents),
		VendorCreditedAt: item.VendorCreditedAt,
		StockRestoredAt:  item.StockRestoredAt,
		UpdatedAt:        item.UpdatedAt,
	}
	if item.Product != nil {
		out.Product = &ProductSummary{ID: item.Product.ID, Name: item.Product.Name, Stock: item.Product.Stock}
	}
	if item.Vendor != nil {
		out.Vendor = &VendorSummary{
			ID:      item.Vendor.ID,
			Name:    item.Vendor.Name,
			Status:  item.Vendor.Status,
			Balance: moneyFromCents(item.Vendor.BalanceCents),
		}
	}
	return out
}

// UpdateResult is returned by UpdateOrder. Item is set only on the
// single-item path.
type UpdateResult struct {
	Order   *OrderDetail `json:"order"`
	Item    *ItemDetail  `json:"item,omitempty"`
	Message string       `json:"message"`
}

// ExpiryResult summarises one expiry sweep.
type ExpiryResult struct {
	Scanned   int `json:"scanned"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
}
