package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hydromart/marketplace-backend/api/responses"
	"github.com/hydromart/marketplace-backend/api/validators"
	internalorders "github.com/hydromart/marketplace-backend/internal/orders"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
	"github.com/hydromart/marketplace-backend/pkg/logger"
)

const maxCancelReasonLen = 500

type adminOrdersService interface {
	GetOrder(ctx context.Context, ref string) (*internalorders.OrderDetail, error)
	UpdateOrder(ctx context.Context, input internalorders.UpdateOrderInput) (*internalorders.UpdateResult, error)
	CancelOrder(ctx context.Context, input internalorders.CancelOrderInput) (*internalorders.OrderDetail, error)
}

type adminOrderPatchRequest struct {
	Status         *string `json:"status" validate:"omitempty,max=32"`
	PaymentStatus  *string `json:"paymentStatus" validate:"omitempty,max=32"`
	TrackingNumber *string `json:"trackingNumber" validate:"omitempty,max=128"`
	TrackingURL    *string `json:"trackingUrl" validate:"omitempty,max=2048"`
	Notes          *string `json:"notes" validate:"omitempty,max=2000"`
	ItemID         *string `json:"itemId" validate:"omitempty,uuid"`
	ItemStatus     *string `json:"itemStatus" validate:"omitempty,max=32"`
}

type adminOrderCancelRequest struct {
	Reason string `json:"reason"`
}

type cancelResponse struct {
	Order   *internalorders.OrderDetail `json:"order"`
	Message string                      `json:"message"`
}

// AdminOrderDetail returns the admin projection of an order by id or number.
func AdminOrderDetail(svc adminOrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		ref, err := orderRefParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetOrder(r.Context(), ref)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// AdminOrderUpdate applies an item transition, an order status fan-out, a
// payment status change or metadata edits.
func AdminOrderUpdate(svc adminOrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		ref, err := orderRefParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req adminOrderPatchRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, ref)
		}
		result, err := svc.UpdateOrder(ctx, internalorders.UpdateOrderInput{
			OrderRef:       ref,
			Status:         req.Status,
			PaymentStatus:  req.PaymentStatus,
			TrackingNumber: req.TrackingNumber,
			TrackingURL:    req.TrackingURL,
			Notes:          req.Notes,
			ItemID:         req.ItemID,
			ItemStatus:     req.ItemStatus,
			Actor:          actorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(ctx, result.Message)
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminOrderCancel cancels a PENDING or PAID order and restocks its items.
func AdminOrderCancel(svc adminOrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		ref, err := orderRefParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req adminOrderCancelRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, ref)
		}
		detail, err := svc.CancelOrder(ctx, internalorders.CancelOrderInput{
			OrderRef: ref,
			Reason:   validators.SanitizeString(req.Reason, maxCancelReasonLen),
			Source:   internalorders.SourceAdmin,
			Actor:    actorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, cancelResponse{Order: detail, Message: "Order cancelled"})
	}
}

func orderRefParam(r *http.Request) (string, error) {
	ref := strings.TrimSpace(chi.URLParam(r, "orderRef"))
	if ref == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}
	return ref, nil
}
