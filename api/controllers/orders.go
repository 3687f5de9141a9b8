package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/hydromart/marketplace-backend/api/responses"
	"github.com/hydromart/marketplace-backend/api/validators"
	internalorders "github.com/hydromart/marketplace-backend/internal/orders"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
	"github.com/hydromart/marketplace-backend/pkg/logger"
)

const maxOrderNotesLen = 2000

type orderPlacer interface {
	PlaceOrder(ctx context.Context, input internalorders.PlaceOrderInput) (*internalorders.OrderDetail, error)
}

type placeOrderItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type placeOrderRequest struct {
	Items         []placeOrderItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	PromoCode     string                  `json:"promoCode" validate:"max=64"`
	ShippingCents int                     `json:"shippingCents" validate:"gte=0"`
	VATCents      int                     `json:"vatCents" validate:"gte=0"`
	Notes         string                  `json:"notes"`
}

// PlaceOrder creates a PENDING order for the authenticated user.
func PlaceOrder(svc orderPlacer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order placement unavailable"))
			return
		}
		actor := actorFromContext(r.Context())
		if actor.UserID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id missing from token"))
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]internalorders.PlaceItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, internalorders.PlaceItemInput{
				ProductID: uuid.MustParse(item.ProductID),
				Quantity:  item.Quantity,
			})
		}

		detail, err := svc.PlaceOrder(r.Context(), internalorders.PlaceOrderInput{
			UserID:        actor.UserID,
			Items:         items,
			PromoCode:     req.PromoCode,
			ShippingCents: req.ShippingCents,
			VATCents:      req.VATCents,
			Notes:         validators.SanitizeString(req.Notes, maxOrderNotesLen),
			Actor:         actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			ctx := logg.WithOrderID(r.Context(), detail.OrderNumber)
			logg.Info(ctx, "order placed")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}
