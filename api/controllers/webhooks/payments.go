package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/hydromart/marketplace-backend/api/responses"
	"github.com/hydromart/marketplace-backend/internal/orders"
	"github.com/hydromart/marketplace-backend/internal/webhooks/payments"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
	"github.com/hydromart/marketplace-backend/pkg/logger"
)

const maxWebhookBody = 64 << 10

type PaymentWebhookService interface {
	Handle(ctx context.Context, n payments.Notification) (*orders.OrderDetail, error)
}

type paymentWebhookGuard interface {
	CheckAndMark(ctx context.Context, n payments.Notification) (bool, error)
	Delete(ctx context.Context, n payments.Notification) error
}

type paymentWebhookResponse struct {
	Duplicate bool                `json:"duplicate"`
	Order     *orders.OrderDetail `json:"order,omitempty"`
}

// PaymentWebhook applies a signed gateway notification at most once per
// tranId and status.
func PaymentWebhook(svc PaymentWebhookService, guard paymentWebhookGuard, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := payments.VerifySignature([]byte(secret), payload, r.Header.Get(payments.SignatureHeader)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var n payments.Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification body"))
			return
		}
		n = n.Normalize()
		if n.TranID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "tranId is required"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"tran_id": n.TranID, "payment_result": n.Status})
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, n)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			if logg != nil {
				logg.Info(ctx, "payment notification already processed")
			}
			responses.WriteSuccess(w, paymentWebhookResponse{Duplicate: true})
			return
		}

		detail, err := svc.Handle(ctx, n)
		if err != nil {
			if releaseErr := guard.Delete(ctx, n); releaseErr != nil && logg != nil {
				logg.Error(ctx, "release payment notification guard", releaseErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, "payment notification applied")
		}
		responses.WriteSuccess(w, paymentWebhookResponse{Order: detail})
	}
}
