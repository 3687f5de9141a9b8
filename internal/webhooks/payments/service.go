package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hydromart/marketplace-backend/internal/orders"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
	"github.com/hydromart/marketplace-backend/pkg/logger"
)

// Notification is the normalized gateway callback body.
type Notification struct {
	TranID string `json:"tranId" validate:"required,max=128"`
	Status string `json:"status" validate:"required,oneof=VALID FAILED CANCELLED"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// Normalize trims identifiers and upper-cases the status so dedupe keys are
// stable across gateway retries.
func (n Notification) Normalize() Notification {
	return Notification{
		TranID: strings.TrimSpace(n.TranID),
		Status: strings.ToUpper(strings.TrimSpace(n.Status)),
		Reason: strings.TrimSpace(n.Reason),
	}
}

type settlement interface {
	ApplyPaymentResult(ctx context.Context, input orders.PaymentResultInput) (*orders.OrderDetail, error)
}

// Service applies payment notifications to orders.
type Service struct {
	orders   settlement
	validate *validator.Validate
	logg     *logger.Logger
}

func NewService(ordersSvc settlement, logg *logger.Logger) (*Service, error) {
	if ordersSvc == nil {
		return nil, errors.New("orders service is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{orders: ordersSvc, validate: validator.New(), logg: logg}, nil
}

// Handle validates n and forwards it to the settlement engine.
func (s *Service) Handle(ctx context.Context, n Notification) (*orders.OrderDetail, error) {
	n = n.Normalize()
	if err := s.validate.Struct(n); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment notification")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"tran_id":        n.TranID,
		"gateway_status": n.Status,
	})
	detail, err := s.orders.ApplyPaymentResult(ctx, orders.PaymentResultInput{
		TranID: n.TranID,
		Status: n.Status,
		Reason: n.Reason,
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "payment notification applied")
	return detail, nil
}
