package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/hydromart/marketplace-backend/internal/orders"
	"github.com/hydromart/marketplace-backend/pkg/logger"
	"github.com/hydromart/marketplace-backend/pkg/metrics"
)

const (
	orderExpiryJobName     = "order-expiry"
	defaultPendingTTL      = 72 * time.Hour
	defaultExpiryBatchSize = 100
)

type pendingOrderExpirer interface {
	ExpirePendingOrders(ctx context.Context, cutoff time.Time, limit int) (*orders.ExpiryResult, error)
}

// OrderExpiryJobParams configure the unpaid order expiry job.
type OrderExpiryJobParams struct {
	Logger     *logger.Logger
	Orders     pendingOrderExpirer
	Metrics    *metrics.CronJobMetrics
	PendingTTL time.Duration
	BatchSize  int
}

// NewOrderExpiryJob builds the job that cancels orders still awaiting payment
// after PendingTTL. Cancellation goes through the settlement engine so stock
// comes back exactly once.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &orderExpiryJob{
		logg:    params.Logger,
		orders:  params.Orders,
		metrics: params.Metrics,
		ttl:     ttl,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg    *logger.Logger
	orders  pendingOrderExpirer
	metrics *metrics.CronJobMetrics
	ttl     time.Duration
	batch   int
	now     func() time.Time
}

func (j *orderExpiryJob) Name() string { return orderExpiryJobName }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	res, err := j.orders.ExpirePendingOrders(ctx, cutoff, j.batch)
	if res != nil {
		j.metrics.AddProcessed(orderExpiryJobName, res.Cancelled)
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"cutoff":    cutoff,
			"scanned":   res.Scanned,
			"cancelled": res.Cancelled,
			"skipped":   res.Skipped,
		})
		j.logg.Info(logCtx, "order expiry loop complete")
	}
	if err != nil {
		return fmt.Errorf("expire pending orders: %w", err)
	}
	return nil
}
