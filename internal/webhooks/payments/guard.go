package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hydromart/marketplace-backend/pkg/redis"
)

const dedupeScope = "webhook:payments"

// Guard remembers delivered notifications so gateway retries are answered
// without re-running settlement. Keys follow
// `hm:idempotency:webhook:payments:<tran_id>:<status>`.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// CheckAndMark returns true when the notification was seen before and
// otherwise marks it.
func (g *Guard) CheckAndMark(ctx context.Context, n Notification) (bool, error) {
	key, err := g.key(n)
	if err != nil {
		return false, err
	}
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases the mark so a failed delivery can be retried.
func (g *Guard) Delete(ctx context.Context, n Notification) error {
	key, err := g.key(n)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(n Notification) (string, error) {
	if n.TranID == "" {
		return "", errors.New("tran id is required")
	}
	if n.Status == "" {
		return "", errors.New("status is required")
	}
	return g.store.IdempotencyKey(dedupeScope, n.TranID+":"+n.Status), nil
}
