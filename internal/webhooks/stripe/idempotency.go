package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/toolyard/toolyard-backend/pkg/redis"
)

// IdempotencyGuard is the cheap Redis front door in front of the durable
// ProcessedEvent journal. It lets the webhook endpoint answer an obvious
// duplicate delivery without touching Postgres; the journal remains the
// source of truth, so a lost Redis key only costs one extra journal lookup.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewIdempotencyGuard builds a guard whose keys live under the given scope
// for ttl. A zero ttl keeps keys until Redis evicts them.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reserves the event id, reporting true when another delivery
// already holds it.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases the reservation so a failed delivery can be retried. The
// unprocessed journal row keeps the retry correct even if this call fails.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	return g.store.Del(ctx, key)
}
