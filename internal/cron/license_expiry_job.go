package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	"github.com/toolyard/toolyard-backend/pkg/logger"
	"github.com/toolyard/toolyard-backend/pkg/outbox"
	"github.com/toolyard/toolyard-backend/pkg/outbox/payloads"
)

const (
	defaultExpiryLookback = 7 * 24 * time.Hour
	defaultExpiryLimit    = 500
)

// LicenseExpiryJobParams configures the timed-license sweep.
type LicenseExpiryJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Purchases  expiredPurchaseSource
	Outbox     outboxEmitter
	OutboxRepo outboxExistenceChecker
	Lookback   time.Duration
	Limit      int
	Now        func() time.Time
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type expiredPurchaseSource interface {
	ListExpiredBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Purchase, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type outboxExistenceChecker interface {
	Exists(ctx context.Context, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error)
}

// NewLicenseExpiryJob builds the sweep that notices timed licenses whose
// expiry passed and queues a purchase_expired event for each, exactly once.
func NewLicenseExpiryJob(params LicenseExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Purchases == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.OutboxRepo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultExpiryLookback
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultExpiryLimit
	}
	return &licenseExpiryJob{
		logg:       params.Logger,
		db:         params.DB,
		purchases:  params.Purchases,
		outbox:     params.Outbox,
		outboxRepo: params.OutboxRepo,
		lookback:   lookback,
		limit:      limit,
		now:        now,
	}, nil
}

type licenseExpiryJob struct {
	logg       *logger.Logger
	db         txRunner
	purchases  expiredPurchaseSource
	outbox     outboxEmitter
	outboxRepo outboxExistenceChecker
	lookback   time.Duration
	limit      int
	now        func() time.Time
}

func (j *licenseExpiryJob) Name() string { return "license-expiry" }

// Run scans the lookback window rather than just the last cycle so a missed
// day still gets swept. The outbox existence check keeps the overlap from
// producing a second event for a purchase that was already handled; the
// dedupe index only covers unpublished rows, so the check has to look at
// published history too.
func (j *licenseExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	from := now.Add(-j.lookback)
	expired, err := j.purchases.ListExpiredBetween(ctx, from, now, j.limit)
	if err != nil {
		return fmt.Errorf("list expired purchases: %w", err)
	}

	var errs error
	emitted := 0
	skipped := 0
	for i := range expired {
		purchase := &expired[i]
		if purchase.ExpiresAt == nil {
			continue
		}
		exists, err := j.outboxRepo.Exists(ctx, enums.EventPurchaseExpired, enums.AggregatePurchase, purchase.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("check expiry event %s: %w", purchase.ID, err))
			continue
		}
		if exists {
			skipped++
			continue
		}
		if err := j.emitExpiry(ctx, purchase, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("queue expiry event %s: %w", purchase.ID, err))
			continue
		}
		emitted++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(expired),
		"emitted":    emitted,
		"skipped":    skipped,
	})
	j.logg.Info(logCtx, "license expiry sweep complete")
	return errs
}

func (j *licenseExpiryJob) emitExpiry(ctx context.Context, purchase *models.Purchase, now time.Time) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseExpired,
			AggregateType: enums.AggregatePurchase,
			AggregateID:   purchase.ID,
			Data: payloads.PurchaseExpiredEvent{
				PurchaseID: purchase.ID,
				ToolID:     purchase.ToolID,
				BuyerID:    purchase.BuyerID,
				ExpiredAt:  purchase.ExpiresAt.UTC(),
			},
			Version:    1,
			OccurredAt: now,
		})
	})
}
