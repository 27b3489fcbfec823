package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/toolyard/toolyard-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	outboxRetentionDays = 30
	outboxMinAttempts   = 5
)

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	Retention   int
	MinAttempts int
}

// NewOutboxRetentionJob builds the sweep that drops published outbox rows
// past the retention window. Unpublished rows stay regardless of age; rows
// that failed fewer times than the relay's retry ceiling also stay, so a
// stalled relay cannot lose events to the sweep.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}

	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	retention := retentionDuration(params.Retention, outboxRetentionDays)
	return &pruneJob{
		name:      "outbox-retention",
		logg:      params.Logger,
		db:        params.DB,
		retention: retention,
		extra: map[string]any{
			"retention":    retention.String(),
			"min_attempts": minAttempts,
		},
		deleteFn: func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return params.Repository.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
		},
		now: time.Now,
	}, nil
}
