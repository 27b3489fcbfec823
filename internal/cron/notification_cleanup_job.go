package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/toolyard/toolyard-backend/pkg/logger"
	"gorm.io/gorm"
)

const notificationRetentionDays = 30

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  int
}

// NewNotificationCleanupJob builds the sweep that prunes notifications past
// the retention window so the table does not grow without bound.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}

	retention := retentionDuration(params.Retention, notificationRetentionDays)
	return &pruneJob{
		name:      "notification-cleanup",
		logg:      params.Logger,
		db:        params.DB,
		retention: retention,
		extra:     map[string]any{"retention": retention.String()},
		deleteFn:  params.Repository.DeleteOlderThan,
		now:       time.Now,
	}, nil
}
