package cron

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/toolyard/toolyard-backend/pkg/logger"
	"gorm.io/gorm"
)

// pruneJob is the shared shape of the retention sweeps: delete rows older
// than a cutoff inside one transaction and log how many went away.
type pruneJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention time.Duration
	extra     map[string]any
	deleteFn  func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	now       func() time.Time
}

func (j *pruneJob) Name() string { return j.name }

func (j *pruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)

	var pruned int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.deleteFn(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		pruned = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}

	fields := map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": pruned,
	}
	maps.Copy(fields, j.extra)
	j.logg.Info(j.logg.WithFields(ctx, fields), j.name+" complete")
	return nil
}

func retentionDuration(days, fallbackDays int) time.Duration {
	if days <= 0 {
		days = fallbackDays
	}
	return time.Duration(days) * 24 * time.Hour
}
