package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
)

// ProcessedEventRepository is the idempotency journal for inbound gateway
// events. Rows are inserted unprocessed before any handler runs and flipped
// to processed only after the handler's writes commit.
type ProcessedEventRepository interface {
	WithTx(tx *gorm.DB) ProcessedEventRepository
	FindByExternalID(ctx context.Context, externalEventID string) (*models.ProcessedEvent, error)
	InsertUnprocessed(ctx context.Context, event *models.ProcessedEvent) error
	MarkProcessed(ctx context.Context, externalEventID string, at time.Time) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type processedEventRepository struct {
	db *gorm.DB
}

// NewProcessedEventRepository returns a repository bound to the provided database.
func NewProcessedEventRepository(db *gorm.DB) ProcessedEventRepository {
	return &processedEventRepository{db: db}
}

func (r *processedEventRepository) WithTx(tx *gorm.DB) ProcessedEventRepository {
	if tx == nil {
		return r
	}
	return &processedEventRepository{db: tx}
}

// FindByExternalID returns nil without error when the event was never seen.
func (r *processedEventRepository) FindByExternalID(ctx context.Context, externalEventID string) (*models.ProcessedEvent, error) {
	if externalEventID == "" {
		return nil, nil
	}
	var event models.ProcessedEvent
	err := r.db.WithContext(ctx).
		Where("external_event_id = ?", externalEventID).
		First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// InsertUnprocessed records first sight of an event. A concurrent first
// delivery surfaces as a unique violation on external_event_id.
func (r *processedEventRepository) InsertUnprocessed(ctx context.Context, event *models.ProcessedEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Processed = false
	event.ProcessedAt = nil
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *processedEventRepository) MarkProcessed(ctx context.Context, externalEventID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ProcessedEvent{}).
		Where("external_event_id = ?", externalEventID).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": at,
		}).Error
}

// DeleteOlderThan prunes processed rows past the retention window.
func (r *processedEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("processed AND created_at < ?", cutoff).
		Delete(&models.ProcessedEvent{})
	return res.RowsAffected, res.Error
}
