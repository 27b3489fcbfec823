package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
)

const (
	// Gateway SDK errors can embed whole response bodies; the stored message
	// is clipped so one bad event cannot bloat the table.
	maxDLQErrorLen = 1024

	defaultDLQPageSize = 50
	maxDLQPageSize     = 200
)

// DLQListParams narrows a dead-letter listing. Zero values mean no filter and
// the default page size.
type DLQListParams struct {
	EventType *enums.OutboxEventType
	Limit     int
}

// DLQRepository stores terminal outbox failures. Rows land here when the
// publisher gives up on an event; the admin API reads them back for triage.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx records a dead letter inside the caller's transaction so the DLQ
// row and the terminal mark on the source event commit together.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > maxDLQErrorLen {
		clipped := (*entry.ErrorMessage)[:maxDLQErrorLen]
		entry.ErrorMessage = &clipped
	}
	return tx.Create(&entry).Error
}

// FindByEventID looks up the dead letter for a source event. A nil result
// with a nil error means the event never failed terminally.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &entry, nil
}

// List returns dead letters newest-first.
func (r *DLQRepository) List(ctx context.Context, params DLQListParams) ([]models.OutboxDLQ, error) {
	query := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if params.EventType != nil {
		query = query.Where("event_type = ?", *params.EventType)
	}

	var rows []models.OutboxDLQ
	err := query.
		Order("failed_at DESC").
		Limit(clampDLQLimit(params.Limit)).
		Find(&rows).Error
	return rows, err
}

func clampDLQLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultDLQPageSize
	case limit > maxDLQPageSize:
		return maxDLQPageSize
	default:
		return limit
	}
}
