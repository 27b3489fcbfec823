package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedEvent is the idempotency record for an inbound gateway webhook
// event. A row is inserted with Processed=false on first sight and flipped
// to true only after the event's ledger effects commit; the unique index on
// ExternalEventID makes concurrent first-deliveries collide safely.
type ProcessedEvent struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalEventID string     `gorm:"column:external_event_id;not null;uniqueIndex:ux_processed_events_external_id"`
	EventType       string     `gorm:"column:event_type;not null"`
	Processed       bool       `gorm:"column:processed;not null;default:false"`
	ProcessedAt     *time.Time `gorm:"column:processed_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}
