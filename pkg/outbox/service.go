package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/toolyard/toolyard-backend/pkg/db"
	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	"github.com/toolyard/toolyard-backend/pkg/logger"
)

// DomainEvent is what producers hand to Emit. Data is marshaled into the
// envelope's data field; a zero Version means PayloadVersion.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

// Service queues domain events in the same transaction as the state change
// they describe. The relay picks them up after commit, so an event can never
// outrun or outlive its row.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit appends one event inside the caller's transaction.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	row, envelope, err := buildEventRow(event)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	s.logQueued(ctx, event, envelope.EventID)
	return nil
}

// EmitIfNotExists appends the event unless an unpublished twin is already
// queued for the same aggregate. Concurrent emitters racing past the check
// land on the partial unique index; that collision counts as success.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	exists, err := s.repo.ExistsTx(tx, event.EventType, event.AggregateType, event.AggregateID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = s.Emit(ctx, tx, event)
	if dbpkg.IsUniqueViolation(err, "ux_outbox_events_event_aggregate") {
		return nil
	}
	return err
}

func buildEventRow(event DomainEvent) (models.OutboxEvent, PayloadEnvelope, error) {
	var zero models.OutboxEvent
	if event.EventType == "" {
		return zero, PayloadEnvelope{}, errors.New("event type required")
	}
	if event.AggregateType == "" {
		return zero, PayloadEnvelope{}, errors.New("aggregate type required")
	}
	if event.AggregateID == uuid.Nil {
		return zero, PayloadEnvelope{}, errors.New("aggregate id required")
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return zero, PayloadEnvelope{}, err
	}

	version := event.Version
	if version == 0 {
		version = PayloadVersion
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	envelope := PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return zero, PayloadEnvelope{}, err
	}

	return models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}, envelope, nil
}

func (s *Service) logQueued(ctx context.Context, event DomainEvent, eventID string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event_id":       eventID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
	}), "outbox event queued")
}
