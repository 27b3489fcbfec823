package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/api/responses"
	"github.com/toolyard/toolyard-backend/api/validators"
	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/logger"
	"github.com/toolyard/toolyard-backend/pkg/outbox"
)

// OutboxDLQStore reads the outbox dead-letter queue.
type OutboxDLQStore interface {
	List(ctx context.Context, params outbox.DLQListParams) ([]models.OutboxDLQ, error)
	FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

type dlqListResponse struct {
	Items []models.OutboxDLQ `json:"items"`
	Count int                `json:"count"`
}

// AdminListOutboxDLQ lists events the publisher gave up on, newest first.
// Operators check this after a delivery incident to decide what to replay.
func AdminListOutboxDLQ(store OutboxDLQStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store unavailable"))
			return
		}

		params := outbox.DLQListParams{}
		var err error
		if params.Limit, err = validators.ParseQueryInt(r, "limit", 0, 1, 200); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("event_type")); raw != "" {
			eventType, err := enums.ParseOutboxEventType(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event_type filter"))
				return
			}
			params.EventType = &eventType
		}

		items, err := store.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters"))
			return
		}
		responses.WriteSuccess(w, dlqListResponse{Items: items, Count: len(items)})
	}
}

// AdminOutboxDLQDetail returns the dead letter for one source event, original
// payload included.
func AdminOutboxDLQDetail(store OutboxDLQStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store unavailable"))
			return
		}

		eventID, err := uuid.Parse(chi.URLParam(r, "eventId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id"))
			return
		}

		entry, err := store.FindByEventID(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dead letter"))
			return
		}
		if entry == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found"))
			return
		}
		responses.WriteSuccess(w, entry)
	}
}
