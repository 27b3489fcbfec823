package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	"github.com/toolyard/toolyard-backend/pkg/outbox"
)

type stubDLQStore struct {
	listFn func(ctx context.Context, params outbox.DLQListParams) ([]models.OutboxDLQ, error)
	findFn func(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

func (s *stubDLQStore) List(ctx context.Context, params outbox.DLQListParams) ([]models.OutboxDLQ, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return nil, nil
}

func (s *stubDLQStore) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	if s.findFn != nil {
		return s.findFn(ctx, eventID)
	}
	return nil, nil
}

func deadLetter(eventType enums.OutboxEventType) models.OutboxDLQ {
	msg := "publish timed out"
	return models.OutboxDLQ{
		ID:            uuid.New(),
		EventID:       uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregatePurchase,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
		AttemptCount:  5,
		FailedAt:      time.Now().UTC(),
	}
}

func TestAdminListOutboxDLQReturnsItems(t *testing.T) {
	var captured outbox.DLQListParams
	store := &stubDLQStore{
		listFn: func(ctx context.Context, params outbox.DLQListParams) ([]models.OutboxDLQ, error) {
			captured = params
			return []models.OutboxDLQ{
				deadLetter(enums.EventToolPurchased),
				deadLetter(enums.EventPayoutCompleted),
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dlq", nil)
	resp := httptest.NewRecorder()
	AdminListOutboxDLQ(store, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Limit != 0 || captured.EventType != nil {
		t.Fatalf("expected zero params, got %+v", captured)
	}
	var envelope struct {
		Data dlqListResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Count != 2 || len(envelope.Data.Items) != 2 {
		t.Fatalf("expected 2 dead letters, got %+v", envelope.Data)
	}
}

func TestAdminListOutboxDLQParsesFilters(t *testing.T) {
	var captured outbox.DLQListParams
	store := &stubDLQStore{
		listFn: func(ctx context.Context, params outbox.DLQListParams) ([]models.OutboxDLQ, error) {
			captured = params
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dlq?limit=25&event_type=payment_failed", nil)
	resp := httptest.NewRecorder()
	AdminListOutboxDLQ(store, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if captured.Limit != 25 {
		t.Fatalf("limit not forwarded, got %d", captured.Limit)
	}
	if captured.EventType == nil || *captured.EventType != enums.EventPaymentFailed {
		t.Fatalf("event type filter not forwarded: %v", captured.EventType)
	}
}

func TestAdminListOutboxDLQRejectsUnknownEventType(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dlq?event_type=meteor_strike", nil)
	resp := httptest.NewRecorder()
	AdminListOutboxDLQ(&stubDLQStore{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAdminListOutboxDLQRejectsOutOfRangeLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dlq?limit=0", nil)
	resp := httptest.NewRecorder()
	AdminListOutboxDLQ(&stubDLQStore{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAdminListOutboxDLQStoreFailure(t *testing.T) {
	store := &stubDLQStore{
		listFn: func(ctx context.Context, params outbox.DLQListParams) ([]models.OutboxDLQ, error) {
			return nil, errors.New("connection refused")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dlq", nil)
	resp := httptest.NewRecorder()
	AdminListOutboxDLQ(store, testLogger())(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestAdminOutboxDLQDetailFound(t *testing.T) {
	entry := deadLetter(enums.EventPayoutFailed)
	store := &stubDLQStore{
		findFn: func(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
			if eventID != entry.EventID {
				t.Fatalf("unexpected event id %s", eventID)
			}
			return &entry, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dlq/"+entry.EventID.String(), nil)
	req = addRouteParam(req, "eventId", entry.EventID.String())
	resp := httptest.NewRecorder()
	AdminOutboxDLQDetail(store, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data models.OutboxDLQ `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.EventID != entry.EventID {
		t.Fatalf("wrong dead letter returned: %s", envelope.Data.EventID)
	}
	if string(envelope.Data.Payload) != `{"version":1}` {
		t.Fatalf("payload not preserved: %s", envelope.Data.Payload)
	}
}

func TestAdminOutboxDLQDetailNotFound(t *testing.T) {
	eventID := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dlq/"+eventID, nil)
	req = addRouteParam(req, "eventId", eventID)
	resp := httptest.NewRecorder()
	AdminOutboxDLQDetail(&stubDLQStore{}, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestAdminOutboxDLQDetailInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dlq/not-a-uuid", nil)
	req = addRouteParam(req, "eventId", "not-a-uuid")
	resp := httptest.NewRecorder()
	AdminOutboxDLQDetail(&stubDLQStore{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
