package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	delError    error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "ty:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return f.delError
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewManager(&fakeStore{}, -time.Second); err == nil {
		t.Fatal("expected error for negative ttl")
	}
	if _, err := NewManager(&fakeStore{}, 0); err != nil {
		t.Fatalf("zero ttl must be allowed: %v", err)
	}
}

func TestCheckAndMarkProcessedFirstDelivery(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	eventID := uuid.New()
	already, err := manager.CheckAndMarkProcessed(context.Background(), "notification-worker", eventID)
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if already {
		t.Fatal("first delivery must not report already processed")
	}

	wantKey := "ty:idempotency:evt:processed:notification-worker:" + eventID.String()
	if store.lastKey != wantKey {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestCheckAndMarkProcessedDuplicate(t *testing.T) {
	manager, err := NewManager(&fakeStore{setNXResult: false}, 12*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMarkProcessed(context.Background(), "notification-worker", uuid.New())
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if !already {
		t.Fatal("held reservation must report already processed")
	}
}

func TestCheckAndMarkProcessedStoreError(t *testing.T) {
	manager, err := NewManager(&fakeStore{setNXError: errors.New("connection refused")}, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := manager.CheckAndMarkProcessed(context.Background(), "notification-worker", uuid.New()); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestCheckAndMarkProcessedRejectsBadArgs(t *testing.T) {
	manager, err := NewManager(&fakeStore{setNXResult: true}, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := manager.CheckAndMarkProcessed(context.Background(), "", uuid.New()); err == nil {
		t.Fatal("expected error for empty consumer")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "notification-worker", uuid.Nil); err == nil {
		t.Fatal("expected error for nil event id")
	}
}

func TestDeleteReleasesReservation(t *testing.T) {
	store := &fakeStore{}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	eventID := uuid.New()
	if err := manager.Delete(context.Background(), "notification-worker", eventID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := "ty:idempotency:evt:processed:notification-worker:" + eventID.String()
	if store.lastDeleted != want {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
}

func TestDeleteStoreError(t *testing.T) {
	manager, err := NewManager(&fakeStore{delError: errors.New("connection refused")}, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := manager.Delete(context.Background(), "notification-worker", uuid.New()); err == nil {
		t.Fatal("expected store error to propagate")
	}
}
