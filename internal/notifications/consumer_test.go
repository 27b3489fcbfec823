package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	"github.com/toolyard/toolyard-backend/pkg/logger"
	"github.com/toolyard/toolyard-backend/pkg/outbox"
	"github.com/toolyard/toolyard-backend/pkg/outbox/payloads"
)

type fakeConsumerRepo struct {
	rows [][]*models.Notification
	err  error
}

func (f *fakeConsumerRepo) CreateMany(ctx context.Context, notifications []*models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, notifications)
	return nil
}

func (f *fakeConsumerRepo) all() []*models.Notification {
	var out []*models.Notification
	for _, batch := range f.rows {
		out = append(out, batch...)
	}
	return out
}

type fakeToolCatalog struct {
	tool *models.Tool
	err  error
}

func (f *fakeToolCatalog) FindByID(ctx context.Context, id uuid.UUID) (*models.Tool, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.tool == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.tool, nil
}

type fakeIdempotency struct {
	already  bool
	checkErr error
	deleted  int
}

func (f *fakeIdempotency) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.already, nil
}

func (f *fakeIdempotency) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	f.deleted++
	return nil
}

type consumerFixture struct {
	consumer *Consumer
	repo     *fakeConsumerRepo
	tools    *fakeToolCatalog
	idem     *fakeIdempotency
}

func newConsumerFixture(t *testing.T) *consumerFixture {
	t.Helper()
	repo := &fakeConsumerRepo{}
	tools := &fakeToolCatalog{tool: &models.Tool{ID: uuid.New(), Name: "Diff Visualizer"}}
	idem := &fakeIdempotency{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	consumer, err := NewConsumer(repo, tools, idem, logg)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return &consumerFixture{consumer: consumer, repo: repo, tools: tools, idem: idem}
}

func buildEnvelope(t *testing.T, payload any) outbox.PayloadEnvelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func TestConsumerToolPurchasedNotifiesBothParties(t *testing.T) {
	f := newConsumerFixture(t)
	buyerID := uuid.New()
	creatorID := uuid.New()

	envelope := buildEnvelope(t, payloads.ToolPurchasedEvent{
		PurchaseID:           uuid.New(),
		ToolID:               f.tools.tool.ID,
		BuyerID:              buyerID,
		CreatorID:            creatorID,
		AmountCents:          1000,
		PlatformFeeCents:     300,
		CreatorEarningsCents: 700,
		Currency:             "usd",
		ChargeID:             "pi_1",
	})

	if err := f.consumer.Process(context.Background(), enums.EventToolPurchased, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}

	rows := f.repo.all()
	if len(rows) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(rows))
	}
	if len(f.repo.rows) != 1 {
		t.Fatalf("expected a single batch insert, got %d", len(f.repo.rows))
	}

	buyer := rows[0]
	if buyer.UserID != buyerID || buyer.Type != enums.NotificationTypePurchaseReceipt {
		t.Fatalf("unexpected buyer notification %+v", buyer)
	}
	if !strings.Contains(buyer.Message, "Diff Visualizer") || !strings.Contains(buyer.Message, "$10.00") {
		t.Fatalf("buyer message missing tool or amount: %q", buyer.Message)
	}

	creator := rows[1]
	if creator.UserID != creatorID || creator.Type != enums.NotificationTypeToolSold {
		t.Fatalf("unexpected creator notification %+v", creator)
	}
	if !strings.Contains(creator.Message, "$7.00") {
		t.Fatalf("creator message missing share: %q", creator.Message)
	}
}

func TestConsumerAlreadyProcessedEventIsSkipped(t *testing.T) {
	f := newConsumerFixture(t)
	f.idem.already = true

	envelope := buildEnvelope(t, payloads.PayoutCompletedEvent{UserID: uuid.New(), AmountCents: 5000})
	if err := f.consumer.Process(context.Background(), enums.EventPayoutCompleted, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.repo.all()) != 0 {
		t.Fatalf("expected no notifications for duplicate event")
	}
}

func TestConsumerUnmappedEventIsAcked(t *testing.T) {
	f := newConsumerFixture(t)

	envelope := buildEnvelope(t, payloads.SubscriptionRenewedEvent{UserID: uuid.New(), AmountCents: 2900})
	if err := f.consumer.Process(context.Background(), enums.EventSubscriptionRenewed, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.repo.all()) != 0 {
		t.Fatalf("expected no notifications for renewal event")
	}
	if f.idem.deleted != 0 {
		t.Fatalf("skip should not release the idempotency key")
	}
}

func TestConsumerRepoFailureReleasesIdempotencyKey(t *testing.T) {
	f := newConsumerFixture(t)
	f.repo.err = errors.New("db down")

	envelope := buildEnvelope(t, payloads.PayoutCompletedEvent{
		PayoutID:    uuid.New(),
		UserID:      uuid.New(),
		AmountCents: 5000,
		TransferID:  "tr_1",
		CompletedAt: time.Now().UTC(),
	})
	err := f.consumer.Process(context.Background(), enums.EventPayoutCompleted, envelope)
	if err == nil {
		t.Fatalf("expected processing error")
	}
	if f.idem.deleted != 1 {
		t.Fatalf("expected idempotency key release for retry, deletes=%d", f.idem.deleted)
	}
}

func TestConsumerPayoutFailedIncludesReason(t *testing.T) {
	f := newConsumerFixture(t)
	userID := uuid.New()

	envelope := buildEnvelope(t, payloads.PayoutFailedEvent{
		PayoutID:    uuid.New(),
		UserID:      userID,
		AmountCents: 12550,
		Reason:      "account capability revoked",
	})
	if err := f.consumer.Process(context.Background(), enums.EventPayoutFailed, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}

	rows := f.repo.all()
	if len(rows) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(rows))
	}
	row := rows[0]
	if row.Type != enums.NotificationTypePayoutFailed {
		t.Fatalf("unexpected type %s", row.Type)
	}
	if !strings.Contains(row.Message, "$125.50") || !strings.Contains(row.Message, "account capability revoked") {
		t.Fatalf("message missing amount or reason: %q", row.Message)
	}
	if !strings.Contains(row.Message, "balance was not debited") {
		t.Fatalf("message should reassure about balance: %q", row.Message)
	}
}

func TestConsumerTrialEndingFormatsDate(t *testing.T) {
	f := newConsumerFixture(t)
	trialEnd := time.Date(2026, time.September, 14, 12, 0, 0, 0, time.UTC)

	envelope := buildEnvelope(t, payloads.TrialEndingEvent{
		SubscriptionID: uuid.New(),
		UserID:         uuid.New(),
		TrialEnd:       &trialEnd,
	})
	if err := f.consumer.Process(context.Background(), enums.EventTrialEnding, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}

	rows := f.repo.all()
	if len(rows) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(rows))
	}
	if !strings.Contains(rows[0].Message, "September 14, 2026") {
		t.Fatalf("expected formatted trial end date, got %q", rows[0].Message)
	}
	if rows[0].Type != enums.NotificationTypeTrialEnding {
		t.Fatalf("unexpected type %s", rows[0].Type)
	}
}

func TestConsumerMissingToolFallsBackToGenericCopy(t *testing.T) {
	f := newConsumerFixture(t)
	f.tools.tool = nil

	envelope := buildEnvelope(t, payloads.PurchaseExpiredEvent{
		PurchaseID: uuid.New(),
		ToolID:     uuid.New(),
		BuyerID:    uuid.New(),
		ExpiredAt:  time.Now().UTC(),
	})
	if err := f.consumer.Process(context.Background(), enums.EventPurchaseExpired, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}

	rows := f.repo.all()
	if len(rows) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(rows))
	}
	if !strings.Contains(rows[0].Message, "one of your tools") {
		t.Fatalf("expected generic wording, got %q", rows[0].Message)
	}
}

func TestConsumerToolLookupFailureIsRetried(t *testing.T) {
	f := newConsumerFixture(t)
	f.tools.err = errors.New("connection reset")

	envelope := buildEnvelope(t, payloads.ToolPurchasedEvent{
		ToolID:    uuid.New(),
		BuyerID:   uuid.New(),
		CreatorID: uuid.New(),
	})
	err := f.consumer.Process(context.Background(), enums.EventToolPurchased, envelope)
	if err == nil {
		t.Fatalf("expected error so the message is redelivered")
	}
	if f.idem.deleted != 1 {
		t.Fatalf("expected idempotency key release, deletes=%d", f.idem.deleted)
	}
	if len(f.repo.all()) != 0 {
		t.Fatalf("expected no partial writes")
	}
}

func TestConsumerRejectsBadEventID(t *testing.T) {
	f := newConsumerFixture(t)
	envelope := buildEnvelope(t, payloads.PayoutCompletedEvent{UserID: uuid.New()})
	envelope.EventID = "not-a-uuid"

	if err := f.consumer.Process(context.Background(), enums.EventPayoutCompleted, envelope); err == nil {
		t.Fatalf("expected error for malformed event id")
	}
}
