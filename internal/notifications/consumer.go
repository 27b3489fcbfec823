package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	"github.com/toolyard/toolyard-backend/pkg/logger"
	"github.com/toolyard/toolyard-backend/pkg/outbox"
	"github.com/toolyard/toolyard-backend/pkg/outbox/payloads"
)

const notificationConsumerName = "user-notifications"

type consumerRepository interface {
	CreateMany(ctx context.Context, notifications []*models.Notification) error
}

type toolCatalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tool, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns domain events from the outbox stream into in-app
// notification rows. One event can fan out to several recipients; the batch
// insert keeps a retried event from landing a partial fan-out.
type Consumer struct {
	repo    consumerRepository
	tools   toolCatalog
	manager idempotencyChecker
	logg    *logger.Logger
}

// NewConsumer builds a notification consumer.
func NewConsumer(repo consumerRepository, tools toolCatalog, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if tools == nil {
		return nil, fmt.Errorf("tool catalog required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:    repo,
		tools:   tools,
		manager: manager,
		logg:    logg,
	}, nil
}

// Process handles one decoded envelope. A nil return means the message can
// be acked; an error means the caller should nack for redelivery.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, notificationConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	rows, err := c.buildNotifications(ctx, eventType, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to build notifications", err)
		_ = c.manager.Delete(ctx, notificationConsumerName, eventID)
		return err
	}
	if len(rows) == 0 {
		c.logg.Info(logCtx, "no notification for event type")
		return nil
	}

	if err := c.repo.CreateMany(ctx, rows); err != nil {
		c.logg.Error(logCtx, "failed to insert notifications", err)
		_ = c.manager.Delete(ctx, notificationConsumerName, eventID)
		return err
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{"rows": len(rows)}), "users notified")
	return nil
}

func (c *Consumer) buildNotifications(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	switch eventType {
	case enums.EventToolPurchased:
		var p payloads.ToolPurchasedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, fmt.Errorf("decode tool_purchased: %w", err)
		}
		name, err := c.toolName(ctx, p.ToolID)
		if err != nil {
			return nil, err
		}
		rows := []*models.Notification{
			{
				UserID:  p.BuyerID,
				Type:    enums.NotificationTypePurchaseReceipt,
				Title:   "Purchase confirmed",
				Message: fmt.Sprintf("You now own %s. %s was charged to your payment method.", name, formatCents(p.AmountCents, p.Currency)),
				Link:    stringPtr("/library"),
			},
			{
				UserID:  p.CreatorID,
				Type:    enums.NotificationTypeToolSold,
				Title:   "You made a sale",
				Message: fmt.Sprintf("%s sold for %s. Your share is %s.", name, formatCents(p.AmountCents, p.Currency), formatCents(p.CreatorEarningsCents, p.Currency)),
				Link:    stringPtr("/earnings"),
			},
		}
		return c.dropNilRecipients(ctx, rows), nil

	case enums.EventPaymentFailed:
		var p payloads.PaymentFailedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, fmt.Errorf("decode payment_failed: %w", err)
		}
		message := fmt.Sprintf("Your %s payment could not be processed%s. Please try another payment method.",
			formatCents(p.AmountCents, p.Currency), reasonSuffix(p.Reason))
		return c.dropNilRecipients(ctx, []*models.Notification{{
			UserID:  p.BuyerID,
			Type:    enums.NotificationTypeSystemAnnouncement,
			Title:   "Payment failed",
			Message: message,
			Link:    stringPtr("/billing"),
		}}), nil

	case enums.EventPayoutCompleted:
		var p payloads.PayoutCompletedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, fmt.Errorf("decode payout_completed: %w", err)
		}
		return c.dropNilRecipients(ctx, []*models.Notification{{
			UserID:  p.UserID,
			Type:    enums.NotificationTypePayoutCompleted,
			Title:   "Payout on the way",
			Message: fmt.Sprintf("Your payout of %s has been sent to your bank.", formatCents(p.AmountCents, "usd")),
			Link:    stringPtr("/earnings"),
		}}), nil

	case enums.EventPayoutFailed:
		var p payloads.PayoutFailedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, fmt.Errorf("decode payout_failed: %w", err)
		}
		message := fmt.Sprintf("Your payout of %s could not be completed%s. Your balance was not debited.",
			formatCents(p.AmountCents, "usd"), reasonSuffix(p.Reason))
		return c.dropNilRecipients(ctx, []*models.Notification{{
			UserID:  p.UserID,
			Type:    enums.NotificationTypePayoutFailed,
			Title:   "Payout failed",
			Message: message,
			Link:    stringPtr("/earnings"),
		}}), nil

	case enums.EventTrialEnding:
		var p payloads.TrialEndingEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, fmt.Errorf("decode trial_ending: %w", err)
		}
		message := "Your trial is about to end. Add a payment method to keep your subscription."
		if p.TrialEnd != nil {
			message = fmt.Sprintf("Your trial ends on %s. Add a payment method to keep your subscription.",
				p.TrialEnd.UTC().Format("January 2, 2006"))
		}
		return c.dropNilRecipients(ctx, []*models.Notification{{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeTrialEnding,
			Title:   "Your trial is ending soon",
			Message: message,
			Link:    stringPtr("/billing"),
		}}), nil

	case enums.EventSubscriptionCanceled:
		var p payloads.SubscriptionCanceledEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, fmt.Errorf("decode subscription_canceled: %w", err)
		}
		return c.dropNilRecipients(ctx, []*models.Notification{{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeSubscriptionCanceled,
			Title:   "Subscription canceled",
			Message: fmt.Sprintf("Your subscription was canceled on %s. Access continues until the end of the paid period.", p.CanceledAt.UTC().Format("January 2, 2006")),
			Link:    stringPtr("/billing"),
		}}), nil

	case enums.EventPurchaseExpired:
		var p payloads.PurchaseExpiredEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, fmt.Errorf("decode purchase_expired: %w", err)
		}
		name, err := c.toolName(ctx, p.ToolID)
		if err != nil {
			return nil, err
		}
		return c.dropNilRecipients(ctx, []*models.Notification{{
			UserID:  p.BuyerID,
			Type:    enums.NotificationTypeSystemAnnouncement,
			Title:   "Access expired",
			Message: fmt.Sprintf("Your access to %s has expired.", name),
			Link:    stringPtr("/library"),
		}}), nil

	default:
		// subscription_renewed shows up in billing history instead, and
		// payout_account_linked is visible on the payouts screen.
		return nil, nil
	}
}

// toolName resolves the display name for notification copy. A missing tool
// degrades to generic wording instead of blocking the event forever.
func (c *Consumer) toolName(ctx context.Context, id uuid.UUID) (string, error) {
	tool, err := c.tools.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "one of your tools", nil
		}
		return "", fmt.Errorf("load tool %s: %w", id, err)
	}
	return tool.Name, nil
}

func (c *Consumer) dropNilRecipients(ctx context.Context, rows []*models.Notification) []*models.Notification {
	kept := rows[:0]
	for _, row := range rows {
		if row.UserID == uuid.Nil {
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"type": row.Type}), "notification without recipient dropped")
			continue
		}
		kept = append(kept, row)
	}
	return kept
}

func formatCents(cents int64, currency string) string {
	amount := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
	code := strings.ToLower(strings.TrimSpace(currency))
	if code == "" || code == "usd" {
		return "$" + amount
	}
	return amount + " " + strings.ToUpper(code)
}

func reasonSuffix(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ""
	}
	return ": " + strings.TrimSuffix(reason, ".")
}

func stringPtr(value string) *string {
	return &value
}
