package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/internal/billing"
	"github.com/toolyard/toolyard-backend/internal/ledger"
	"github.com/toolyard/toolyard-backend/internal/subscriptions"
	dbpkg "github.com/toolyard/toolyard-backend/pkg/db"
	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/logger"
	"github.com/toolyard/toolyard-backend/pkg/outbox"
	"github.com/toolyard/toolyard-backend/pkg/outbox/payloads"
)

// Checkout sessions carry these metadata keys so a settled charge can be
// attributed back to a buyer and a tool.
const (
	metadataToolKey = "tool_id"
	metadataUserKey = "user_id"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type toolLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tool, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups the reconciler's dependencies.
type ServiceParams struct {
	ProcessedEvents   ledger.ProcessedEventRepository
	Purchases         ledger.PurchaseRepository
	Earnings          ledger.EarningsRepository
	History           ledger.BillingHistoryRepository
	BillingRepo       billing.Repository
	Tools             toolLoader
	StripeClient      subscriptions.StripeSubscriptionClient
	Outbox            eventEmitter
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service applies verified gateway events to the ledger exactly once. The
// caller is responsible for signature verification; the service trusts the
// payload it receives.
type Service struct {
	processedEvents ledger.ProcessedEventRepository
	purchases       ledger.PurchaseRepository
	earnings        ledger.EarningsRepository
	history         ledger.BillingHistoryRepository
	billingRepo     billing.Repository
	tools           toolLoader
	stripe          subscriptions.StripeSubscriptionClient
	outbox          eventEmitter
	txRunner        txRunner
	logg            *logger.Logger
}

// NewService builds the webhook reconciler.
func NewService(params ServiceParams) (*Service, error) {
	if params.ProcessedEvents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "processed event repository required")
	}
	if params.Purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "purchase repository required")
	}
	if params.Earnings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "earnings repository required")
	}
	if params.History == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing history repository required")
	}
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing repository required")
	}
	if params.Tools == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tool loader required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{
		processedEvents: params.ProcessedEvents,
		purchases:       params.Purchases,
		earnings:        params.Earnings,
		history:         params.History,
		billingRepo:     params.BillingRepo,
		tools:           params.Tools,
		stripe:          params.StripeClient,
		outbox:          params.Outbox,
		txRunner:        params.TransactionRunner,
		logg:            params.Logger,
	}, nil
}

// HandleEvent runs the idempotent reconciliation for one delivered event:
// consult the journal, record first sight, dispatch to the kind's handler,
// and flip the journal row to processed in the same transaction as the
// handler's writes. Returning an error leaves the row unprocessed so the
// gateway's redelivery becomes the retry mechanism.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.ID == "" || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event required")
	}

	seen, err := s.processedEvents.FindByExternalID(ctx, event.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up processed event")
	}
	if seen != nil && seen.Processed {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		})
		s.logg.Info(logCtx, "gateway event already processed")
		return nil
	}
	if seen == nil {
		record := &models.ProcessedEvent{
			ExternalEventID: event.ID,
			EventType:       string(event.Type),
		}
		if err := s.processedEvents.InsertUnprocessed(ctx, record); err != nil {
			if !dbpkg.IsUniqueViolation(err, "ux_processed_events_external_id") {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record gateway event")
			}
			again, readErr := s.processedEvents.FindByExternalID(ctx, event.ID)
			if readErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, readErr, "re-read processed event")
			}
			if again != nil && again.Processed {
				return nil
			}
			// A concurrent delivery inserted the row first but has not
			// finished yet. Handler writes are idempotent, so continuing
			// is safe either way.
		}
	}

	kind := enums.ParseWebhookEventKind(string(event.Type))
	if !kind.IsHandled() {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		})
		s.logg.Info(logCtx, "ignoring unhandled gateway event type")
		return s.finish(ctx, event.ID, nil)
	}

	switch kind {
	case enums.WebhookEventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, event)
	case enums.WebhookEventPaymentFailed:
		return s.handlePaymentFailed(ctx, event)
	case enums.WebhookEventSubscriptionCreated,
		enums.WebhookEventSubscriptionUpdated,
		enums.WebhookEventSubscriptionDeleted:
		return s.handleSubscriptionChange(ctx, event, kind)
	case enums.WebhookEventInvoicePaid:
		return s.handleInvoice(ctx, event, true)
	case enums.WebhookEventInvoicePaymentFailed:
		return s.handleInvoice(ctx, event, false)
	case enums.WebhookEventTrialWillEnd:
		return s.handleTrialWillEnd(ctx, event)
	case enums.WebhookEventAccountUpdated:
		return s.handleAccountUpdated(ctx, event)
	default:
		return s.finish(ctx, event.ID, nil)
	}
}

// finish commits the handler's writes and the processed flag in one
// transaction, so a crash cannot apply side effects without marking the
// event, and a redelivery after success is a pure no-op.
func (s *Service) finish(ctx context.Context, externalEventID string, apply func(ctx context.Context, tx *gorm.DB) error) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if apply != nil {
			if err := apply(ctx, tx); err != nil {
				return err
			}
		}
		if err := s.processedEvents.WithTx(tx).MarkProcessed(ctx, externalEventID, time.Now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark event processed")
		}
		return nil
	})
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session")
	}
	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		// Async payment methods settle later through their own events.
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID,
			"session_id": session.ID,
		})
		s.logg.Info(logCtx, "checkout session completed without payment")
		return s.finish(ctx, event.ID, nil)
	}

	buyerID, err := uuid.Parse(session.Metadata[metadataUserKey])
	if err != nil {
		return s.skipUnattributed(ctx, event, "checkout session without buyer attribution")
	}
	toolID, err := uuid.Parse(session.Metadata[metadataToolKey])
	if err != nil {
		return s.skipUnattributed(ctx, event, "checkout session without tool attribution")
	}

	tool, err := s.tools.FindByID(ctx, toolID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "purchased tool not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchased tool")
	}

	chargeID := chargeIDFromSession(&session)
	amount := session.AmountTotal
	currency := currencyOrDefault(string(session.Currency))
	platformFee, creatorShare := ledger.SplitAmount(amount)

	licenseType := enums.LicenseTypeLifetime
	if tool.PricingType == enums.PricingTypeSubscription {
		licenseType = enums.LicenseTypeSubscription
	}
	var expiresAt *time.Time
	if tool.LicenseDays != nil && *tool.LicenseDays > 0 {
		expiry := time.Now().UTC().AddDate(0, 0, *tool.LicenseDays)
		expiresAt = &expiry
	}

	return s.finish(ctx, event.ID, func(ctx context.Context, tx *gorm.DB) error {
		purchase := &models.Purchase{
			BuyerID:              buyerID,
			SellerID:             tool.CreatorID,
			ToolID:               tool.ID,
			StripeChargeID:       chargeID,
			AmountCents:          amount,
			PlatformFeeCents:     platformFee,
			CreatorEarningsCents: creatorShare,
			Currency:             currency,
			LicenseType:          licenseType,
			ExpiresAt:            expiresAt,
		}
		inserted, err := s.purchases.WithTx(tx).UpsertByChargeID(ctx, purchase)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_purchases_buyer_tool_active") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "buyer already holds an active license for this tool")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record purchase")
		}
		if !inserted {
			// Redelivered charge: the purchase and the credit are already
			// in place.
			return nil
		}

		earningsRepo := s.earnings.WithTx(tx)
		if _, err := earningsRepo.CreateIfAbsent(ctx, tool.CreatorID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure earnings row")
		}
		if err := earningsRepo.Credit(ctx, tool.CreatorID, creatorShare); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit creator earnings")
		}

		entry := &models.BillingHistory{
			UserID:         buyerID,
			Type:           enums.BillingHistoryTypePurchase,
			Status:         enums.BillingHistoryStatusPaid,
			AmountCents:    amount,
			Currency:       currency,
			Description:    fmt.Sprintf("Purchase of %s", tool.Name),
			StripeObjectID: chargeID,
		}
		if err := s.history.WithTx(tx).Insert(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record billing history")
		}

		purchased := outbox.DomainEvent{
			EventType:     enums.EventToolPurchased,
			AggregateType: enums.AggregatePurchase,
			AggregateID:   purchase.ID,
			Version:       1,
			Data: payloads.ToolPurchasedEvent{
				PurchaseID:           purchase.ID,
				ToolID:               tool.ID,
				BuyerID:              buyerID,
				CreatorID:            tool.CreatorID,
				AmountCents:          amount,
				PlatformFeeCents:     platformFee,
				CreatorEarningsCents: creatorShare,
				Currency:             currency,
				ChargeID:             chargeID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, purchased); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit purchase event")
		}
		return nil
	})
}

func (s *Service) handlePaymentFailed(ctx context.Context, event *stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent")
	}
	buyerID, err := uuid.Parse(intent.Metadata[metadataUserKey])
	if err != nil {
		return s.skipUnattributed(ctx, event, "failed payment without buyer attribution")
	}
	reason := "payment failed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		reason = intent.LastPaymentError.Msg
	}
	currency := currencyOrDefault(string(intent.Currency))

	return s.finish(ctx, event.ID, func(ctx context.Context, tx *gorm.DB) error {
		entry := &models.BillingHistory{
			UserID:         buyerID,
			Type:           enums.BillingHistoryTypePurchase,
			Status:         enums.BillingHistoryStatusFailed,
			AmountCents:    intent.Amount,
			Currency:       currency,
			Description:    "Payment failed",
			StripeObjectID: intent.ID,
		}
		if err := s.history.WithTx(tx).Insert(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record billing history")
		}
		failed := outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateUser,
			AggregateID:   buyerID,
			Version:       1,
			Data: payloads.PaymentFailedEvent{
				BuyerID:     buyerID,
				ChargeID:    intent.ID,
				AmountCents: intent.Amount,
				Currency:    currency,
				Reason:      reason,
			},
		}
		if err := s.outbox.Emit(ctx, tx, failed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment failed event")
		}
		return nil
	})
}

func (s *Service) handleSubscriptionChange(ctx context.Context, event *stripe.Event, kind enums.WebhookEventKind) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
	}
	return s.finish(ctx, event.ID, func(ctx context.Context, tx *gorm.DB) error {
		synced, err := s.syncSubscription(ctx, tx, &stripeSub)
		if err != nil {
			return err
		}
		if synced == nil {
			return nil
		}
		if kind != enums.WebhookEventSubscriptionDeleted {
			return nil
		}
		canceledAt := time.Now().UTC()
		if synced.CanceledAt != nil {
			canceledAt = *synced.CanceledAt
		}
		canceled := outbox.DomainEvent{
			EventType:     enums.EventSubscriptionCanceled,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   synced.ID,
			Version:       1,
			Data: payloads.SubscriptionCanceledEvent{
				SubscriptionID: synced.ID,
				UserID:         synced.UserID,
				CanceledAt:     canceledAt,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, canceled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit subscription canceled event")
		}
		return nil
	})
}

func (s *Service) handleInvoice(ctx context.Context, event *stripe.Event, paid bool) error {
	subscriptionID := event.GetObjectValue("subscription")
	if subscriptionID == "" {
		// One-off invoices have no subscription to reconcile against.
		logCtx := s.logg.WithFields(ctx, map[string]any{"event_id": event.ID})
		s.logg.Info(logCtx, "invoice event without subscription")
		return s.finish(ctx, event.ID, nil)
	}
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode invoice event")
	}
	// Delivery order is not guaranteed, so sync from the gateway's current
	// view rather than from whatever state the invoice payload embeds.
	stripeSub, err := s.stripe.Get(ctx, subscriptionID, &stripe.SubscriptionParams{})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}

	entryStatus := enums.BillingHistoryStatusPaid
	amount := invoice.AmountPaid
	description := "Platform subscription"
	if !paid {
		entryStatus = enums.BillingHistoryStatusFailed
		amount = invoice.AmountDue
		description = "Platform subscription payment failed"
	}
	currency := currencyOrDefault(string(invoice.Currency))

	return s.finish(ctx, event.ID, func(ctx context.Context, tx *gorm.DB) error {
		synced, err := s.syncSubscription(ctx, tx, stripeSub)
		if err != nil {
			return err
		}
		if synced == nil {
			return nil
		}

		historyRepo := s.history.WithTx(tx)
		existing, err := historyRepo.FindByStripeObject(ctx, enums.BillingHistoryTypeSubscriptionInvoice, entryStatus, invoice.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up billing history")
		}
		if existing != nil {
			// Replayed invoice event: the receipt line is already written.
			return nil
		}
		entry := &models.BillingHistory{
			UserID:         synced.UserID,
			Type:           enums.BillingHistoryTypeSubscriptionInvoice,
			Status:         entryStatus,
			AmountCents:    amount,
			Currency:       currency,
			Description:    description,
			StripeObjectID: invoice.ID,
		}
		if err := historyRepo.Insert(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record billing history")
		}

		if paid {
			periodEnd := synced.CurrentPeriodEnd
			renewed := outbox.DomainEvent{
				EventType:     enums.EventSubscriptionRenewed,
				AggregateType: enums.AggregateSubscription,
				AggregateID:   synced.ID,
				Version:       1,
				Data: payloads.SubscriptionRenewedEvent{
					SubscriptionID: synced.ID,
					UserID:         synced.UserID,
					InvoiceID:      invoice.ID,
					AmountCents:    amount,
					PeriodEnd:      &periodEnd,
				},
			}
			if err := s.outbox.Emit(ctx, tx, renewed); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit subscription renewed event")
			}
			return nil
		}

		failed := outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateUser,
			AggregateID:   synced.UserID,
			Version:       1,
			Data: payloads.PaymentFailedEvent{
				BuyerID:     synced.UserID,
				ChargeID:    invoice.ID,
				AmountCents: amount,
				Currency:    currency,
				Reason:      "subscription invoice payment failed",
			},
		}
		if err := s.outbox.Emit(ctx, tx, failed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment failed event")
		}
		return nil
	})
}

func (s *Service) handleTrialWillEnd(ctx context.Context, event *stripe.Event) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
	}
	var trialEnd *time.Time
	if stripeSub.TrialEnd > 0 {
		end := time.Unix(stripeSub.TrialEnd, 0).UTC()
		trialEnd = &end
	}
	return s.finish(ctx, event.ID, func(ctx context.Context, tx *gorm.DB) error {
		synced, err := s.syncSubscription(ctx, tx, &stripeSub)
		if err != nil {
			return err
		}
		if synced == nil {
			return nil
		}
		ending := outbox.DomainEvent{
			EventType:     enums.EventTrialEnding,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   synced.ID,
			Version:       1,
			Data: payloads.TrialEndingEvent{
				SubscriptionID: synced.ID,
				UserID:         synced.UserID,
				TrialEnd:       trialEnd,
			},
		}
		// The warning fires once per subscription even if the gateway
		// re-sends the event under a fresh id.
		if err := s.outbox.EmitIfNotExists(ctx, tx, ending); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit trial ending event")
		}
		return nil
	})
}

func (s *Service) handleAccountUpdated(ctx context.Context, event *stripe.Event) error {
	var account stripe.Account
	if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode account event")
	}
	if account.ID == "" {
		return s.skipUnattributed(ctx, event, "account event without account id")
	}
	return s.finish(ctx, event.ID, func(ctx context.Context, tx *gorm.DB) error {
		earningsRepo := s.earnings.WithTx(tx)
		earnings, err := earningsRepo.FindByStripeAccountID(ctx, account.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load earnings by account")
		}
		if earnings == nil {
			// account.updated fires for every account on the platform,
			// linked or not.
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"event_id":   event.ID,
				"account_id": account.ID,
			})
			s.logg.Info(logCtx, "gateway account not linked to a creator")
			return nil
		}
		if _, err := earningsRepo.SetPayoutsEnabledByAccount(ctx, account.ID, account.PayoutsEnabled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync payouts capability")
		}
		if account.PayoutsEnabled && !earnings.PayoutsEnabled {
			linked := outbox.DomainEvent{
				EventType:     enums.EventPayoutAccountLinked,
				AggregateType: enums.AggregateUser,
				AggregateID:   earnings.UserID,
				Version:       1,
				Data: payloads.PayoutAccountLinkedEvent{
					UserID:           earnings.UserID,
					GatewayAccountID: account.ID,
					PayoutsEnabled:   true,
				},
			}
			if err := s.outbox.Emit(ctx, tx, linked); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit account linked event")
			}
		}
		return nil
	})
}

// syncSubscription folds the gateway's view of a subscription into the local
// row, creating it when the gateway saw it first. Returns nil without error
// when the subscription cannot be attributed to a user; the event is then a
// logged no-op rather than a poison message.
func (s *Service) syncSubscription(ctx context.Context, tx *gorm.DB, stripeSub *stripe.Subscription) (*models.Subscription, error) {
	if stripeSub == nil || stripeSub.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe subscription required")
	}
	repo := s.billingRepo.WithTx(tx)
	stored, err := repo.FindSubscriptionByStripeID(ctx, stripeSub.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}

	if stored == nil {
		userID, metaErr := subscriptions.UserIDFromMetadata(stripeSub.Metadata)
		if metaErr != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"stripe_subscription_id": stripeSub.ID,
			})
			s.logg.Warn(logCtx, "subscription event without user attribution")
			return nil, nil
		}
		built, buildErr := subscriptions.BuildSubscriptionFromStripe(stripeSub, userID)
		if buildErr != nil {
			return nil, buildErr
		}
		if err := repo.CreateSubscription(ctx, built); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription")
		}
		return built, nil
	}

	if err := subscriptions.UpdateSubscriptionFromStripe(stored, stripeSub); err != nil {
		return nil, err
	}
	if err := repo.UpdateSubscription(ctx, stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription")
	}
	return stored, nil
}

// skipUnattributed marks an event we cannot act on as processed. These are
// deliveries for objects the platform did not create (or created without
// metadata); redelivery would never heal them, so failing is pointless.
func (s *Service) skipUnattributed(ctx context.Context, event *stripe.Event, msg string) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
	})
	s.logg.Warn(logCtx, msg)
	return s.finish(ctx, event.ID, nil)
}

// chargeIDFromSession picks the most specific settlement identifier the
// session offers. The payment intent id keys the Purchase row.
func chargeIDFromSession(session *stripe.CheckoutSession) string {
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		return session.PaymentIntent.ID
	}
	return session.ID
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return "usd"
	}
	return currency
}
