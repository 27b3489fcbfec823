package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/internal/billing"
	"github.com/toolyard/toolyard-backend/internal/subscriptions"
	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/logger"
)

const (
	defaultReconcileLimit    = 250
	defaultReconcileLookback = 7 * 24 * time.Hour
)

// SubscriptionReconcileJobParams configures the subscription sync cron job.
type SubscriptionReconcileJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	BillingRepo  billing.Repository
	StripeClient subscriptions.StripeSubscriptionClient
	Limit        int
	Lookback     time.Duration
	Now          func() time.Time
}

// NewSubscriptionReconcileJob builds a reconciliation cron job. Webhooks are
// the primary sync path; this job catches deliveries that never arrived by
// re-fetching each candidate from the gateway.
func NewSubscriptionReconcileJob(params SubscriptionReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if params.StripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultReconcileLookback
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &subscriptionReconcileJob{
		logg:        params.Logger,
		db:          params.DB,
		billingRepo: params.BillingRepo,
		stripe:      params.StripeClient,
		now:         now,
		limit:       limit,
		lookback:    lookback,
	}, nil
}

type subscriptionReconcileJob struct {
	logg        *logger.Logger
	db          txRunner
	billingRepo billing.Repository
	stripe      subscriptions.StripeSubscriptionClient
	now         func() time.Time
	limit       int
	lookback    time.Duration
}

func (j *subscriptionReconcileJob) Name() string { return "subscription-reconcile" }

func (j *subscriptionReconcileJob) Run(ctx context.Context) error {
	snapshot, err := j.billingRepo.ListSubscriptionsForReconciliation(ctx, j.limit, j.lookback)
	if err != nil {
		return fmt.Errorf("list subscriptions for reconciliation: %w", err)
	}
	var errs error
	synced := 0
	for i := range snapshot {
		if err := j.reconcileSubscription(ctx, &snapshot[i]); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		synced++
	}
	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(snapshot),
		"synced":     synced,
	})
	j.logg.Info(reportCtx, "subscription reconcile loop complete")
	return errs
}

func (j *subscriptionReconcileJob) reconcileSubscription(ctx context.Context, sub *models.Subscription) error {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"subscription_id":        sub.ID,
		"user_id":                sub.UserID,
		"stripe_subscription_id": sub.StripeSubscriptionID,
	})
	if strings.TrimSpace(sub.StripeSubscriptionID) == "" {
		j.logg.Info(logCtx, "subscription missing stripe id; skipping")
		return nil
	}
	stripeSub, err := j.stripe.Get(logCtx, sub.StripeSubscriptionID, nil)
	if err != nil {
		if isStripeNotFound(err) {
			j.logg.Warn(logCtx, "subscription gone from stripe; skipping")
			return nil
		}
		return fmt.Errorf("fetch stripe subscription %s: %w", sub.StripeSubscriptionID, err)
	}
	if stripeSub == nil {
		j.logg.Info(logCtx, "stripe subscription not found; skipping")
		return nil
	}
	if err := j.db.WithTx(logCtx, func(tx *gorm.DB) error {
		repo := j.billingRepo.WithTx(tx)
		stored, err := repo.FindSubscriptionByStripeID(logCtx, stripeSub.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			j.logg.Info(logCtx, "subscription removed from db; skipping")
			return nil
		}
		if err := subscriptions.UpdateSubscriptionFromStripe(stored, stripeSub); err != nil {
			return err
		}
		if err := repo.UpdateSubscription(logCtx, stored); err != nil {
			return err
		}
		successCtx := j.logg.WithFields(logCtx, map[string]any{
			"stripe_status": string(stripeSub.Status),
			"entitled":      subscriptions.IsActiveStatus(stored.Status),
		})
		j.logg.Info(successCtx, "subscription reconciled")
		return nil
	}); err != nil {
		return fmt.Errorf("persist subscription reconciliation %s: %w", sub.StripeSubscriptionID, err)
	}
	return nil
}

// isStripeNotFound detects the gateway's resource_missing answer so a
// subscription deleted upstream does not poison the whole sweep.
func isStripeNotFound(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == 404
}
