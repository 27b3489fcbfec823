package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/toolyard/toolyard-backend/api/responses"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/logger"
	"github.com/toolyard/toolyard-backend/pkg/metrics"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
	Livemode() bool
}

type stripeReceipt struct {
	Received bool `json:"received"`
}

// StripeWebhook verifies the delivery signature before anything else touches
// the payload, then hands the event to the reconciler behind a Redis
// idempotency fast path. The ledger journal is the durable dedupe; the guard
// only spares the database a round trip on hot retries, so its reservation is
// released when the handler fails and redelivery must get through.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, webhookMetrics *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature"))
			return
		}
		kind := string(event.Type)

		// A livemode mismatch means the delivery was routed to the wrong
		// deployment; reconciling it would write test money into a live
		// ledger or vice versa.
		if event.Livemode != client.Livemode() {
			if logg != nil {
				logg.Warn(ctx, fmt.Sprintf("stripe event %s livemode mismatch, dropping", event.ID))
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event livemode does not match deployment"))
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			webhookMetrics.IncDuplicate(kind)
			responses.WriteSuccess(w, stripeReceipt{Received: true})
			return
		}

		start := time.Now()
		if err := svc.HandleEvent(ctx, &event); err != nil {
			_ = guard.Delete(ctx, event.ID)
			webhookMetrics.IncFailed(kind)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		webhookMetrics.IncProcessed(kind)
		webhookMetrics.ObserveDuration(kind, time.Since(start))

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s processed", event.ID))
		}
		responses.WriteSuccess(w, stripeReceipt{Received: true})
	}
}
