package controllers

import (
	"net/http"

	"github.com/toolyard/toolyard-backend/api/responses"
	"github.com/toolyard/toolyard-backend/api/validators"
	subscriptionsvc "github.com/toolyard/toolyard-backend/internal/subscriptions"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/logger"
)

type createSubscriptionRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
	PriceID         string `json:"price_id"`
}

// CreateSubscription starts (or returns) the caller's platform subscription.
// A repeat call with an active subscription responds 200 instead of 201.
func CreateSubscription(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload createSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, created, err := svc.Create(ctx, uid, subscriptionsvc.CreateSubscriptionInput{
			PaymentMethodID: payload.PaymentMethodID,
			PriceID:         payload.PriceID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, subscriptionResponse{
			ID:                   sub.ID,
			StripeSubscriptionID: sub.StripeSubscriptionID,
			Status:               string(sub.Status),
			PriceID:              sub.PriceID,
			CurrentPeriodStart:   sub.CurrentPeriodStart,
			CurrentPeriodEnd:     sub.CurrentPeriodEnd,
			CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
			CanceledAt:           sub.CanceledAt,
		})
	}
}

// CancelSubscription ends the caller's subscription at the gateway and
// records the terminal state locally.
func CancelSubscription(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Cancel(ctx, uid); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"canceled": true})
	}
}
