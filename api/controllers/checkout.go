package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/api/responses"
	"github.com/toolyard/toolyard-backend/api/validators"
	"github.com/toolyard/toolyard-backend/internal/checkout"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/logger"
)

// CheckoutService starts hosted checkout sessions for paid tools.
type CheckoutService interface {
	StartToolCheckout(ctx context.Context, buyerID uuid.UUID, input checkout.StartCheckoutInput) (*checkout.SessionResult, error)
}

type startCheckoutRequest struct {
	ToolSlug   string `json:"tool_slug"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// StartCheckout opens a payment-mode checkout session for the requested tool
// and returns the hosted page the client should redirect to. The purchase
// itself is only recorded once the webhook reconciler sees the session settle.
func StartCheckout(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload startCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.StartToolCheckout(ctx, uid, checkout.StartCheckoutInput{
			ToolSlug:   payload.ToolSlug,
			SuccessURL: payload.SuccessURL,
			CancelURL:  payload.CancelURL,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
