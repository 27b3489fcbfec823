package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/api/responses"
	"github.com/toolyard/toolyard-backend/api/validators"
	"github.com/toolyard/toolyard-backend/internal/ledger"
	"github.com/toolyard/toolyard-backend/internal/payouts"
	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/logger"
	"github.com/toolyard/toolyard-backend/pkg/metrics"
)

const payoutOutcomeRejected = "rejected"

type requestPayoutBody struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type requestPayoutResponse struct {
	Message               string         `json:"message"`
	Payout                *models.Payout `json:"payout"`
	RemainingBalanceCents int64          `json:"remaining_balance_cents"`
}

type connectAccountBody struct {
	RefreshURL string `json:"refresh_url" validate:"required,url"`
	ReturnURL  string `json:"return_url" validate:"required,url"`
}

// RequestPayout withdraws from the creator's pending balance. The transfer is
// finalized before the handler returns: the payout in the response is already
// completed or failed, never pending.
func RequestPayout(svc payouts.Service, payoutMetrics *metrics.PayoutMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body requestPayoutBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RequestPayout(r.Context(), uid, payouts.RequestPayoutInput{AmountCents: body.Amount})
		if err != nil {
			payoutMetrics.IncOutcome(payoutOutcomeRejected)
			payoutMetrics.ObserveAmount(payoutOutcomeRejected, body.Amount)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome := string(result.Payout.Status)
		payoutMetrics.IncOutcome(outcome)
		payoutMetrics.ObserveAmount(outcome, body.Amount)

		message := "Payout completed"
		if result.Payout.Status == enums.PayoutStatusFailed {
			message = "Payout failed; your balance was not affected"
		}

		responses.WriteSuccess(w, requestPayoutResponse{
			Message:               message,
			Payout:                result.Payout,
			RemainingBalanceCents: result.RemainingBalanceCents,
		})
	}
}

// ConnectPayoutAccount starts gateway onboarding and returns the single-use
// link the client redirects the creator to.
func ConnectPayoutAccount(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body connectAccountBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		link, err := svc.ConnectAccount(r.Context(), uid, payouts.ConnectAccountInput{
			RefreshURL: body.RefreshURL,
			ReturnURL:  body.ReturnURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, link)
	}
}

// PayoutAccountStatus reports the connected account's live capability flags.
func PayoutAccountStatus(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.AccountStatus(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// ListPayouts returns the authenticated creator's payout history, newest first.
func ListPayouts(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := ledger.ListPayoutsParams{UserID: uid}
		if params.Limit, err = validators.ParseQueryInt(r, "limit", 0, 1, 100); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))
		if params.Status, err = payoutStatusFilter(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListPayouts(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminListPayouts lists payouts across every user, optionally narrowed to a
// single user or status.
func AdminListPayouts(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		params := ledger.AdminListPayoutsParams{}

		if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id filter"))
				return
			}
			params.UserID = &userID
		}

		var err error
		if params.Limit, err = validators.ParseQueryInt(r, "limit", 0, 1, 100); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))
		if params.Status, err = payoutStatusFilter(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListAllPayouts(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func payoutStatusFilter(r *http.Request) (*enums.PayoutStatus, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParsePayoutStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
	}
	return &status, nil
}
