package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/toolyard/toolyard-backend/api/responses"
	"github.com/toolyard/toolyard-backend/api/validators"
	billingsvc "github.com/toolyard/toolyard-backend/internal/billing"
	"github.com/toolyard/toolyard-backend/internal/ledger"
	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/logger"
)

// BillingService describes the billing methods used by the HTTP controllers.
// Subscription state is written only by the webhook reconciler; everything
// here except plan administration is a read.
type BillingService interface {
	ListPlans(ctx context.Context) ([]models.BillingPlan, error)
	ListPlansAdmin(ctx context.Context, params billingsvc.ListBillingPlansQuery) ([]models.BillingPlan, error)
	GetPlan(ctx context.Context, id string) (*models.BillingPlan, error)
	CreatePlan(ctx context.Context, plan *models.BillingPlan) error
	UpdatePlan(ctx context.Context, plan *models.BillingPlan) error
	GetMySubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

type billingPlanResponse struct {
	ID                        string          `json:"id"`
	Name                      string          `json:"name"`
	Status                    string          `json:"status"`
	StripePriceID             string          `json:"stripe_price_id"`
	Test                      bool            `json:"test"`
	IsDefault                 bool            `json:"is_default"`
	TrialDays                 int             `json:"trial_days"`
	TrialRequirePaymentMethod bool            `json:"trial_require_payment_method"`
	Interval                  string          `json:"interval"`
	PriceAmount               string          `json:"price_amount"`
	PriceAmountCents          int64           `json:"price_amount_cents"`
	CurrencyCode              string          `json:"currency_code"`
	Features                  []string        `json:"features"`
	UI                        json.RawMessage `json:"ui,omitempty"`
	CreatedAt                 string          `json:"created_at"`
	UpdatedAt                 string          `json:"updated_at"`
}

type billingPlanListResponse struct {
	Plans []billingPlanResponse `json:"plans"`
}

type billingPlanUpsertRequest struct {
	ID                        string          `json:"id,omitempty"`
	Name                      string          `json:"name"`
	Status                    string          `json:"status"`
	StripePriceID             string          `json:"stripe_price_id"`
	Test                      *bool           `json:"test"`
	IsDefault                 *bool           `json:"is_default"`
	TrialDays                 *int            `json:"trial_days"`
	TrialRequirePaymentMethod *bool           `json:"trial_require_payment_method"`
	Interval                  string          `json:"interval"`
	PriceAmountCents          *int64          `json:"price_amount_cents"`
	CurrencyCode              string          `json:"currency_code"`
	Features                  []string        `json:"features"`
	UI                        json.RawMessage `json:"ui"`
}

type subscriptionResponse struct {
	ID                   uuid.UUID  `json:"id"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	Status               string     `json:"status"`
	PriceID              *string    `json:"price_id,omitempty"`
	CurrentPeriodStart   *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CanceledAt           *time.Time `json:"canceled_at,omitempty"`
}

// BillingPlans returns the active plan catalog shown to subscribers.
func BillingPlans(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		plans, err := svc.ListPlans(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, billingPlanListResponse{Plans: plansToResponse(plans)})
	}
}

// BillingPlanDetail returns one active plan. Hidden and deprecated plans are
// invisible here; they remain reachable through the admin listing.
func BillingPlanDetail(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		planID := strings.TrimSpace(chi.URLParam(r, "planId"))
		plan, err := svc.GetPlan(ctx, planID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if plan.Status != enums.PlanStatusActive {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found"))
			return
		}
		responses.WriteSuccess(w, billingPlanToResponse(plan))
	}
}

// MySubscription returns the authenticated user's platform subscription.
func MySubscription(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.GetMySubscription(ctx, uid)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, subscriptionResponse{
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

// BillingHistory returns the user's receipt feed, newest first.
func BillingHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params := ledger.ListBillingHistoryParams{UserID: uid}
		if params.Limit, err = validators.ParseQueryInt(r, "limit", 0, 1, 100); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))

		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			entryType, err := enums.ParseBillingHistoryType(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type filter"))
				return
			}
			params.Type = &entryType
		}

		page, err := svc.ListBillingHistory(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminBillingPlansList returns every plan, optionally filtered by status or
// by the default flag.
func AdminBillingPlansList(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		var status *enums.PlanStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParsePlanStatus(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}

		var isDefault *bool
		if raw := strings.TrimSpace(r.URL.Query().Get("is_default")); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid is_default flag"))
				return
			}
			isDefault = &parsed
		}

		plans, err := svc.ListPlansAdmin(ctx, billingsvc.ListBillingPlansQuery{
			Status:    status,
			IsDefault: isDefault,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, billingPlanListResponse{Plans: plansToResponse(plans)})
	}
}

// AdminBillingPlanCreate registers a new plan.
func AdminBillingPlanCreate(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		var payload billingPlanUpsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if strings.TrimSpace(payload.ID) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "id is required"))
			return
		}

		plan, err := buildBillingPlanFromRequest(payload, strings.TrimSpace(payload.ID))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.CreatePlan(ctx, plan); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, billingPlanToResponse(plan))
	}
}

// AdminBillingPlanUpdate replaces a plan's metadata in full.
func AdminBillingPlanUpdate(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		planID := strings.TrimSpace(chi.URLParam(r, "planId"))
		existing, err := svc.GetPlan(ctx, planID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload billingPlanUpsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := buildBillingPlanFromRequest(payload, planID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan.CreatedAt = existing.CreatedAt
		if err := svc.UpdatePlan(ctx, plan); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, billingPlanToResponse(plan))
	}
}

// AdminBillingPlanDelete hides a plan. Plans are never removed outright
// because billing history keeps referencing them.
func AdminBillingPlanDelete(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		planID := strings.TrimSpace(chi.URLParam(r, "planId"))
		plan, err := svc.GetPlan(ctx, planID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan.Status = enums.PlanStatusHidden
		plan.IsDefault = false
		if err := svc.UpdatePlan(ctx, plan); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, billingPlanToResponse(plan))
	}
}

func plansToResponse(plans []models.BillingPlan) []billingPlanResponse {
	result := make([]billingPlanResponse, 0, len(plans))
	for _, plan := range plans {
		result = append(result, billingPlanToResponse(&plan))
	}
	return result
}

func billingPlanToResponse(plan *models.BillingPlan) billingPlanResponse {
	features := make([]string, len(plan.Features))
	copy(features, plan.Features)

	return billingPlanResponse{
		ID:                        plan.ID,
		Name:                      plan.Name,
		Status:                    string(plan.Status),
		StripePriceID:             plan.StripePriceID,
		Test:                      plan.Test,
		IsDefault:                 plan.IsDefault,
		TrialDays:                 plan.TrialDays,
		TrialRequirePaymentMethod: plan.TrialRequirePaymentMethod,
		Interval:                  string(plan.Interval),
		PriceAmount:               plan.PriceAmount.StringFixed(2),
		PriceAmountCents:          plan.PriceAmount.Shift(2).IntPart(),
		CurrencyCode:              plan.CurrencyCode,
		Features:                  features,
		UI:                        plan.UI,
		CreatedAt:                 plan.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:                 plan.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func buildBillingPlanFromRequest(payload billingPlanUpsertRequest, id string) (*models.BillingPlan, error) {
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	rawStatus := strings.TrimSpace(payload.Status)
	if rawStatus == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status is required")
	}
	status, err := enums.ParsePlanStatus(rawStatus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
	}

	priceID := strings.TrimSpace(payload.StripePriceID)
	if priceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe_price_id is required")
	}

	rawInterval := strings.TrimSpace(payload.Interval)
	if rawInterval == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "interval is required")
	}
	interval, err := enums.ParseBillingInterval(rawInterval)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid interval")
	}

	if payload.PriceAmountCents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_amount_cents is required")
	}
	if *payload.PriceAmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price amount must be non-negative")
	}

	currency := strings.TrimSpace(payload.CurrencyCode)
	if currency == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency_code is required")
	}

	return &models.BillingPlan{
		ID:                        id,
		Name:                      name,
		Status:                    status,
		StripePriceID:             priceID,
		Test:                      boolValue(payload.Test, false),
		IsDefault:                 boolValue(payload.IsDefault, false),
		TrialDays:                 intValue(payload.TrialDays, 0),
		TrialRequirePaymentMethod: boolValue(payload.TrialRequirePaymentMethod, false),
		Interval:                  interval,
		PriceAmount:               decimal.NewFromInt(*payload.PriceAmountCents).Shift(-2),
		CurrencyCode:              currency,
		Features:                  pq.StringArray(payload.Features),
		UI:                        payload.UI,
	}, nil
}

func boolValue(ptr *bool, fallback bool) bool {
	if ptr == nil {
		return fallback
	}
	return *ptr
}

func intValue(ptr *int, fallback int) int {
	if ptr == nil {
		return fallback
	}
	return *ptr
}
