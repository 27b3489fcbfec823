package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/api/middleware"
	"github.com/toolyard/toolyard-backend/internal/ledger"
	"github.com/toolyard/toolyard-backend/internal/payouts"
	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
)

type stubLedgerService struct {
	summary      *ledger.EarningsSummary
	summaryErr   error
	historyFn    func(ctx context.Context, params ledger.ListBillingHistoryParams) (*ledger.BillingHistoryPage, error)
	payoutsFn    func(ctx context.Context, params ledger.ListPayoutsParams) (*ledger.PayoutPage, error)
	allPayoutsFn func(ctx context.Context, params ledger.AdminListPayoutsParams) (*ledger.PayoutPage, error)
	purchases    []models.Purchase
	purchasesErr error
}

func (s *stubLedgerService) EarningsSummary(ctx context.Context, userID uuid.UUID) (*ledger.EarningsSummary, error) {
	if s.summaryErr != nil {
		return nil, s.summaryErr
	}
	return s.summary, nil
}

func (s *stubLedgerService) ListBillingHistory(ctx context.Context, params ledger.ListBillingHistoryParams) (*ledger.BillingHistoryPage, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, params)
	}
	return &ledger.BillingHistoryPage{}, nil
}

func (s *stubLedgerService) ListPayouts(ctx context.Context, params ledger.ListPayoutsParams) (*ledger.PayoutPage, error) {
	if s.payoutsFn != nil {
		return s.payoutsFn(ctx, params)
	}
	return &ledger.PayoutPage{}, nil
}

func (s *stubLedgerService) ListAllPayouts(ctx context.Context, params ledger.AdminListPayoutsParams) (*ledger.PayoutPage, error) {
	if s.allPayoutsFn != nil {
		return s.allPayoutsFn(ctx, params)
	}
	return &ledger.PayoutPage{}, nil
}

func (s *stubLedgerService) ListPurchases(ctx context.Context, buyerID uuid.UUID) ([]models.Purchase, error) {
	if s.purchasesErr != nil {
		return nil, s.purchasesErr
	}
	return s.purchases, nil
}

type stubPayoutService struct {
	requestFn func(ctx context.Context, userID uuid.UUID, input payouts.RequestPayoutInput) (*payouts.PayoutResult, error)
	connectFn func(ctx context.Context, userID uuid.UUID, input payouts.ConnectAccountInput) (*payouts.ConnectLink, error)
	statusFn  func(ctx context.Context, userID uuid.UUID) (*payouts.AccountStatus, error)
}

func (s *stubPayoutService) RequestPayout(ctx context.Context, userID uuid.UUID, input payouts.RequestPayoutInput) (*payouts.PayoutResult, error) {
	if s.requestFn != nil {
		return s.requestFn(ctx, userID, input)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not stubbed")
}

func (s *stubPayoutService) ConnectAccount(ctx context.Context, userID uuid.UUID, input payouts.ConnectAccountInput) (*payouts.ConnectLink, error) {
	if s.connectFn != nil {
		return s.connectFn(ctx, userID, input)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not stubbed")
}

func (s *stubPayoutService) AccountStatus(ctx context.Context, userID uuid.UUID) (*payouts.AccountStatus, error) {
	if s.statusFn != nil {
		return s.statusFn(ctx, userID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not stubbed")
}

func TestRequestPayoutCompleted(t *testing.T) {
	userID := uuid.New()
	svc := &stubPayoutService{
		requestFn: func(ctx context.Context, uid uuid.UUID, input payouts.RequestPayoutInput) (*payouts.PayoutResult, error) {
			if uid != userID {
				t.Fatalf("unexpected user id %s", uid)
			}
			if input.AmountCents != 5000 {
				t.Fatalf("unexpected amount %d", input.AmountCents)
			}
			return &payouts.PayoutResult{
				Payout: &models.Payout{
					ID:          uuid.New(),
					UserID:      uid,
					AmountCents: 5000,
					Status:      enums.PayoutStatusCompleted,
				},
				RemainingBalanceCents: 2500,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts", strings.NewReader(`{"amount":5000}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	RequestPayout(svc, nil, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data struct {
			Message               string `json:"message"`
			RemainingBalanceCents int64  `json:"remaining_balance_cents"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Message != "Payout completed" {
		t.Fatalf("unexpected message %q", envelope.Data.Message)
	}
	if envelope.Data.RemainingBalanceCents != 2500 {
		t.Fatalf("unexpected remaining balance %d", envelope.Data.RemainingBalanceCents)
	}
}

func TestRequestPayoutFailedKeepsBalanceMessage(t *testing.T) {
	svc := &stubPayoutService{
		requestFn: func(ctx context.Context, uid uuid.UUID, input payouts.RequestPayoutInput) (*payouts.PayoutResult, error) {
			reason := "transfers disabled"
			return &payouts.PayoutResult{
				Payout: &models.Payout{
					ID:            uuid.New(),
					UserID:        uid,
					AmountCents:   input.AmountCents,
					Status:        enums.PayoutStatusFailed,
					FailureReason: &reason,
				},
				RemainingBalanceCents: 9000,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts", strings.NewReader(`{"amount":9000}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	RequestPayout(svc, nil, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "balance was not affected") {
		t.Fatalf("expected balance-intact message, got %s", resp.Body.String())
	}
}

func TestRequestPayoutRejectsNonPositiveAmount(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts", strings.NewReader(`{"amount":0}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	RequestPayout(&stubPayoutService{}, nil, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestRequestPayoutPropagatesPreconditionDetails(t *testing.T) {
	svc := &stubPayoutService{
		requestFn: func(ctx context.Context, uid uuid.UUID, input payouts.RequestPayoutInput) (*payouts.PayoutResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout below minimum").WithDetails(map[string]any{
				"reason":          payouts.ReasonMinimumNotMet,
				"minimum_cents":   1000,
				"requested_cents": input.AmountCents,
			})
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts", strings.NewReader(`{"amount":500}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	RequestPayout(svc, nil, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), payouts.ReasonMinimumNotMet) {
		t.Fatalf("expected precondition reason in body, got %s", resp.Body.String())
	}
}

func TestRequestPayoutRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts", strings.NewReader(`{"amount":5000}`))
	resp := httptest.NewRecorder()
	RequestPayout(&stubPayoutService{}, nil, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestConnectPayoutAccount(t *testing.T) {
	svc := &stubPayoutService{
		connectFn: func(ctx context.Context, uid uuid.UUID, input payouts.ConnectAccountInput) (*payouts.ConnectLink, error) {
			if input.RefreshURL != "https://app.toolyard.dev/payouts/refresh" {
				t.Fatalf("unexpected refresh url %s", input.RefreshURL)
			}
			return &payouts.ConnectLink{
				URL:       "https://connect.stripe.com/setup/s/abc",
				ExpiresAt: time.Now().Add(5 * time.Minute),
			}, nil
		},
	}

	body := `{"refresh_url":"https://app.toolyard.dev/payouts/refresh","return_url":"https://app.toolyard.dev/payouts/return"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts/connect", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	ConnectPayoutAccount(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "connect.stripe.com") {
		t.Fatalf("expected onboarding url in body, got %s", resp.Body.String())
	}
}

func TestConnectPayoutAccountRejectsBadURLs(t *testing.T) {
	body := `{"refresh_url":"not-a-url","return_url":"https://app.toolyard.dev/payouts/return"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts/connect", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	ConnectPayoutAccount(&stubPayoutService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestPayoutAccountStatus(t *testing.T) {
	svc := &stubPayoutService{
		statusFn: func(ctx context.Context, uid uuid.UUID) (*payouts.AccountStatus, error) {
			return &payouts.AccountStatus{
				Connected:       true,
				StripeAccountID: "acct_123",
				PayoutsEnabled:  true,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payouts/account", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	PayoutAccountStatus(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var envelope struct {
		Data payouts.AccountStatus `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Connected || envelope.Data.StripeAccountID != "acct_123" {
		t.Fatalf("unexpected status payload %+v", envelope.Data)
	}
}

func TestListPayoutsParsesQuery(t *testing.T) {
	userID := uuid.New()
	var captured ledger.ListPayoutsParams
	svc := &stubLedgerService{
		payoutsFn: func(ctx context.Context, params ledger.ListPayoutsParams) (*ledger.PayoutPage, error) {
			captured = params
			return &ledger.PayoutPage{Items: []models.Payout{{ID: uuid.New(), UserID: userID}}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payouts?limit=10&status=completed&cursor=abc", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	ListPayouts(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.UserID != userID {
		t.Fatalf("user not scoped, got %s", captured.UserID)
	}
	if captured.Limit != 10 || captured.Cursor != "abc" {
		t.Fatalf("query not forwarded: %+v", captured)
	}
	if captured.Status == nil || *captured.Status != enums.PayoutStatusCompleted {
		t.Fatalf("status filter not forwarded: %v", captured.Status)
	}
}

func TestListPayoutsRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payouts?status=sideways", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	ListPayouts(&stubLedgerService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAdminListPayoutsParsesFilters(t *testing.T) {
	target := uuid.New()
	var captured ledger.AdminListPayoutsParams
	svc := &stubLedgerService{
		allPayoutsFn: func(ctx context.Context, params ledger.AdminListPayoutsParams) (*ledger.PayoutPage, error) {
			captured = params
			return &ledger.PayoutPage{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/payouts?user_id="+target.String()+"&status=failed", nil)
	resp := httptest.NewRecorder()
	AdminListPayouts(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if captured.UserID == nil || *captured.UserID != target {
		t.Fatalf("user filter not forwarded: %v", captured.UserID)
	}
	if captured.Status == nil || *captured.Status != enums.PayoutStatusFailed {
		t.Fatalf("status filter not forwarded: %v", captured.Status)
	}
}

func TestAdminListPayoutsRejectsBadUserFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/payouts?user_id=nope", nil)
	resp := httptest.NewRecorder()
	AdminListPayouts(&stubLedgerService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
