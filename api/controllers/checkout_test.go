package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/api/middleware"
	"github.com/toolyard/toolyard-backend/internal/checkout"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
)

type stubCheckoutService struct {
	result   *checkout.SessionResult
	err      error
	buyerID  uuid.UUID
	captured checkout.StartCheckoutInput
}

func (s *stubCheckoutService) StartToolCheckout(ctx context.Context, buyerID uuid.UUID, input checkout.StartCheckoutInput) (*checkout.SessionResult, error) {
	s.buyerID = buyerID
	s.captured = input
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestStartCheckout(t *testing.T) {
	buyerID := uuid.New()
	svc := &stubCheckoutService{
		result: &checkout.SessionResult{SessionID: "cs_1", SessionURL: "https://checkout.stripe.com/cs_1"},
	}

	body := `{"tool_slug":"crate-mapper","success_url":"https://toolyard.io/done","cancel_url":"https://toolyard.io/cancel"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), buyerID.String()))
	resp := httptest.NewRecorder()
	StartCheckout(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.buyerID != buyerID {
		t.Fatal("buyer id not forwarded from the request context")
	}
	if svc.captured.ToolSlug != "crate-mapper" {
		t.Fatalf("unexpected slug %q", svc.captured.ToolSlug)
	}

	var envelope struct {
		Data checkout.SessionResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.SessionURL != "https://checkout.stripe.com/cs_1" {
		t.Fatalf("unexpected session url %q", envelope.Data.SessionURL)
	}
}

func TestStartCheckoutRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	StartCheckout(&stubCheckoutService{}, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestStartCheckoutRejectsBadBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader("{"))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	StartCheckout(&stubCheckoutService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStartCheckoutConflictPassesThrough(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeConflict, "an active license for this tool already exists")}

	body := `{"tool_slug":"crate-mapper","success_url":"https://a","cancel_url":"https://b"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	StartCheckout(svc, testLogger())(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}
