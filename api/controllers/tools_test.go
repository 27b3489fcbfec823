package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/api/middleware"
	"github.com/toolyard/toolyard-backend/internal/access"
	"github.com/toolyard/toolyard-backend/internal/tools"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
)

type stubToolService struct {
	createFn  func(ctx context.Context, creatorID uuid.UUID, input tools.CreateToolInput) (*tools.ToolDTO, error)
	updateFn  func(ctx context.Context, userID, toolID uuid.UUID, input tools.UpdateToolInput) (*tools.ToolDTO, error)
	publishFn func(ctx context.Context, userID, toolID uuid.UUID, published bool) (*tools.ToolDTO, error)
	bySlugFn  func(ctx context.Context, slug string) (*tools.ToolDTO, error)
	listFn    func(ctx context.Context, input tools.ListToolsInput) (*tools.ToolListResult, error)
}

func (s *stubToolService) CreateTool(ctx context.Context, creatorID uuid.UUID, input tools.CreateToolInput) (*tools.ToolDTO, error) {
	if s.createFn != nil {
		return s.createFn(ctx, creatorID, input)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "create not stubbed")
}

func (s *stubToolService) UpdateTool(ctx context.Context, userID, toolID uuid.UUID, input tools.UpdateToolInput) (*tools.ToolDTO, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, userID, toolID, input)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "update not stubbed")
}

func (s *stubToolService) SetPublished(ctx context.Context, userID, toolID uuid.UUID, published bool) (*tools.ToolDTO, error) {
	if s.publishFn != nil {
		return s.publishFn(ctx, userID, toolID, published)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "publish not stubbed")
}

func (s *stubToolService) DeleteTool(ctx context.Context, userID, toolID uuid.UUID) error {
	return nil
}

func (s *stubToolService) GetTool(ctx context.Context, toolID uuid.UUID) (*tools.ToolDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tool not found")
}

func (s *stubToolService) GetToolBySlug(ctx context.Context, slug string) (*tools.ToolDTO, error) {
	if s.bySlugFn != nil {
		return s.bySlugFn(ctx, slug)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tool not found")
}

func (s *stubToolService) ListTools(ctx context.Context, input tools.ListToolsInput) (*tools.ToolListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, input)
	}
	return &tools.ToolListResult{}, nil
}

func (s *stubToolService) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]tools.ToolDTO, error) {
	return nil, nil
}

type stubAccessService struct {
	decision *access.Decision
	err      error
	userID   uuid.UUID
	toolID   uuid.UUID
}

func (s *stubAccessService) CheckAccess(ctx context.Context, userID, toolID uuid.UUID) (*access.Decision, error) {
	s.userID = userID
	s.toolID = toolID
	if s.err != nil {
		return nil, s.err
	}
	return s.decision, nil
}

func publishedDTO() *tools.ToolDTO {
	return &tools.ToolDTO{
		ID:          uuid.New(),
		CreatorID:   uuid.New(),
		Name:        "Crate Mapper",
		Slug:        "crate-mapper",
		PriceCents:  2500,
		Currency:    "usd",
		PricingType: enums.PricingTypeOneTime,
		Published:   true,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func slugRequest(method, target, slug string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("slug", slug)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestListToolsParsesFilters(t *testing.T) {
	var captured tools.ListToolsInput
	svc := &stubToolService{
		listFn: func(ctx context.Context, input tools.ListToolsInput) (*tools.ToolListResult, error) {
			captured = input
			return &tools.ToolListResult{Tools: []tools.ToolDTO{*publishedDTO()}, NextCursor: "next"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/public/tools?limit=10&pricing_type=one_time&tag=Audio&price_max_cents=5000&q=mapper", nil)
	resp := httptest.NewRecorder()
	ListTools(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Pagination.Limit != 10 {
		t.Fatalf("limit not forwarded, got %d", captured.Pagination.Limit)
	}
	if captured.Filters.PricingType == nil || *captured.Filters.PricingType != enums.PricingTypeOneTime {
		t.Fatal("pricing_type filter not parsed")
	}
	if captured.Filters.PriceMaxCents == nil || *captured.Filters.PriceMaxCents != 5000 {
		t.Fatal("price_max_cents filter not parsed")
	}
	if captured.Filters.Tag != "Audio" || captured.Filters.Query != "mapper" {
		t.Fatalf("tag/q filters not forwarded: %+v", captured.Filters)
	}

	var envelope struct {
		Data toolListResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Tools) != 1 || envelope.Data.NextCursor != "next" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
	if envelope.Data.Tools[0].Price != "25.00" {
		t.Fatalf("expected display price 25.00, got %q", envelope.Data.Tools[0].Price)
	}
}

func TestListToolsRejectsBadPricingType(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/public/tools?pricing_type=weekly", nil)
	resp := httptest.NewRecorder()
	ListTools(&stubToolService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestToolDetailHidesUnpublished(t *testing.T) {
	dto := publishedDTO()
	dto.Published = false
	svc := &stubToolService{
		bySlugFn: func(ctx context.Context, slug string) (*tools.ToolDTO, error) { return dto, nil },
	}

	req := slugRequest(http.MethodGet, "/api/public/tools/crate-mapper", "crate-mapper")
	resp := httptest.NewRecorder()
	ToolDetail(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unpublished tool, got %d", resp.Code)
	}
}

func TestToolDetailCreatorSeesUnpublished(t *testing.T) {
	dto := publishedDTO()
	dto.Published = false
	svc := &stubToolService{
		bySlugFn: func(ctx context.Context, slug string) (*tools.ToolDTO, error) { return dto, nil },
	}

	req := slugRequest(http.MethodGet, "/api/public/tools/crate-mapper", "crate-mapper")
	req = req.WithContext(middleware.WithUserID(req.Context(), dto.CreatorID.String()))
	resp := httptest.NewRecorder()
	ToolDetail(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for the creator, got %d", resp.Code)
	}
}

func TestToolAccessAnonymous(t *testing.T) {
	dto := publishedDTO()
	svc := &stubToolService{
		bySlugFn: func(ctx context.Context, slug string) (*tools.ToolDTO, error) { return dto, nil },
	}
	gate := &stubAccessService{
		decision: &access.Decision{HasAccess: false, Reason: enums.AccessReasonNotAuthenticated},
	}

	req := slugRequest(http.MethodGet, "/api/public/tools/crate-mapper/access", "crate-mapper")
	resp := httptest.NewRecorder()
	ToolAccess(svc, gate, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if gate.userID != uuid.Nil {
		t.Fatal("anonymous caller should reach the gate with a nil user id")
	}
	if gate.toolID != dto.ID {
		t.Fatal("tool id not resolved from the slug")
	}

	var envelope struct {
		Data access.Decision `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.HasAccess || envelope.Data.Reason != enums.AccessReasonNotAuthenticated {
		t.Fatalf("unexpected decision %+v", envelope.Data)
	}
}

func TestCreateTool(t *testing.T) {
	creatorID := uuid.New()
	var captured tools.CreateToolInput
	svc := &stubToolService{
		createFn: func(ctx context.Context, uid uuid.UUID, input tools.CreateToolInput) (*tools.ToolDTO, error) {
			if uid != creatorID {
				t.Fatalf("creator id not forwarded, got %s", uid)
			}
			captured = input
			dto := publishedDTO()
			dto.CreatorID = uid
			dto.Name = input.Name
			return dto, nil
		},
	}

	body := `{"name":"Crate Mapper","price_cents":2500,"pricing_type":"one_time","tags":["audio"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), creatorID.String()))
	resp := httptest.NewRecorder()
	CreateTool(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.PricingType != enums.PricingTypeOneTime || captured.PriceCents != 2500 {
		t.Fatalf("pricing not forwarded: %+v", captured)
	}
}

func TestCreateToolRequiresAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	CreateTool(&stubToolService{}, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestUpdateToolFlipsPublished(t *testing.T) {
	userID := uuid.New()
	toolID := uuid.New()
	publishCalls := []bool{}

	dto := publishedDTO()
	dto.ID = toolID
	dto.CreatorID = userID

	svc := &stubToolService{
		updateFn: func(ctx context.Context, uid, tid uuid.UUID, input tools.UpdateToolInput) (*tools.ToolDTO, error) {
			return dto, nil
		},
		publishFn: func(ctx context.Context, uid, tid uuid.UUID, flag bool) (*tools.ToolDTO, error) {
			publishCalls = append(publishCalls, flag)
			unpublished := *dto
			unpublished.Published = flag
			return &unpublished, nil
		},
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/tools/"+toolID.String(), strings.NewReader(`{"published":false}`))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("toolId", toolID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	UpdateTool(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(publishCalls) != 1 || publishCalls[0] {
		t.Fatalf("expected one SetPublished(false) call, got %v", publishCalls)
	}

	var envelope struct {
		Data toolResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Published {
		t.Fatal("response should carry the unpublished state")
	}
}

func TestUpdateToolRejectsBadID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/tools/not-a-uuid", strings.NewReader(`{}`))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("toolId", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	UpdateTool(&stubToolService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
