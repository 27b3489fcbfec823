package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/toolyard/toolyard-backend/api/middleware"
	"github.com/toolyard/toolyard-backend/api/responses"
	"github.com/toolyard/toolyard-backend/api/validators"
	"github.com/toolyard/toolyard-backend/internal/access"
	"github.com/toolyard/toolyard-backend/internal/tools"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/logger"
	"github.com/toolyard/toolyard-backend/pkg/pagination"
)

type toolResponse struct {
	tools.ToolDTO
	// Price is the display rendering of PriceCents, e.g. "25.00".
	Price string `json:"price"`
}

type toolListResponse struct {
	Tools      []toolResponse `json:"tools"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type createToolRequest struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price_cents"`
	Currency    string   `json:"currency"`
	PricingType string   `json:"pricing_type"`
	LicenseDays *int     `json:"license_days"`
	Tags        []string `json:"tags"`
	Published   bool     `json:"published"`
}

type updateToolRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	PriceCents  *int64    `json:"price_cents"`
	PricingType *string   `json:"pricing_type"`
	LicenseDays *int      `json:"license_days"`
	Tags        *[]string `json:"tags"`
	Published   *bool     `json:"published"`
}

func toolToResponse(dto *tools.ToolDTO) toolResponse {
	return toolResponse{
		ToolDTO: *dto,
		Price:   decimal.NewFromInt(dto.PriceCents).Shift(-2).StringFixed(2),
	}
}

func toolsToResponse(dtos []tools.ToolDTO) []toolResponse {
	result := make([]toolResponse, 0, len(dtos))
	for i := range dtos {
		result = append(result, toolToResponse(&dtos[i]))
	}
	return result
}

// ListTools serves the public catalog: published tools only, cursor-paginated,
// filterable by pricing type, tag, price ceiling, and a name search.
func ListTools(svc tools.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tool service unavailable"))
			return
		}

		input := tools.ListToolsInput{}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input.Pagination = pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("pricing_type")); raw != "" {
			parsed, err := enums.ParsePricingType(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pricing_type filter"))
				return
			}
			input.Filters.PricingType = &parsed
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("price_max_cents")); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed < 0 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price_max_cents must be a non-negative integer"))
				return
			}
			input.Filters.PriceMaxCents = &parsed
		}
		input.Filters.Tag = strings.TrimSpace(r.URL.Query().Get("tag"))
		input.Filters.Query = validators.SanitizeString(r.URL.Query().Get("q"), 120)

		page, err := svc.ListTools(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toolListResponse{
			Tools:      toolsToResponse(page.Tools),
			NextCursor: page.NextCursor,
		})
	}
}

// MyTools returns the caller's own catalog entries, published or not.
func MyTools(svc tools.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tool service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		dtos, err := svc.ListByCreator(ctx, uid)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toolListResponse{Tools: toolsToResponse(dtos)})
	}
}

// ToolDetail returns one tool by slug. Unpublished tools stay invisible to
// everyone but their creator.
func ToolDetail(svc tools.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tool service unavailable"))
			return
		}

		dto, err := svc.GetToolBySlug(ctx, chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !dto.Published && dto.CreatorID != optionalRequestUserID(r) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "tool not found"))
			return
		}
		responses.WriteSuccess(w, toolToResponse(dto))
	}
}

// ToolAccess answers whether the caller may run the tool. Anonymous callers
// get a verdict too (free tools are open to them).
func ToolAccess(svc tools.Service, gate access.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || gate == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "access service unavailable"))
			return
		}

		uid := optionalRequestUserID(r)

		dto, err := svc.GetToolBySlug(ctx, chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !dto.Published && dto.CreatorID != uid {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "tool not found"))
			return
		}

		decision, err := gate.CheckAccess(ctx, uid, dto.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}

// CreateTool registers a catalog entry owned by the caller.
func CreateTool(svc tools.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tool service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload createToolRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		pricingType := enums.PricingTypeFree
		if raw := strings.TrimSpace(payload.PricingType); raw != "" {
			pricingType, err = enums.ParsePricingType(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pricing_type"))
				return
			}
		}

		dto, err := svc.CreateTool(ctx, uid, tools.CreateToolInput{
			Name:        payload.Name,
			Slug:        payload.Slug,
			Description: payload.Description,
			PriceCents:  payload.PriceCents,
			Currency:    payload.Currency,
			PricingType: pricingType,
			LicenseDays: payload.LicenseDays,
			Tags:        payload.Tags,
			Published:   payload.Published,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toolToResponse(dto))
	}
}

// UpdateTool patches a tool's fields; a `published` value flips catalog
// visibility in the same request. Ownership is enforced by the service.
func UpdateTool(svc tools.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tool service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		toolID, err := uuid.Parse(chi.URLParam(r, "toolId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tool id"))
			return
		}

		var payload updateToolRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := tools.UpdateToolInput{
			Name:        payload.Name,
			Description: payload.Description,
			PriceCents:  payload.PriceCents,
			LicenseDays: payload.LicenseDays,
			Tags:        payload.Tags,
		}
		if payload.PricingType != nil {
			parsed, err := enums.ParsePricingType(strings.TrimSpace(*payload.PricingType))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pricing_type"))
				return
			}
			input.PricingType = &parsed
		}

		dto, err := svc.UpdateTool(ctx, uid, toolID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if payload.Published != nil && dto.Published != *payload.Published {
			dto, err = svc.SetPublished(ctx, uid, toolID, *payload.Published)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		responses.WriteSuccess(w, toolToResponse(dto))
	}
}

// DeleteTool removes a catalog entry. Existing purchases keep working; the
// ledger never references the deleted row by anything but id.
func DeleteTool(svc tools.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tool service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		toolID, err := uuid.Parse(chi.URLParam(r, "toolId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tool id"))
			return
		}

		if err := svc.DeleteTool(ctx, uid, toolID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

// optionalRequestUserID returns the authenticated user id or uuid.Nil for
// anonymous requests passing through OptionalAuth.
func optionalRequestUserID(r *http.Request) uuid.UUID {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil
	}
	uid, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return uid
}
