package tools

import (
	"time"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	"github.com/toolyard/toolyard-backend/pkg/pagination"
)

// ToolDTO is the external representation of a catalog entry.
type ToolDTO struct {
	ID          uuid.UUID         `json:"id"`
	CreatorID   uuid.UUID         `json:"creator_id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	PriceCents  int64             `json:"price_cents"`
	Currency    string            `json:"currency"`
	PricingType enums.PricingType `json:"pricing_type"`
	LicenseDays *int              `json:"license_days,omitempty"`
	Tags        []string          `json:"tags"`
	Published   bool              `json:"published"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewToolDTO maps the persistence model to the transport shape.
func NewToolDTO(tool *models.Tool) *ToolDTO {
	if tool == nil {
		return nil
	}
	return &ToolDTO{
		ID:          tool.ID,
		CreatorID:   tool.CreatorID,
		Name:        tool.Name,
		Slug:        tool.Slug,
		Description: tool.Description,
		PriceCents:  tool.PriceCents,
		Currency:    tool.Currency,
		PricingType: tool.PricingType,
		LicenseDays: tool.LicenseDays,
		Tags:        tool.Tags,
		Published:   tool.Published,
		CreatedAt:   tool.CreatedAt,
		UpdatedAt:   tool.UpdatedAt,
	}
}

// CreateToolInput holds the validated payload to create a tool.
type CreateToolInput struct {
	Name        string
	Slug        string
	Description string
	PriceCents  int64
	Currency    string
	PricingType enums.PricingType
	LicenseDays *int
	Tags        []string
	Published   bool
}

// UpdateToolInput holds optional mutation values for a tool. Nil fields are
// left unchanged.
type UpdateToolInput struct {
	Name        *string
	Description *string
	PriceCents  *int64
	PricingType *enums.PricingType
	LicenseDays *int
	Tags        *[]string
}

// ToolListFilters describe the supported filter knobs for the browse endpoint.
type ToolListFilters struct {
	PricingType   *enums.PricingType `json:"pricing_type,omitempty"`
	Tag           string             `json:"tag,omitempty"`
	PriceMaxCents *int64             `json:"price_max_cents,omitempty"`
	Query         string             `json:"q,omitempty"`
}

// ListToolsInput captures the inputs needed to paginate/filter the catalog.
type ListToolsInput struct {
	Filters    ToolListFilters
	Pagination pagination.Params
	// CreatorID switches the query from the public catalog to the
	// creator's own tools, published or not.
	CreatorID *uuid.UUID
}

// ToolListResult wraps one catalog page and the next cursor.
type ToolListResult struct {
	Tools      []ToolDTO `json:"tools"`
	NextCursor string    `json:"next_cursor,omitempty"`
}
