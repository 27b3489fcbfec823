package tools

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/toolyard/toolyard-backend/pkg/db"
	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
)

// Service exposes creator catalog management and public browsing.
type Service interface {
	CreateTool(ctx context.Context, creatorID uuid.UUID, input CreateToolInput) (*ToolDTO, error)
	UpdateTool(ctx context.Context, userID, toolID uuid.UUID, input UpdateToolInput) (*ToolDTO, error)
	SetPublished(ctx context.Context, userID, toolID uuid.UUID, published bool) (*ToolDTO, error)
	DeleteTool(ctx context.Context, userID, toolID uuid.UUID) error
	GetTool(ctx context.Context, toolID uuid.UUID) (*ToolDTO, error)
	GetToolBySlug(ctx context.Context, slug string) (*ToolDTO, error)
	ListTools(ctx context.Context, input ListToolsInput) (*ToolListResult, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]ToolDTO, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	repo  *Repository
	users userLoader
}

// NewService constructs a tool catalog service.
func NewService(repo *Repository, users userLoader) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tool repository required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user repository required")
	}
	return &service{repo: repo, users: users}, nil
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Slugify folds a display name into a URL-safe slug.
func Slugify(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := true
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, tag := range tags {
		cleaned := strings.ToLower(strings.TrimSpace(tag))
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, cleaned)
	}
	return out
}

func validatePricing(pricingType enums.PricingType, priceCents int64, licenseDays *int) error {
	if !pricingType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid pricing type")
	}
	if priceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	switch pricingType {
	case enums.PricingTypeFree:
		if priceCents != 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "free tools must have a zero price")
		}
	default:
		if priceCents == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "paid tools require a positive price")
		}
	}
	if licenseDays != nil && *licenseDays <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "license_days must be positive when set")
	}
	return nil
}

// CreateTool validates and inserts a catalog entry owned by the creator.
func (s *service) CreateTool(ctx context.Context, creatorID uuid.UUID, input CreateToolInput) (*ToolDTO, error) {
	if creatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator id required")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tool name required")
	}

	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if !slugPattern.MatchString(slug) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits, and dashes")
	}

	if err := validatePricing(input.PricingType, input.PriceCents, input.LicenseDays); err != nil {
		return nil, err
	}

	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "usd"
	}

	tool := &models.Tool{
		CreatorID:   creatorID,
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(input.Description),
		PriceCents:  input.PriceCents,
		Currency:    currency,
		PricingType: input.PricingType,
		LicenseDays: input.LicenseDays,
		Tags:        normalizeTags(input.Tags),
		Published:   input.Published,
	}

	created, err := s.repo.Create(ctx, tool)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_tools_slug") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert tool")
	}
	return NewToolDTO(created), nil
}

// UpdateTool applies the provided fields after an ownership check.
func (s *service) UpdateTool(ctx context.Context, userID, toolID uuid.UUID, input UpdateToolInput) (*ToolDTO, error) {
	tool, err := s.loadOwnedTool(ctx, userID, toolID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tool name required")
		}
		tool.Name = name
	}
	if input.Description != nil {
		tool.Description = strings.TrimSpace(*input.Description)
	}
	if input.PriceCents != nil {
		tool.PriceCents = *input.PriceCents
	}
	if input.PricingType != nil {
		tool.PricingType = *input.PricingType
	}
	if input.LicenseDays != nil {
		tool.LicenseDays = input.LicenseDays
	}
	if input.Tags != nil {
		tool.Tags = normalizeTags(*input.Tags)
	}

	if err := validatePricing(tool.PricingType, tool.PriceCents, tool.LicenseDays); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, tool)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update tool")
	}
	return NewToolDTO(updated), nil
}

// SetPublished flips catalog visibility.
func (s *service) SetPublished(ctx context.Context, userID, toolID uuid.UUID, published bool) (*ToolDTO, error) {
	tool, err := s.loadOwnedTool(ctx, userID, toolID)
	if err != nil {
		return nil, err
	}

	tool.Published = published
	updated, err := s.repo.Update(ctx, tool)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update tool")
	}
	return NewToolDTO(updated), nil
}

// DeleteTool removes the catalog entry. Past purchases keep their own copy
// of the price split, so deletion does not touch the ledger.
func (s *service) DeleteTool(ctx context.Context, userID, toolID uuid.UUID) error {
	if _, err := s.loadOwnedTool(ctx, userID, toolID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, toolID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete tool")
	}
	return nil
}

func (s *service) GetTool(ctx context.Context, toolID uuid.UUID) (*ToolDTO, error) {
	tool, err := s.repo.FindByID(ctx, toolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tool not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tool")
	}
	return NewToolDTO(tool), nil
}

func (s *service) GetToolBySlug(ctx context.Context, slug string) (*ToolDTO, error) {
	tool, err := s.repo.FindBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tool not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tool")
	}
	return NewToolDTO(tool), nil
}

func (s *service) ListTools(ctx context.Context, input ListToolsInput) (*ToolListResult, error) {
	rows, next, err := s.repo.List(ctx, toolListQuery{
		Pagination: input.Pagination,
		Filters:    input.Filters,
		CreatorID:  input.CreatorID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tools")
	}

	dtos := make([]ToolDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *NewToolDTO(&rows[i]))
	}
	return &ToolListResult{Tools: dtos, NextCursor: next}, nil
}

func (s *service) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]ToolDTO, error) {
	if creatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator id required")
	}
	rows, err := s.repo.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list creator tools")
	}
	dtos := make([]ToolDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *NewToolDTO(&rows[i]))
	}
	return dtos, nil
}

// loadOwnedTool fetches the tool and enforces that the caller is its creator
// or a platform admin.
func (s *service) loadOwnedTool(ctx context.Context, userID, toolID uuid.UUID) (*models.Tool, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	tool, err := s.repo.FindByID(ctx, toolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tool not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tool")
	}

	if tool.CreatorID == userID {
		return tool, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user != nil && user.Role == enums.UserRoleAdmin {
		return tool, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the tool's creator can modify it")
}
