package tools

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/pagination"
)

// Repository wraps catalog persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a tool repository with the provided gorm handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a tool row.
func (r *Repository) Create(ctx context.Context, tool *models.Tool) (*models.Tool, error) {
	if tool.ID == uuid.Nil {
		tool.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(tool).Error; err != nil {
		return nil, err
	}
	return tool, nil
}

// Update persists all mutable columns of the tool.
func (r *Repository) Update(ctx context.Context, tool *models.Tool) (*models.Tool, error) {
	if err := r.db.WithContext(ctx).Save(tool).Error; err != nil {
		return nil, err
	}
	return tool, nil
}

// FindByID loads a tool; callers translate gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tool, error) {
	var tool models.Tool
	if err := r.db.WithContext(ctx).First(&tool, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tool, nil
}

// FindBySlug loads a tool by its unique slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Tool, error) {
	var tool models.Tool
	if err := r.db.WithContext(ctx).First(&tool, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &tool, nil
}

// ListByCreator returns all of a creator's tools, newest first.
func (r *Repository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Tool, error) {
	var rows []models.Tool
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes the tool row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Tool{}, "id = ?", id).Error
}

type toolListQuery struct {
	Pagination pagination.Params
	Filters    ToolListFilters
	CreatorID  *uuid.UUID
}

// List pages through the catalog. Without a creator filter only published
// tools are visible.
func (r *Repository) List(ctx context.Context, query toolListQuery) ([]models.Tool, string, error) {
	pageSize := pagination.NormalizeLimit(query.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(query.Pagination.Limit)
	if limitWithBuffer <= pageSize {
		limitWithBuffer = pageSize + 1
	}

	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).Model(&models.Tool{})

	if query.CreatorID != nil {
		qb = qb.Where("creator_id = ?", *query.CreatorID)
	} else {
		qb = qb.Where("published = ?", true)
	}

	filter := query.Filters
	if filter.PricingType != nil {
		qb = qb.Where("pricing_type = ?", *filter.PricingType)
	}
	if filter.PriceMaxCents != nil {
		qb = qb.Where("price_cents <= ?", *filter.PriceMaxCents)
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		qb = qb.Where("? = ANY(tags)", strings.ToLower(tag))
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(name) LIKE ? OR LOWER(slug) LIKE ?)", pattern, pattern)
	}

	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Tool
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return rows, nextCursor, nil
}
