package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/toolyard/toolyard-backend/pkg/enums"
)

// Tool is a creator-published catalog entry. PriceCents of zero with
// PricingTypeFree means anyone may run it without a purchase.
type Tool struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CreatorID   uuid.UUID         `gorm:"column:creator_id;type:uuid;not null;index"`
	Name        string            `gorm:"column:name;not null"`
	Slug        string            `gorm:"column:slug;not null;uniqueIndex:ux_tools_slug"`
	Description string            `gorm:"column:description;not null;default:''"`
	PriceCents  int64             `gorm:"column:price_cents;not null;default:0"`
	Currency    string            `gorm:"column:currency;not null;default:'usd'"`
	PricingType enums.PricingType `gorm:"column:pricing_type;type:pricing_type;not null;default:'free'"`
	LicenseDays *int              `gorm:"column:license_days"`
	Tags        pq.StringArray    `gorm:"column:tags;type:text[];default:ARRAY[]::text[]"`
	Published   bool              `gorm:"column:published;not null;default:false"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
