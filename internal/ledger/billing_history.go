package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	"github.com/toolyard/toolyard-backend/pkg/pagination"
)

// BillingHistoryRepository stores user-facing receipt lines. Rows are
// append-only.
type BillingHistoryRepository interface {
	WithTx(tx *gorm.DB) BillingHistoryRepository
	Insert(ctx context.Context, entry *models.BillingHistory) error
	FindByStripeObject(ctx context.Context, entryType enums.BillingHistoryType, status enums.BillingHistoryStatus, stripeObjectID string) (*models.BillingHistory, error)
	List(ctx context.Context, params ListBillingHistoryQuery) ([]models.BillingHistory, *pagination.Cursor, error)
}

// ListBillingHistoryQuery configures billing history list queries.
type ListBillingHistoryQuery struct {
	UserID uuid.UUID
	Limit  int
	Cursor *pagination.Cursor
	Type   *enums.BillingHistoryType
}

type billingHistoryRepository struct {
	db *gorm.DB
}

// NewBillingHistoryRepository returns a repository bound to the provided database.
func NewBillingHistoryRepository(db *gorm.DB) BillingHistoryRepository {
	return &billingHistoryRepository{db: db}
}

func (r *billingHistoryRepository) WithTx(tx *gorm.DB) BillingHistoryRepository {
	if tx == nil {
		return r
	}
	return &billingHistoryRepository{db: tx}
}

func (r *billingHistoryRepository) Insert(ctx context.Context, entry *models.BillingHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByStripeObject returns the latest line recorded for a gateway object in
// the given type/status, or nil when none exists. The webhook reconciler uses
// it to skip re-writing a receipt line for a replayed invoice event.
func (r *billingHistoryRepository) FindByStripeObject(ctx context.Context, entryType enums.BillingHistoryType, status enums.BillingHistoryStatus, stripeObjectID string) (*models.BillingHistory, error) {
	if stripeObjectID == "" {
		return nil, nil
	}
	var entry models.BillingHistory
	err := r.db.WithContext(ctx).
		Where("type = ? AND status = ? AND stripe_object_id = ?", entryType, status, stripeObjectID).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *billingHistoryRepository) List(ctx context.Context, params ListBillingHistoryQuery) ([]models.BillingHistory, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.BillingHistory{}).
		Where("user_id = ?", params.UserID)
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var entries []models.BillingHistory
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[limit-1]
		return entries, &pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		}, nil
	}

	return entries, nil, nil
}
