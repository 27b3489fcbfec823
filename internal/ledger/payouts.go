package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	"github.com/toolyard/toolyard-backend/pkg/pagination"
)

// ErrPayoutNotPending is returned when a terminal transition targets a payout
// that already completed or failed.
var ErrPayoutNotPending = fmt.Errorf("payout is not pending")

// PayoutRepository persists withdrawal attempts and their single terminal
// transition.
type PayoutRepository interface {
	WithTx(tx *gorm.DB) PayoutRepository
	Insert(ctx context.Context, payout *models.Payout) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, transferID string, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	List(ctx context.Context, params ListPayoutsQuery) ([]models.Payout, *pagination.Cursor, error)
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
}

// ListPayoutsQuery configures payout history queries. A nil UserID lists
// every user's payouts (admin views); Status narrows to one outcome.
type ListPayoutsQuery struct {
	UserID *uuid.UUID
	Status *enums.PayoutStatus
	Limit  int
	Cursor *pagination.Cursor
}

type payoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository returns a repository bound to the provided database.
func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepository{db: db}
}

func (r *payoutRepository) WithTx(tx *gorm.DB) PayoutRepository {
	if tx == nil {
		return r
	}
	return &payoutRepository{db: tx}
}

func (r *payoutRepository) Insert(ctx context.Context, payout *models.Payout) error {
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	if payout.Status == "" {
		payout.Status = enums.PayoutStatusPending
	}
	return r.db.WithContext(ctx).Create(payout).Error
}

// FindByID returns nil without error when the payout does not exist.
func (r *payoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).First(&payout, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

// MarkCompleted transitions pending -> completed, recording the gateway
// transfer. Any other starting status returns ErrPayoutNotPending.
func (r *payoutRepository) MarkCompleted(ctx context.Context, id uuid.UUID, transferID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", id, enums.PayoutStatusPending).
		Updates(map[string]any{
			"status":             enums.PayoutStatusCompleted,
			"stripe_transfer_id": transferID,
			"completed_at":       at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPayoutNotPending
	}
	return nil
}

// MarkFailed transitions pending -> failed with the gateway's reason. The
// creator's balance is untouched by this transition.
func (r *payoutRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", id, enums.PayoutStatusPending).
		Updates(map[string]any{
			"status":         enums.PayoutStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPayoutNotPending
	}
	return nil
}

func (r *payoutRepository) List(ctx context.Context, params ListPayoutsQuery) ([]models.Payout, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Payout{})
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var payouts []models.Payout
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&payouts).Error; err != nil {
		return nil, nil, err
	}

	if len(payouts) > limit {
		payouts = payouts[:limit]
		last := payouts[limit-1]
		return payouts, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}

	return payouts, nil, nil
}

func (r *payoutRepository) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}
