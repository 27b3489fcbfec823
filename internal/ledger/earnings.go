package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
)

// ErrInsufficientPending is returned when a debit would push the pending
// balance negative. Under the row lock this indicates a caller bug rather
// than a race, but the guard keeps the invariant either way.
var ErrInsufficientPending = fmt.Errorf("pending earnings insufficient for debit")

// EarningsRepository maintains the per-creator running balance.
type EarningsRepository interface {
	WithTx(tx *gorm.DB) EarningsRepository
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.CreatorEarnings, error)
	LockByUserID(ctx context.Context, userID uuid.UUID) (*models.CreatorEarnings, error)
	CreateIfAbsent(ctx context.Context, userID uuid.UUID) (*models.CreatorEarnings, error)
	Credit(ctx context.Context, userID uuid.UUID, amountCents int64) error
	Debit(ctx context.Context, userID uuid.UUID, amountCents int64, at time.Time) error
	SetStripeAccount(ctx context.Context, userID uuid.UUID, accountID string) error
	SetPayoutsEnabledByAccount(ctx context.Context, accountID string, enabled bool) (int64, error)
	FindByStripeAccountID(ctx context.Context, accountID string) (*models.CreatorEarnings, error)
}

type earningsRepository struct {
	db *gorm.DB
}

// NewEarningsRepository returns a repository bound to the provided database.
func NewEarningsRepository(db *gorm.DB) EarningsRepository {
	return &earningsRepository{db: db}
}

func (r *earningsRepository) WithTx(tx *gorm.DB) EarningsRepository {
	if tx == nil {
		return r
	}
	return &earningsRepository{db: tx}
}

// FindByUserID returns nil without error when the creator has no ledger row yet.
func (r *earningsRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.CreatorEarnings, error) {
	var earnings models.CreatorEarnings
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&earnings).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &earnings, nil
}

// LockByUserID reads the row under SELECT ... FOR UPDATE. Must run inside a
// transaction; concurrent payout attempts for the same creator serialize here.
func (r *earningsRepository) LockByUserID(ctx context.Context, userID uuid.UUID) (*models.CreatorEarnings, error) {
	var earnings models.CreatorEarnings
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&earnings).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &earnings, nil
}

// CreateIfAbsent makes sure a zero-balance row exists for the creator and
// returns the current row. Safe under concurrent first sales.
func (r *earningsRepository) CreateIfAbsent(ctx context.Context, userID uuid.UUID) (*models.CreatorEarnings, error) {
	row := models.CreatorEarnings{
		ID:     uuid.New(),
		UserID: userID,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUserID(ctx, userID)
}

// Credit adds a sale's creator share to both running totals and bumps the
// sale counter. Totals only ever grow.
func (r *earningsRepository) Credit(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	if amountCents < 0 {
		return fmt.Errorf("credit amount must be non-negative")
	}
	res := r.db.WithContext(ctx).
		Model(&models.CreatorEarnings{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"total_earnings_cents":   gorm.Expr("total_earnings_cents + ?", amountCents),
			"pending_earnings_cents": gorm.Expr("pending_earnings_cents + ?", amountCents),
			"lifetime_sales":         gorm.Expr("lifetime_sales + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no earnings row for user %s", userID)
	}
	return nil
}

// Debit removes a completed payout's amount from the pending balance and
// stamps the payout time. The guard clause refuses to overdraw.
func (r *earningsRepository) Debit(ctx context.Context, userID uuid.UUID, amountCents int64, at time.Time) error {
	if amountCents <= 0 {
		return fmt.Errorf("debit amount must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.CreatorEarnings{}).
		Where("user_id = ? AND pending_earnings_cents >= ?", userID, amountCents).
		Updates(map[string]any{
			"pending_earnings_cents": gorm.Expr("pending_earnings_cents - ?", amountCents),
			"last_payout_at":         at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientPending
	}
	return nil
}

// SetStripeAccount records the connected gateway account for the creator.
func (r *earningsRepository) SetStripeAccount(ctx context.Context, userID uuid.UUID, accountID string) error {
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}
	res := r.db.WithContext(ctx).
		Model(&models.CreatorEarnings{}).
		Where("user_id = ?", userID).
		Update("stripe_account_id", accountID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no earnings row for user %s", userID)
	}
	return nil
}

// SetPayoutsEnabledByAccount flips the transfer capability flag for whichever
// creator owns the gateway account. Returns rows affected; zero means the
// account is not linked locally, which account.updated deliveries for
// unrelated accounts make routine.
func (r *earningsRepository) SetPayoutsEnabledByAccount(ctx context.Context, accountID string, enabled bool) (int64, error) {
	if accountID == "" {
		return 0, fmt.Errorf("account id is required")
	}
	res := r.db.WithContext(ctx).
		Model(&models.CreatorEarnings{}).
		Where("stripe_account_id = ?", accountID).
		Update("payouts_enabled", enabled)
	return res.RowsAffected, res.Error
}

// FindByStripeAccountID returns nil without error when no creator owns the account.
func (r *earningsRepository) FindByStripeAccountID(ctx context.Context, accountID string) (*models.CreatorEarnings, error) {
	if accountID == "" {
		return nil, nil
	}
	var earnings models.CreatorEarnings
	err := r.db.WithContext(ctx).
		Where("stripe_account_id = ?", accountID).
		First(&earnings).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &earnings, nil
}
