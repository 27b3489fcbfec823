package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
)

// PurchaseRepository persists tool purchases keyed by gateway charge id.
type PurchaseRepository interface {
	WithTx(tx *gorm.DB) PurchaseRepository
	UpsertByChargeID(ctx context.Context, purchase *models.Purchase) (bool, error)
	FindByChargeID(ctx context.Context, chargeID string) (*models.Purchase, error)
	FindActiveByBuyerAndTool(ctx context.Context, buyerID, toolID uuid.UUID) (*models.Purchase, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Purchase, error)
	ListExpiredBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Purchase, error)
}

type purchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository returns a repository bound to the provided database.
func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

func (r *purchaseRepository) WithTx(tx *gorm.DB) PurchaseRepository {
	if tx == nil {
		return r
	}
	return &purchaseRepository{db: tx}
}

// UpsertByChargeID inserts the purchase unless its charge id was already
// recorded, reporting whether a row was written. A redelivered payment event
// resolves to inserted=false and must not credit the seller again. A unique
// violation on the active buyer/tool index still surfaces as an error so the
// caller can treat a concurrent duplicate checkout explicitly.
func (r *purchaseRepository) UpsertByChargeID(ctx context.Context, purchase *models.Purchase) (bool, error) {
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_charge_id"}},
			DoNothing: true,
		}).
		Create(purchase)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindByChargeID returns nil without error when no purchase references the charge.
func (r *purchaseRepository) FindByChargeID(ctx context.Context, chargeID string) (*models.Purchase, error) {
	if chargeID == "" {
		return nil, nil
	}
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("stripe_charge_id = ?", chargeID).
		First(&purchase).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

// FindActiveByBuyerAndTool returns the buyer's unexpired purchase of the
// tool, or nil when none exists.
func (r *purchaseRepository) FindActiveByBuyerAndTool(ctx context.Context, buyerID, toolID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND tool_id = ?", buyerID, toolID).
		Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC()).
		Order("created_at DESC").
		First(&purchase).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *purchaseRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

// ListExpiredBetween returns timed licenses whose expiry fell inside the
// window, oldest first. Used by the expiry sweep.
func (r *purchaseRepository) ListExpiredBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Purchase, error) {
	if limit <= 0 {
		limit = 200
	}
	var purchases []models.Purchase
	err := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at >= ? AND expires_at < ?", from, to).
		Order("expires_at ASC").
		Limit(limit).
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}
