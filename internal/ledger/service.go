package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/pagination"
)

// Service exposes the read side of the ledger: balances, receipts, payout
// history, and the buyer's purchase library. All writes happen inside the
// webhook reconciler and the payout issuer, never here.
type Service interface {
	EarningsSummary(ctx context.Context, userID uuid.UUID) (*EarningsSummary, error)
	ListBillingHistory(ctx context.Context, params ListBillingHistoryParams) (*BillingHistoryPage, error)
	ListPayouts(ctx context.Context, params ListPayoutsParams) (*PayoutPage, error)
	ListAllPayouts(ctx context.Context, params AdminListPayoutsParams) (*PayoutPage, error)
	ListPurchases(ctx context.Context, buyerID uuid.UUID) ([]models.Purchase, error)
}

// EarningsSummary is the creator-facing balance snapshot.
type EarningsSummary struct {
	TotalEarningsCents   int64   `json:"total_earnings_cents"`
	PendingEarningsCents int64   `json:"pending_earnings_cents"`
	LifetimeSales        int64   `json:"lifetime_sales"`
	PayoutsEnabled       bool    `json:"payouts_enabled"`
	StripeAccountID      *string `json:"stripe_account_id,omitempty"`
}

// ListBillingHistoryParams configures the billing history endpoint.
type ListBillingHistoryParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
	Type   *enums.BillingHistoryType
}

// BillingHistoryPage wraps one page of receipt lines plus the next cursor.
type BillingHistoryPage struct {
	Items  []models.BillingHistory `json:"items"`
	Cursor string                  `json:"cursor"`
}

// ListPayoutsParams configures the user-facing payout history endpoint.
type ListPayoutsParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
	Status *enums.PayoutStatus
}

// AdminListPayoutsParams configures the admin listing across all users.
// A nil UserID means no user filter.
type AdminListPayoutsParams struct {
	UserID *uuid.UUID
	Limit  int
	Cursor string
	Status *enums.PayoutStatus
}

// PayoutPage wraps one page of payouts plus the next cursor.
type PayoutPage struct {
	Items  []models.Payout `json:"items"`
	Cursor string          `json:"cursor"`
}

// ServiceParams wires ledger read dependencies.
type ServiceParams struct {
	Earnings  EarningsRepository
	Billing   BillingHistoryRepository
	Payouts   PayoutRepository
	Purchases PurchaseRepository
}

type service struct {
	earnings  EarningsRepository
	billing   BillingHistoryRepository
	payouts   PayoutRepository
	purchases PurchaseRepository
}

// NewService validates dependencies and returns the ledger read service.
func NewService(params ServiceParams) (Service, error) {
	if params.Earnings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "earnings repository required")
	}
	if params.Billing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing history repository required")
	}
	if params.Payouts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payout repository required")
	}
	if params.Purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "purchase repository required")
	}
	return &service{
		earnings:  params.Earnings,
		billing:   params.Billing,
		payouts:   params.Payouts,
		purchases: params.Purchases,
	}, nil
}

func (s *service) EarningsSummary(ctx context.Context, userID uuid.UUID) (*EarningsSummary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	earnings, err := s.earnings.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load creator earnings")
	}
	if earnings == nil {
		// Creators without a single sale have no row yet; report zeros
		// instead of forcing callers to special-case not-found.
		return &EarningsSummary{}, nil
	}

	return &EarningsSummary{
		TotalEarningsCents:   earnings.TotalEarningsCents,
		PendingEarningsCents: earnings.PendingEarningsCents,
		LifetimeSales:        earnings.LifetimeSales,
		PayoutsEnabled:       earnings.PayoutsEnabled,
		StripeAccountID:      earnings.StripeAccountID,
	}, nil
}

func (s *service) ListBillingHistory(ctx context.Context, params ListBillingHistoryParams) (*BillingHistoryPage, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := ListBillingHistoryQuery{
		UserID: params.UserID,
		Limit:  params.Limit,
		Type:   params.Type,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.billing.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list billing history")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &BillingHistoryPage{Items: rows, Cursor: cursor}, nil
}

func (s *service) ListPayouts(ctx context.Context, params ListPayoutsParams) (*PayoutPage, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.payoutPage(ctx, ListPayoutsQuery{
		UserID: &params.UserID,
		Status: params.Status,
		Limit:  params.Limit,
	}, params.Cursor)
}

func (s *service) ListAllPayouts(ctx context.Context, params AdminListPayoutsParams) (*PayoutPage, error) {
	return s.payoutPage(ctx, ListPayoutsQuery{
		UserID: params.UserID,
		Status: params.Status,
		Limit:  params.Limit,
	}, params.Cursor)
}

func (s *service) payoutPage(ctx context.Context, query ListPayoutsQuery, rawCursor string) (*PayoutPage, error) {
	if rawCursor != "" {
		cursor, err := pagination.ParseCursor(rawCursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.payouts.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &PayoutPage{Items: rows, Cursor: cursor}, nil
}

func (s *service) ListPurchases(ctx context.Context, buyerID uuid.UUID) ([]models.Purchase, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}

	purchases, err := s.purchases.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchases")
	}
	return purchases, nil
}
