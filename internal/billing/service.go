package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
)

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Repo Repository
}

// Service exposes the plan catalog.
type Service struct {
	repo Repository
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing repository required")
	}
	return &Service{repo: params.Repo}, nil
}

// ListPlans returns the plans offered to new subscribers.
func (s *Service) ListPlans(ctx context.Context) ([]models.BillingPlan, error) {
	status := enums.PlanStatusActive
	plans, err := s.repo.ListBillingPlans(ctx, ListBillingPlansQuery{Status: &status})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list billing plans")
	}
	return plans, nil
}

// ListPlansAdmin returns plans for back-office views, optionally filtered.
func (s *Service) ListPlansAdmin(ctx context.Context, params ListBillingPlansQuery) ([]models.BillingPlan, error) {
	plans, err := s.repo.ListBillingPlans(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list billing plans")
	}
	return plans, nil
}

// CreatePlan registers a new plan in the catalog.
func (s *Service) CreatePlan(ctx context.Context, plan *models.BillingPlan) error {
	existing, err := s.repo.FindBillingPlanByID(ctx, plan.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find billing plan")
	}
	if existing != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "plan already exists")
	}
	if err := s.repo.CreateBillingPlan(ctx, plan); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create billing plan")
	}
	return nil
}

// UpdatePlan replaces a plan's metadata.
func (s *Service) UpdatePlan(ctx context.Context, plan *models.BillingPlan) error {
	if err := s.repo.UpdateBillingPlan(ctx, plan); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update billing plan")
	}
	return nil
}

// GetMySubscription returns the user's platform subscription. Users who never
// subscribed get a not-found; subscription state is written exclusively by the
// webhook reconciler, so this is always a plain read.
func (s *Service) GetMySubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	sub, err := s.repo.FindSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription on file")
	}
	return sub, nil
}

// GetPlan fetches a single plan by its local identifier.
func (s *Service) GetPlan(ctx context.Context, id string) (*models.BillingPlan, error) {
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id required")
	}
	plan, err := s.repo.FindBillingPlanByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find billing plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return plan, nil
}
