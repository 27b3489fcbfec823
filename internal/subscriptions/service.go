package subscriptions

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/internal/billing"
	"github.com/toolyard/toolyard-backend/pkg/db/models"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
)

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type customerEnsurer interface {
	EnsureCustomer(ctx context.Context, user *models.User) (string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the subscription lifecycle surface.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateSubscriptionInput) (*models.Subscription, bool, error)
	Cancel(ctx context.Context, userID uuid.UUID) error
	GetActive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	BillingRepo       billing.Repository
	Users             userLoader
	Customers         customerEnsurer
	StripeClient      StripeSubscriptionClient
	DefaultPriceID    string
	TransactionRunner txRunner
}

// CreateSubscriptionInput captures the data required to start a subscription.
type CreateSubscriptionInput struct {
	PaymentMethodID string
	PriceID         string
}

type service struct {
	billingRepo billing.Repository
	users       userLoader
	customers   customerEnsurer
	stripe      StripeSubscriptionClient
	priceID     string
	txRunner    txRunner
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing repository required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user repository required")
	}
	if params.Customers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "customer service required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if strings.TrimSpace(params.DefaultPriceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "default price id required")
	}
	return &service{
		billingRepo: params.BillingRepo,
		users:       params.Users,
		customers:   params.Customers,
		stripe:      params.StripeClient,
		priceID:     strings.TrimSpace(params.DefaultPriceID),
		txRunner:    params.TransactionRunner,
	}, nil
}

// Create either returns the existing active subscription or starts a new one.
// The second return reports whether a subscription was actually created.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateSubscriptionInput) (*models.Subscription, bool, error) {
	if userID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	paymentMethodID := strings.TrimSpace(input.PaymentMethodID)
	if paymentMethodID == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "payment_method_id is required")
	}

	priceID := strings.TrimSpace(input.PriceID)
	if priceID == "" {
		priceID = s.priceID
	}

	if existing, err := s.findActive(ctx, userID); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	customerID, err := s.customers.EnsureCustomer(ctx, user)
	if err != nil {
		return nil, false, err
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		DefaultPaymentMethod: stripe.String(paymentMethodID),
		PaymentBehavior:      stripe.String("error_if_incomplete"),
	}
	params.AddMetadata(metadataUserKey, userID.String())

	stripeSub, err := s.stripe.Create(ctx, params)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe subscription")
	}

	var (
		createdSub    *models.Subscription
		existingAfter *models.Subscription
		skipped       bool
	)

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.billingRepo.WithTx(tx)

		active, err := s.findActiveWith(ctx, txRepo, userID)
		if err != nil {
			return err
		}
		if active != nil {
			existingAfter = active
			skipped = true
			return nil
		}

		sub, err := BuildSubscriptionFromStripe(stripeSub, userID)
		if err != nil {
			return err
		}
		if err := txRepo.CreateSubscription(ctx, sub); err != nil {
			return err
		}
		createdSub = sub
		return nil
	})

	if err != nil {
		// The remote subscription exists but the local row does not; cancel
		// remotely so the user is not billed for an orphan.
		if cancelErr := s.cancelRemote(ctx, stripeSub.ID); cancelErr != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, cancelErr, "cancel stripe subscription after db error")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription")
	}

	if skipped {
		if cancelErr := s.cancelRemote(ctx, stripeSub.ID); cancelErr != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, cancelErr, "cancel stripe subscription due to race")
		}
		return existingAfter, false, nil
	}

	return createdSub, true, nil
}

// Cancel terminates the user's active subscription immediately.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	active, err := s.findActive(ctx, userID)
	if err != nil {
		return err
	}
	if active == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}

	stripeSub, err := s.stripe.Cancel(ctx, active.StripeSubscriptionID, &stripe.SubscriptionCancelParams{})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel stripe subscription")
	}

	if err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.billingRepo.WithTx(tx)
		stored, err := txRepo.FindSubscriptionByStripeID(ctx, active.StripeSubscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
		}
		if stored == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		if err := UpdateSubscriptionFromStripe(stored, stripeSub); err != nil {
			return err
		}
		return txRepo.UpdateSubscription(ctx, stored)
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cancellation")
	}

	return nil
}

// GetActive returns the current active subscription if one exists.
func (s *service) GetActive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.findActive(ctx, userID)
}

func (s *service) findActive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return s.findActiveWith(ctx, s.billingRepo, userID)
}

func (s *service) findActiveWith(ctx context.Context, repo billing.Repository, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := repo.FindSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	if sub == nil || !IsActiveStatus(sub.Status) {
		return nil, nil
	}
	return sub, nil
}

func (s *service) cancelRemote(ctx context.Context, id string) error {
	_, err := s.stripe.Cancel(ctx, id, &stripe.SubscriptionCancelParams{})
	return err
}
