package stripecustomers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/customer"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	pkgstripe "github.com/toolyard/toolyard-backend/pkg/stripe"
)

// Service ensures a Stripe customer record exists for a user and returns its id.
type Service interface {
	EnsureCustomer(ctx context.Context, user *models.User) (string, error)
}

// CustomerClient is the slice of Stripe's customer API the service needs.
type CustomerClient interface {
	Create(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
}

type userWriter interface {
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

type service struct {
	client CustomerClient
	users  userWriter
}

// NewService builds a customer service backed by the shared Stripe client.
func NewService(api *pkgstripe.Client, users userWriter) (Service, error) {
	if api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user repository required")
	}
	return &service{client: &customerClientWrapper{}, users: users}, nil
}

// NewServiceWithClient is the test seam for injecting a stub customer client.
func NewServiceWithClient(client CustomerClient, users userWriter) (Service, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "customer client required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user repository required")
	}
	return &service{client: client, users: users}, nil
}

// EnsureCustomer returns the user's Stripe customer id, creating the remote
// customer and persisting the id on first use.
func (s *service) EnsureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user required")
	}
	if existing := safeString(user.StripeCustomerID); existing != "" {
		return existing, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(strings.TrimSpace(user.Email)),
		Name:  stripe.String(displayName(user)),
	}
	params.AddMetadata("user_id", user.ID.String())

	created, err := s.client.Create(ctx, params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe customer")
	}
	if created == nil || strings.TrimSpace(created.ID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "stripe customer id missing")
	}

	if err := s.users.SetStripeCustomerID(ctx, user.ID, created.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist stripe customer id")
	}
	user.StripeCustomerID = &created.ID
	return created.ID, nil
}

func displayName(user *models.User) string {
	name := strings.TrimSpace(fmt.Sprintf("%s %s", strings.TrimSpace(user.FirstName), strings.TrimSpace(user.LastName)))
	if name == "" {
		return strings.TrimSpace(user.Email)
	}
	return name
}

func safeString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

type customerClientWrapper struct{}

func (w *customerClientWrapper) Create(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.New(params)
}
