package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
)

// Metadata keys stamped onto the checkout session and its payment intent.
// The webhook reconciler reads them back to attribute the settled charge.
const (
	metadataToolKey = "tool_id"
	metadataUserKey = "user_id"
)

type toolLoader interface {
	FindBySlug(ctx context.Context, slug string) (*models.Tool, error)
}

type purchaseReader interface {
	FindActiveByBuyerAndTool(ctx context.Context, buyerID, toolID uuid.UUID) (*models.Purchase, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type customerEnsurer interface {
	EnsureCustomer(ctx context.Context, user *models.User) (string, error)
}

// Service starts gateway checkout sessions for paid tools. The ledger itself
// is only written by the webhook reconciler once the session settles.
type Service interface {
	StartToolCheckout(ctx context.Context, buyerID uuid.UUID, input StartCheckoutInput) (*SessionResult, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Tools        toolLoader
	Purchases    purchaseReader
	Users        userLoader
	Customers    customerEnsurer
	StripeClient StripeCheckoutClient
}

// StartCheckoutInput identifies the tool and the redirect targets.
type StartCheckoutInput struct {
	ToolSlug   string
	SuccessURL string
	CancelURL  string
}

// SessionResult carries the hosted checkout page the client redirects to.
type SessionResult struct {
	SessionID  string `json:"session_id"`
	SessionURL string `json:"session_url"`
}

type service struct {
	tools     toolLoader
	purchases purchaseReader
	users     userLoader
	customers customerEnsurer
	stripe    StripeCheckoutClient
}

// NewService builds a checkout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Tools == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tool repository required")
	}
	if params.Purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "purchase repository required")
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
	return &service{
		tools:     params.Tools,
		purchases: params.Purchases,
		users:     params.Users,
		customers: params.Customers,
		stripe:    params.StripeClient,
	}, nil
}

// StartToolCheckout validates that the buyer may purchase the tool and opens
// a payment-mode checkout session carrying the attribution metadata. The
// duplicate-license pre-check here is advisory; the partial unique index on
// purchases is what actually closes the race when the charge settles.
func (s *service) StartToolCheckout(ctx context.Context, buyerID uuid.UUID, input StartCheckoutInput) (*SessionResult, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	slug := strings.TrimSpace(input.ToolSlug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tool slug is required")
	}
	successURL := strings.TrimSpace(input.SuccessURL)
	cancelURL := strings.TrimSpace(input.CancelURL)
	if successURL == "" || cancelURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "success_url and cancel_url are required")
	}

	tool, err := s.tools.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tool not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tool")
	}
	if !tool.Published {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tool not found")
	}
	if tool.PricingType == enums.PricingTypeFree || tool.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "free tools do not require checkout")
	}
	if tool.CreatorID == buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "creators already have access to their own tools")
	}

	existing, err := s.purchases.FindActiveByBuyerAndTool(ctx, buyerID, tool.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing license")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an active license for this tool already exists")
	}

	buyer, err := s.users.FindByID(ctx, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	customerID, err := s.customers.EnsureCustomer(ctx, buyer)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure stripe customer")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:          stripe.String(customerID),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(buyerID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(tool.Currency),
					UnitAmount: stripe.Int64(tool.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(tool.Name),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{},
	}
	// Both the session and the intent carry the attribution pair: the
	// completed-session handler reads the former, the payment-failed
	// handler the latter.
	params.AddMetadata(metadataToolKey, tool.ID.String())
	params.AddMetadata(metadataUserKey, buyerID.String())
	params.PaymentIntentData.AddMetadata(metadataToolKey, tool.ID.String())
	params.PaymentIntentData.AddMetadata(metadataUserKey, buyerID.String())

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	return &SessionResult{
		SessionID:  session.ID,
		SessionURL: session.URL,
	}, nil
}
