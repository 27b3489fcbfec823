package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
)

type stubToolLoader struct {
	tool *models.Tool
	err  error
}

func (s *stubToolLoader) FindBySlug(ctx context.Context, slug string) (*models.Tool, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.tool == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.tool, nil
}

type stubPurchaseReader struct {
	purchase *models.Purchase
	err      error
}

func (s *stubPurchaseReader) FindActiveByBuyerAndTool(ctx context.Context, buyerID, toolID uuid.UUID) (*models.Purchase, error) {
	return s.purchase, s.err
}

type stubUserLoader struct {
	user *models.User
	err  error
}

func (s *stubUserLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

type stubEnsurer struct {
	id  string
	err error
}

func (s *stubEnsurer) EnsureCustomer(ctx context.Context, user *models.User) (string, error) {
	return s.id, s.err
}

type stubCheckoutClient struct {
	session  *stripe.CheckoutSession
	err      error
	captured *stripe.CheckoutSessionParams
}

func (s *stubCheckoutClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.captured = params
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func paidTool(creatorID uuid.UUID) *models.Tool {
	return &models.Tool{
		ID:          uuid.New(),
		CreatorID:   creatorID,
		Name:        "Crate Mapper",
		Slug:        "crate-mapper",
		PriceCents:  2500,
		Currency:    "usd",
		PricingType: enums.PricingTypeOneTime,
		Published:   true,
	}
}

func newStubService(t *testing.T, tools *stubToolLoader, purchases *stubPurchaseReader, buyer *models.User, client *stubCheckoutClient) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Tools:        tools,
		Purchases:    purchases,
		Users:        &stubUserLoader{user: buyer},
		Customers:    &stubEnsurer{id: "cus_1"},
		StripeClient: client,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func validInput() StartCheckoutInput {
	return StartCheckoutInput{
		ToolSlug:   "crate-mapper",
		SuccessURL: "https://toolyard.io/checkout/done",
		CancelURL:  "https://toolyard.io/checkout/cancel",
	}
}

func TestStartToolCheckoutHappyPath(t *testing.T) {
	buyerID := uuid.New()
	tool := paidTool(uuid.New())
	client := &stubCheckoutClient{
		session: &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"},
	}
	svc := newStubService(t, &stubToolLoader{tool: tool}, &stubPurchaseReader{}, &models.User{ID: buyerID}, client)

	result, err := svc.StartToolCheckout(context.Background(), buyerID, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SessionID != "cs_1" || result.SessionURL != "https://checkout.stripe.com/cs_1" {
		t.Fatalf("unexpected result %+v", result)
	}

	params := client.captured
	if params == nil {
		t.Fatal("checkout session not created")
	}
	if params.Mode == nil || *params.Mode != string(stripe.CheckoutSessionModePayment) {
		t.Fatal("expected a payment-mode session")
	}
	if params.Customer == nil || *params.Customer != "cus_1" {
		t.Fatal("stripe customer not forwarded")
	}
	if len(params.LineItems) != 1 {
		t.Fatalf("expected one line item, got %d", len(params.LineItems))
	}
	price := params.LineItems[0].PriceData
	if price == nil || price.UnitAmount == nil || *price.UnitAmount != tool.PriceCents {
		t.Fatal("tool price not applied to the line item")
	}
	if price.Currency == nil || *price.Currency != tool.Currency {
		t.Fatal("tool currency not applied to the line item")
	}
	if params.Metadata[metadataToolKey] != tool.ID.String() || params.Metadata[metadataUserKey] != buyerID.String() {
		t.Fatalf("session metadata missing attribution, got %v", params.Metadata)
	}
	intent := params.PaymentIntentData
	if intent == nil || intent.Metadata[metadataToolKey] != tool.ID.String() || intent.Metadata[metadataUserKey] != buyerID.String() {
		t.Fatal("payment intent metadata missing attribution")
	}
}

func TestStartToolCheckoutValidation(t *testing.T) {
	svc := newStubService(t, &stubToolLoader{}, &stubPurchaseReader{}, &models.User{ID: uuid.New()}, &stubCheckoutClient{})

	if _, err := svc.StartToolCheckout(context.Background(), uuid.Nil, validInput()); err == nil {
		t.Fatal("expected error for missing user id")
	}
	if _, err := svc.StartToolCheckout(context.Background(), uuid.New(), StartCheckoutInput{SuccessURL: "https://a", CancelURL: "https://b"}); err == nil {
		t.Fatal("expected error for missing slug")
	}
	_, err := svc.StartToolCheckout(context.Background(), uuid.New(), StartCheckoutInput{ToolSlug: "crate-mapper"})
	if err == nil {
		t.Fatal("expected error for missing redirect urls")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartToolCheckoutUnknownTool(t *testing.T) {
	svc := newStubService(t, &stubToolLoader{}, &stubPurchaseReader{}, &models.User{ID: uuid.New()}, &stubCheckoutClient{})

	_, err := svc.StartToolCheckout(context.Background(), uuid.New(), validInput())
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStartToolCheckoutUnpublishedToolHidden(t *testing.T) {
	tool := paidTool(uuid.New())
	tool.Published = false
	svc := newStubService(t, &stubToolLoader{tool: tool}, &stubPurchaseReader{}, &models.User{ID: uuid.New()}, &stubCheckoutClient{})

	_, err := svc.StartToolCheckout(context.Background(), uuid.New(), validInput())
	if err == nil {
		t.Fatal("expected error for unpublished tool")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unpublished tools should read as not found, got %v", err)
	}
}

func TestStartToolCheckoutFreeTool(t *testing.T) {
	tool := paidTool(uuid.New())
	tool.PricingType = enums.PricingTypeFree
	tool.PriceCents = 0
	svc := newStubService(t, &stubToolLoader{tool: tool}, &stubPurchaseReader{}, &models.User{ID: uuid.New()}, &stubCheckoutClient{})

	_, err := svc.StartToolCheckout(context.Background(), uuid.New(), validInput())
	if err == nil {
		t.Fatal("expected error for a free tool")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestStartToolCheckoutOwnTool(t *testing.T) {
	buyerID := uuid.New()
	tool := paidTool(buyerID)
	svc := newStubService(t, &stubToolLoader{tool: tool}, &stubPurchaseReader{}, &models.User{ID: buyerID}, &stubCheckoutClient{})

	_, err := svc.StartToolCheckout(context.Background(), buyerID, validInput())
	if err == nil {
		t.Fatal("expected error when buying own tool")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestStartToolCheckoutExistingLicense(t *testing.T) {
	buyerID := uuid.New()
	tool := paidTool(uuid.New())
	purchases := &stubPurchaseReader{purchase: &models.Purchase{ID: uuid.New(), BuyerID: buyerID, ToolID: tool.ID}}
	client := &stubCheckoutClient{}
	svc := newStubService(t, &stubToolLoader{tool: tool}, purchases, &models.User{ID: buyerID}, client)

	_, err := svc.StartToolCheckout(context.Background(), buyerID, validInput())
	if err == nil {
		t.Fatal("expected error for an existing license")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if client.captured != nil {
		t.Fatal("no session should be created when a license exists")
	}
}

func TestStartToolCheckoutGatewayFailure(t *testing.T) {
	tool := paidTool(uuid.New())
	client := &stubCheckoutClient{err: errors.New("stripe down")}
	svc := newStubService(t, &stubToolLoader{tool: tool}, &stubPurchaseReader{}, &models.User{ID: uuid.New()}, client)

	_, err := svc.StartToolCheckout(context.Background(), uuid.New(), validInput())
	if err == nil {
		t.Fatal("expected error when the gateway fails")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
