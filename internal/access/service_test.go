package access

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
)

type stubToolReader struct {
	tool *models.Tool
	err  error
}

func (s *stubToolReader) FindByID(ctx context.Context, id uuid.UUID) (*models.Tool, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tool, nil
}

type stubPurchaseReader struct {
	purchase *models.Purchase
	err      error
	calls    int
}

func (s *stubPurchaseReader) FindActiveByBuyerAndTool(ctx context.Context, buyerID, toolID uuid.UUID) (*models.Purchase, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.purchase, nil
}

func newGate(t *testing.T, tools toolReader, purchases purchaseReader) Service {
	t.Helper()
	svc, err := NewService(tools, purchases)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCheckAccessFreeToolOpenToAnonymous(t *testing.T) {
	tool := &models.Tool{ID: uuid.New(), CreatorID: uuid.New(), PricingType: enums.PricingTypeFree}
	purchases := &stubPurchaseReader{}
	gate := newGate(t, &stubToolReader{tool: tool}, purchases)

	decision, err := gate.CheckAccess(context.Background(), uuid.Nil, tool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.HasAccess || decision.Reason != enums.AccessReasonFree {
		t.Fatalf("expected free access, got %+v", decision)
	}
	if purchases.calls != 0 {
		t.Fatal("free tools must not hit purchase records")
	}
}

func TestCheckAccessAnonymousPaidTool(t *testing.T) {
	tool := &models.Tool{ID: uuid.New(), CreatorID: uuid.New(), PricingType: enums.PricingTypeOneTime, PriceCents: 1500}
	gate := newGate(t, &stubToolReader{tool: tool}, &stubPurchaseReader{})

	decision, err := gate.CheckAccess(context.Background(), uuid.Nil, tool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.HasAccess || decision.Reason != enums.AccessReasonNotAuthenticated {
		t.Fatalf("expected not_authenticated, got %+v", decision)
	}
}

func TestCheckAccessOwnerSkipsPurchaseLookup(t *testing.T) {
	creatorID := uuid.New()
	tool := &models.Tool{ID: uuid.New(), CreatorID: creatorID, PricingType: enums.PricingTypeOneTime, PriceCents: 1500}
	purchases := &stubPurchaseReader{}
	gate := newGate(t, &stubToolReader{tool: tool}, purchases)

	decision, err := gate.CheckAccess(context.Background(), creatorID, tool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.HasAccess || decision.Reason != enums.AccessReasonOwner {
		t.Fatalf("expected owner access, got %+v", decision)
	}
	if purchases.calls != 0 {
		t.Fatal("owners must not need a purchase record")
	}
}

func TestCheckAccessPurchased(t *testing.T) {
	tool := &models.Tool{ID: uuid.New(), CreatorID: uuid.New(), PricingType: enums.PricingTypeOneTime, PriceCents: 1500}
	expires := time.Now().UTC().Add(12 * time.Hour)
	purchase := &models.Purchase{ID: uuid.New(), ToolID: tool.ID, ExpiresAt: &expires}
	gate := newGate(t, &stubToolReader{tool: tool}, &stubPurchaseReader{purchase: purchase})

	decision, err := gate.CheckAccess(context.Background(), uuid.New(), tool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.HasAccess || decision.Reason != enums.AccessReasonPurchased {
		t.Fatalf("expected purchased access, got %+v", decision)
	}
	if decision.ExpiresAt == nil || !decision.ExpiresAt.Equal(expires) {
		t.Fatalf("expected license expiry %v, got %v", expires, decision.ExpiresAt)
	}
}

func TestCheckAccessNotPurchased(t *testing.T) {
	tool := &models.Tool{ID: uuid.New(), CreatorID: uuid.New(), PricingType: enums.PricingTypeOneTime, PriceCents: 1500}
	gate := newGate(t, &stubToolReader{tool: tool}, &stubPurchaseReader{})

	decision, err := gate.CheckAccess(context.Background(), uuid.New(), tool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.HasAccess || decision.Reason != enums.AccessReasonNotPurchased {
		t.Fatalf("expected not_purchased, got %+v", decision)
	}
	if decision.Reason.Grants() {
		t.Fatal("not_purchased must not grant access")
	}
}

func TestCheckAccessToolNotFound(t *testing.T) {
	gate := newGate(t, &stubToolReader{err: gorm.ErrRecordNotFound}, &stubPurchaseReader{})

	_, err := gate.CheckAccess(context.Background(), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected error for missing tool")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
