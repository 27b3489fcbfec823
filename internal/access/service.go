package access

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
)

// Service answers whether a user may run a tool. It only reads records the
// payment pipeline wrote; it never writes.
type Service interface {
	CheckAccess(ctx context.Context, userID, toolID uuid.UUID) (*Decision, error)
}

// Decision is the gate's verdict. ExpiresAt is set when access rests on a
// time-limited license.
type Decision struct {
	HasAccess bool               `json:"has_access"`
	Reason    enums.AccessReason `json:"reason"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

type toolReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tool, error)
}

type purchaseReader interface {
	FindActiveByBuyerAndTool(ctx context.Context, buyerID, toolID uuid.UUID) (*models.Purchase, error)
}

type service struct {
	tools     toolReader
	purchases purchaseReader
}

// NewService wires the access gate's read dependencies.
func NewService(tools toolReader, purchases purchaseReader) (Service, error) {
	if tools == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tool reader required")
	}
	if purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "purchase reader required")
	}
	return &service{tools: tools, purchases: purchases}, nil
}

// CheckAccess evaluates, in order: free tool, anonymous caller, creator
// ownership, then an active purchase. A uuid.Nil userID means the caller is
// not authenticated; free tools are open to everyone including anonymous
// callers.
func (s *service) CheckAccess(ctx context.Context, userID, toolID uuid.UUID) (*Decision, error) {
	if toolID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tool id required")
	}

	tool, err := s.tools.FindByID(ctx, toolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tool not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tool")
	}

	if tool.PricingType == enums.PricingTypeFree {
		return &Decision{HasAccess: true, Reason: enums.AccessReasonFree}, nil
	}

	if userID == uuid.Nil {
		return &Decision{HasAccess: false, Reason: enums.AccessReasonNotAuthenticated}, nil
	}

	if tool.CreatorID == userID {
		return &Decision{HasAccess: true, Reason: enums.AccessReasonOwner}, nil
	}

	purchase, err := s.purchases.FindActiveByBuyerAndTool(ctx, userID, toolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	if purchase != nil {
		return &Decision{
			HasAccess: true,
			Reason:    enums.AccessReasonPurchased,
			ExpiresAt: purchase.ExpiresAt,
		}, nil
	}

	return &Decision{HasAccess: false, Reason: enums.AccessReasonNotPurchased}, nil
}
