package payouts

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"
	"github.com/stripe/stripe-go/v84/transfer"

	pkgstripe "github.com/toolyard/toolyard-backend/pkg/stripe"
)

// StripePayoutClient exposes the Stripe connect and transfer operations the
// payout service needs.
type StripePayoutClient interface {
	CreateTransfer(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error)
	GetAccount(ctx context.Context, id string) (*stripe.Account, error)
	CreateAccount(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error)
	CreateAccountLink(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error)
}

type stripePayoutWrapper struct{}

// NewStripeClient wraps the shared Stripe client behind the payout surface.
func NewStripeClient(api *pkgstripe.Client) StripePayoutClient {
	if api == nil {
		return nil
	}
	return &stripePayoutWrapper{}
}

func (w *stripePayoutWrapper) CreateTransfer(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error) {
	if params != nil {
		params.Context = ctx
	}
	return transfer.New(params)
}

func (w *stripePayoutWrapper) GetAccount(ctx context.Context, id string) (*stripe.Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	return account.GetByID(id, params)
}

func (w *stripePayoutWrapper) CreateAccount(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error) {
	if params != nil {
		params.Context = ctx
	}
	return account.New(params)
}

func (w *stripePayoutWrapper) CreateAccountLink(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error) {
	if params != nil {
		params.Context = ctx
	}
	return accountlink.New(params)
}
