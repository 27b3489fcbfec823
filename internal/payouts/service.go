package payouts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/toolyard/toolyard-backend/internal/ledger"
	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/outbox"
	"github.com/toolyard/toolyard-backend/pkg/outbox/payloads"
)

// Precondition reason tags returned in the details of payout rejections.
const (
	ReasonNoEarningsAccount   = "NO_EARNINGS_ACCOUNT"
	ReasonAccountNotConnected = "GATEWAY_ACCOUNT_NOT_CONNECTED"
	ReasonMinimumNotMet       = "MINIMUM_NOT_MET"
	ReasonInsufficientBalance = "INSUFFICIENT_BALANCE"
	ReasonPayoutsNotEnabled   = "PAYOUTS_NOT_ENABLED"
)

const failureReasonLimit = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service issues payouts and manages the creator's connected account.
type Service interface {
	RequestPayout(ctx context.Context, userID uuid.UUID, input RequestPayoutInput) (*PayoutResult, error)
	ConnectAccount(ctx context.Context, userID uuid.UUID, input ConnectAccountInput) (*ConnectLink, error)
	AccountStatus(ctx context.Context, userID uuid.UUID) (*AccountStatus, error)
}

// ServiceParams groups dependencies for the payout service.
type ServiceParams struct {
	Earnings          ledger.EarningsRepository
	Payouts           ledger.PayoutRepository
	Billing           ledger.BillingHistoryRepository
	Users             userLoader
	StripeClient      StripePayoutClient
	Outbox            eventEmitter
	TransactionRunner txRunner
	MinimumCents      int64
	HourlyLimit       int
	Currency          string
}

// RequestPayoutInput carries the requested withdrawal amount.
type RequestPayoutInput struct {
	AmountCents int64
}

// PayoutResult is the finalized payout row plus the balance left afterwards.
// A failed payout is a normal business outcome here, not an error: the
// Payout carries the failure reason and the balance is provably intact.
type PayoutResult struct {
	Payout                *models.Payout
	RemainingBalanceCents int64
}

// ConnectAccountInput carries the redirect URLs for gateway onboarding.
type ConnectAccountInput struct {
	RefreshURL string
	ReturnURL  string
}

// ConnectLink is a single-use onboarding URL.
type ConnectLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountStatus reflects the connected account's live capability state.
type AccountStatus struct {
	Connected        bool   `json:"connected"`
	StripeAccountID  string `json:"stripe_account_id,omitempty"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

type service struct {
	earnings     ledger.EarningsRepository
	payouts      ledger.PayoutRepository
	billing      ledger.BillingHistoryRepository
	users        userLoader
	stripe       StripePayoutClient
	outbox       eventEmitter
	txRunner     txRunner
	minimumCents int64
	hourlyLimit  int
	currency     string
}

// NewService builds a payout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Earnings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "earnings repository required")
	}
	if params.Payouts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payout repository required")
	}
	if params.Billing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing history repository required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user repository required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.MinimumCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payout minimum must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	hourlyLimit := params.HourlyLimit
	if hourlyLimit <= 0 {
		hourlyLimit = 3
	}
	return &service{
		earnings:     params.Earnings,
		payouts:      params.Payouts,
		billing:      params.Billing,
		users:        params.Users,
		stripe:       params.StripeClient,
		outbox:       params.Outbox,
		txRunner:     params.TransactionRunner,
		minimumCents: params.MinimumCents,
		hourlyLimit:  hourlyLimit,
		currency:     currency,
	}, nil
}

// RequestPayout validates the creator's balance and account state, reserves
// the amount under a row lock, and attempts the gateway transfer. The local
// balance is only debited once the transfer provably succeeded; a rejected
// transfer commits as a failed Payout row with the balance untouched.
func (s *service) RequestPayout(ctx context.Context, userID uuid.UUID, input RequestPayoutInput) (*PayoutResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	amount := input.AmountCents
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if amount < s.minimumCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount below payout minimum").
			WithDetails(map[string]any{"minimum_cents": s.minimumCents})
	}

	since := time.Now().UTC().Add(-time.Hour)
	recent, err := s.payouts.CountCreatedSince(ctx, userID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count recent payouts")
	}
	if recent >= int64(s.hourlyLimit) {
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many payout requests; try again later")
	}

	// Fast-fail pass without the lock so obviously bad requests never open
	// a transaction.
	earnings, err := s.earnings.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load creator earnings")
	}
	if err := validatePayoutPreconditions(earnings, amount, s.minimumCents); err != nil {
		return nil, err
	}

	accountID := *earnings.StripeAccountID
	account, err := s.stripe.GetAccount(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve stripe account")
	}
	if account == nil || !account.PayoutsEnabled {
		return nil, preconditionError(ReasonPayoutsNotEnabled, "payouts are not enabled for the connected account", map[string]any{
			"stripe_account_id": accountID,
		})
	}

	var result *PayoutResult
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		earningsTx := s.earnings.WithTx(tx)
		payoutsTx := s.payouts.WithTx(tx)
		billingTx := s.billing.WithTx(tx)

		locked, err := earningsTx.LockByUserID(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock creator earnings")
		}
		// Re-validate against the locked row; the balance may have moved
		// between the unlocked read and here.
		if err := validatePayoutPreconditions(locked, amount, s.minimumCents); err != nil {
			return err
		}

		payout := &models.Payout{
			ID:              uuid.New(),
			UserID:          userID,
			AmountCents:     amount,
			Currency:        s.currency,
			Status:          enums.PayoutStatusPending,
			StripeAccountID: *locked.StripeAccountID,
		}
		if err := payoutsTx.Insert(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payout")
		}

		transferParams := &stripe.TransferParams{
			Amount:      stripe.Int64(amount),
			Currency:    stripe.String(s.currency),
			Destination: stripe.String(payout.StripeAccountID),
		}
		// The payout row's own id keys the transfer, so a network-level
		// retry cannot double-send the same withdrawal.
		transferParams.IdempotencyKey = stripe.String(payout.ID.String())
		transferParams.AddMetadata("payout_id", payout.ID.String())
		transferParams.AddMetadata("user_id", userID.String())

		now := time.Now().UTC()
		transferResult, transferErr := s.stripe.CreateTransfer(ctx, transferParams)
		if transferErr != nil {
			// Commit the failure record; the balance was never touched.
			reason := truncateReason(transferErr.Error())
			if err := payoutsTx.MarkFailed(ctx, payout.ID, reason); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout failure")
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventPayoutFailed,
				AggregateType: enums.AggregatePayout,
				AggregateID:   payout.ID,
				Version:       1,
				Data: payloads.PayoutFailedEvent{
					PayoutID:    payout.ID,
					UserID:      userID,
					AmountCents: amount,
					Reason:      reason,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payout failed event")
			}
			payout.Status = enums.PayoutStatusFailed
			payout.FailureReason = &reason
			result = &PayoutResult{Payout: payout, RemainingBalanceCents: locked.PendingEarningsCents}
			return nil
		}

		if err := payoutsTx.MarkCompleted(ctx, payout.ID, transferResult.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout completion")
		}
		if err := earningsTx.Debit(ctx, userID, amount, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit pending earnings")
		}
		if err := billingTx.Insert(ctx, &models.BillingHistory{
			UserID:         userID,
			Type:           enums.BillingHistoryTypePayout,
			Status:         enums.BillingHistoryStatusPaid,
			AmountCents:    amount,
			Currency:       s.currency,
			Description:    "Payout to connected account",
			StripeObjectID: transferResult.ID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record billing history")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventPayoutCompleted,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Version:       1,
			Data: payloads.PayoutCompletedEvent{
				PayoutID:    payout.ID,
				UserID:      userID,
				AmountCents: amount,
				TransferID:  transferResult.ID,
				CompletedAt: now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payout completed event")
		}

		payout.Status = enums.PayoutStatusCompleted
		payout.StripeTransferID = &transferResult.ID
		payout.CompletedAt = &now
		result = &PayoutResult{Payout: payout, RemainingBalanceCents: locked.PendingEarningsCents - amount}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue payout")
	}

	return result, nil
}

// ConnectAccount creates the creator's express account on first use and
// returns a fresh onboarding link.
func (s *service) ConnectAccount(ctx context.Context, userID uuid.UUID, input ConnectAccountInput) (*ConnectLink, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	refreshURL := strings.TrimSpace(input.RefreshURL)
	returnURL := strings.TrimSpace(input.ReturnURL)
	if refreshURL == "" || returnURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refresh_url and return_url are required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	earnings, err := s.earnings.CreateIfAbsent(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure earnings account")
	}

	accountID := ""
	if earnings.StripeAccountID != nil {
		accountID = strings.TrimSpace(*earnings.StripeAccountID)
	}
	if accountID == "" {
		params := &stripe.AccountParams{
			Type:  stripe.String(string(stripe.AccountTypeExpress)),
			Email: stripe.String(user.Email),
			Capabilities: &stripe.AccountCapabilitiesParams{
				Transfers: &stripe.AccountCapabilitiesTransfersParams{
					Requested: stripe.Bool(true),
				},
			},
		}
		params.AddMetadata("user_id", userID.String())

		account, err := s.stripe.CreateAccount(ctx, params)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe account")
		}
		if err := s.earnings.SetStripeAccount(ctx, userID, account.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist stripe account id")
		}
		accountID = account.ID
	}

	link, err := s.stripe.CreateAccountLink(ctx, &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account link")
	}

	return &ConnectLink{
		URL:       link.URL,
		ExpiresAt: time.Unix(link.ExpiresAt, 0).UTC(),
	}, nil
}

// AccountStatus reports the connected account's live capabilities and keeps
// the local payouts_enabled flag in sync.
func (s *service) AccountStatus(ctx context.Context, userID uuid.UUID) (*AccountStatus, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	earnings, err := s.earnings.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load creator earnings")
	}
	if earnings == nil || earnings.StripeAccountID == nil || strings.TrimSpace(*earnings.StripeAccountID) == "" {
		return &AccountStatus{Connected: false}, nil
	}

	accountID := strings.TrimSpace(*earnings.StripeAccountID)
	account, err := s.stripe.GetAccount(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve stripe account")
	}

	if account.PayoutsEnabled != earnings.PayoutsEnabled {
		if _, err := s.earnings.SetPayoutsEnabledByAccount(ctx, accountID, account.PayoutsEnabled); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync payouts enabled flag")
		}
	}

	return &AccountStatus{
		Connected:        true,
		StripeAccountID:  accountID,
		PayoutsEnabled:   account.PayoutsEnabled,
		ChargesEnabled:   account.ChargesEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
	}, nil
}

// validatePayoutPreconditions applies the ordered business checks shared by
// the unlocked fast path and the locked re-validation.
func validatePayoutPreconditions(earnings *models.CreatorEarnings, amountCents, minimumCents int64) error {
	if earnings == nil {
		return preconditionError(ReasonNoEarningsAccount, "no earnings account", nil)
	}
	if earnings.StripeAccountID == nil || strings.TrimSpace(*earnings.StripeAccountID) == "" {
		return preconditionError(ReasonAccountNotConnected, "payout account not connected", nil)
	}
	if earnings.PendingEarningsCents < minimumCents {
		return preconditionError(ReasonMinimumNotMet, "pending balance below payout minimum", map[string]any{
			"pending_cents": earnings.PendingEarningsCents,
			"minimum_cents": minimumCents,
		})
	}
	if amountCents > earnings.PendingEarningsCents {
		return preconditionError(ReasonInsufficientBalance, "amount exceeds pending balance", map[string]any{
			"pending_cents":   earnings.PendingEarningsCents,
			"requested_cents": amountCents,
		})
	}
	return nil
}

func preconditionError(reason, message string, details map[string]any) error {
	merged := map[string]any{"reason": reason}
	for key, value := range details {
		merged[key] = value
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).WithDetails(merged)
}

func truncateReason(reason string) string {
	if len(reason) <= failureReasonLimit {
		return reason
	}
	return reason[:failureReasonLimit]
}
