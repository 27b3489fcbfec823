package enums

// WebhookEventKind is the closed set of gateway event families the ledger
// reacts to. Raw gateway type strings are folded into a kind once at the
// boundary so dispatch is an exhaustive switch instead of string matching.
type WebhookEventKind string

const (
	WebhookEventCheckoutCompleted    WebhookEventKind = "checkout_completed"
	WebhookEventPaymentFailed        WebhookEventKind = "payment_failed"
	WebhookEventSubscriptionCreated  WebhookEventKind = "subscription_created"
	WebhookEventSubscriptionUpdated  WebhookEventKind = "subscription_updated"
	WebhookEventSubscriptionDeleted  WebhookEventKind = "subscription_deleted"
	WebhookEventInvoicePaid          WebhookEventKind = "invoice_paid"
	WebhookEventInvoicePaymentFailed WebhookEventKind = "invoice_payment_failed"
	WebhookEventTrialWillEnd         WebhookEventKind = "trial_will_end"
	WebhookEventAccountUpdated       WebhookEventKind = "account_updated"

	// WebhookEventUnknown marks gateway types we do not handle. Processing
	// an unknown kind is a successful no-op, never an error.
	WebhookEventUnknown WebhookEventKind = "unknown"
)

var webhookEventKindsByGatewayType = map[string]WebhookEventKind{
	"checkout.session.completed":           WebhookEventCheckoutCompleted,
	"payment_intent.payment_failed":        WebhookEventPaymentFailed,
	"customer.subscription.created":        WebhookEventSubscriptionCreated,
	"customer.subscription.updated":        WebhookEventSubscriptionUpdated,
	"customer.subscription.deleted":        WebhookEventSubscriptionDeleted,
	"invoice.paid":                         WebhookEventInvoicePaid,
	"invoice.payment_failed":               WebhookEventInvoicePaymentFailed,
	"customer.subscription.trial_will_end": WebhookEventTrialWillEnd,
	"account.updated":                      WebhookEventAccountUpdated,
}

// String implements fmt.Stringer.
func (k WebhookEventKind) String() string {
	return string(k)
}

// IsHandled reports whether the kind has a ledger handler attached.
func (k WebhookEventKind) IsHandled() bool {
	return k != WebhookEventUnknown && k != ""
}

// ParseWebhookEventKind folds a raw gateway event type into a kind.
// Unrecognized types map to WebhookEventUnknown rather than an error so new
// gateway event types stay forward-compatible no-ops.
func ParseWebhookEventKind(gatewayType string) WebhookEventKind {
	if kind, ok := webhookEventKindsByGatewayType[gatewayType]; ok {
		return kind
	}
	return WebhookEventUnknown
}
