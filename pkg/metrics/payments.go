package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records reconciliation outcomes for inbound gateway events.
type WebhookMetrics struct {
	processed *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "Gateway events applied to the ledger.",
	}, []string{"kind"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Gateway events short-circuited by the idempotency guard.",
	}, []string{"kind"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_failed",
		Help: "Gateway events whose handler returned an error.",
	}, []string{"kind"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_event_duration_seconds",
		Help:    "Time spent applying a gateway event.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	reg.MustRegister(processed, duplicate, failed, duration)
	return &WebhookMetrics{
		processed: processed,
		duplicate: duplicate,
		failed:    failed,
		duration:  duration,
	}
}

// IncProcessed increments the processed counter for the event kind.
func (w *WebhookMetrics) IncProcessed(kind string) {
	if w == nil || w.processed == nil {
		return
	}
	w.processed.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncDuplicate increments the duplicate counter for the event kind.
func (w *WebhookMetrics) IncDuplicate(kind string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncFailed increments the failure counter for the event kind.
func (w *WebhookMetrics) IncFailed(kind string) {
	if w == nil || w.failed == nil {
		return
	}
	w.failed.WithLabelValues(normalizeLabel(kind)).Inc()
}

// ObserveDuration records how long a handler took for the event kind.
func (w *WebhookMetrics) ObserveDuration(kind string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// PayoutMetrics records withdrawal attempt outcomes.
type PayoutMetrics struct {
	outcomes *prometheus.CounterVec
	amount   *prometheus.HistogramVec
}

// NewPayoutMetrics registers the payout metrics on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_attempts",
		Help: "Payout attempts by terminal outcome.",
	}, []string{"outcome"})
	amount := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payout_amount_cents",
		Help:    "Requested payout amounts in minor units.",
		Buckets: prometheus.ExponentialBuckets(1000, 4, 8),
	}, []string{"outcome"})
	reg.MustRegister(outcomes, amount)
	return &PayoutMetrics{outcomes: outcomes, amount: amount}
}

// IncOutcome increments the counter for a payout outcome.
func (p *PayoutMetrics) IncOutcome(outcome string) {
	if p == nil || p.outcomes == nil {
		return
	}
	p.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveAmount records the requested amount under its outcome.
func (p *PayoutMetrics) ObserveAmount(outcome string, cents int64) {
	if p == nil || p.amount == nil {
		return
	}
	p.amount.WithLabelValues(normalizeLabel(outcome)).Observe(float64(cents))
}
