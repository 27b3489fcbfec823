package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/toolyard/toolyard-backend/api/controllers"
	webhookcontrollers "github.com/toolyard/toolyard-backend/api/controllers/webhooks"
	"github.com/toolyard/toolyard-backend/api/middleware"
	"github.com/toolyard/toolyard-backend/internal/access"
	"github.com/toolyard/toolyard-backend/internal/auth"
	"github.com/toolyard/toolyard-backend/internal/ledger"
	"github.com/toolyard/toolyard-backend/internal/notifications"
	"github.com/toolyard/toolyard-backend/internal/payouts"
	subscriptionsvc "github.com/toolyard/toolyard-backend/internal/subscriptions"
	"github.com/toolyard/toolyard-backend/internal/tools"
	stripewebhook "github.com/toolyard/toolyard-backend/internal/webhooks/stripe"
	"github.com/toolyard/toolyard-backend/pkg/auth/session"
	"github.com/toolyard/toolyard-backend/pkg/config"
	"github.com/toolyard/toolyard-backend/pkg/db"
	"github.com/toolyard/toolyard-backend/pkg/logger"
	"github.com/toolyard/toolyard-backend/pkg/metrics"
	"github.com/toolyard/toolyard-backend/pkg/redis"
	"github.com/toolyard/toolyard-backend/pkg/stripe"
)

// Services bundles every domain service the HTTP surface exposes. The router
// only routes; construction and wiring stay in cmd/api.
type Services struct {
	Auth          auth.Service
	Register      auth.RegisterService
	AdminRegister auth.AdminRegisterService
	Tools         tools.Service
	Access        access.Service
	Checkout      controllers.CheckoutService
	Ledger        ledger.Service
	Billing       controllers.BillingService
	Subscriptions subscriptionsvc.Service
	Payouts       payouts.Service
	Notifications notifications.Service
	OutboxDLQ     controllers.OutboxDLQStore
}

// Webhooks bundles the Stripe intake dependencies.
type Webhooks struct {
	Service *stripewebhook.Service
	Guard   *stripewebhook.IdempotencyGuard
	Client  *stripe.Client
}

// Metrics bundles the Prometheus instruments the routes record into, plus the
// registry served on /metrics.
type Metrics struct {
	Registry *prometheus.Registry
	Webhook  *metrics.WebhookMetrics
	Payout   *metrics.PayoutMetrics
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	database db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	svcs Services,
	webhooks Webhooks,
	mtx Metrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, database, redisClient, logg))
	})

	if mtx.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(mtx.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/validate", controllers.PublicValidate(logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(webhooks.Service, webhooks.Client, webhooks.Guard, mtx.Webhook, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(svcs.Register, svcs.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/register", controllers.AdminAuthRegister(svcs.AdminRegister, svcs.Auth, cfg, logg))
		}
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AdminAuthLogin(svcs.Auth, logg))
	})

	// The tool catalog is browsable anonymously, but an attached identity
	// changes what the browse and access endpoints reveal.
	r.Route("/api/v1/tools", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, sessions, logg))
			r.Get("/", controllers.ListTools(svcs.Tools, logg))
			r.Get("/{slug}", controllers.ToolDetail(svcs.Tools, logg))
			r.Get("/{slug}/access", controllers.ToolAccess(svcs.Tools, svcs.Access, logg))
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			r.Use(middleware.Idempotency(redisClient, logg))
			r.Get("/mine", controllers.MyTools(svcs.Tools, logg))
			r.Post("/", controllers.CreateTool(svcs.Tools, logg))
			r.Patch("/{toolId}", controllers.UpdateTool(svcs.Tools, logg))
			r.Delete("/{toolId}", controllers.DeleteTool(svcs.Tools, logg))
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Post("/v1/checkout", controllers.StartCheckout(svcs.Checkout, logg))

		r.Route("/v1/payouts", func(r chi.Router) {
			r.With(middleware.RateLimit("payouts", cfg.Payout.HourlyLimit, time.Hour, redisClient, logg)).
				Post("/", controllers.RequestPayout(svcs.Payouts, mtx.Payout, logg))
			r.Post("/connect", controllers.ConnectPayoutAccount(svcs.Payouts, logg))
			r.Get("/", controllers.ListPayouts(svcs.Ledger, logg))
			r.Get("/account", controllers.PayoutAccountStatus(svcs.Payouts, logg))
		})

		r.Get("/v1/earnings", controllers.GetEarnings(svcs.Ledger, logg))
		r.Get("/v1/purchases", controllers.ListPurchases(svcs.Ledger, logg))

		r.Route("/v1/billing", func(r chi.Router) {
			r.Get("/history", controllers.BillingHistory(svcs.Ledger, logg))
			r.Get("/plans", controllers.BillingPlans(svcs.Billing, logg))
			r.Get("/plans/{planId}", controllers.BillingPlanDetail(svcs.Billing, logg))
			r.Route("/subscription", func(r chi.Router) {
				r.Get("/", controllers.MySubscription(svcs.Billing, logg))
				r.Post("/", controllers.CreateSubscription(svcs.Subscriptions, logg))
				r.Delete("/", controllers.CancelSubscription(svcs.Subscriptions, logg))
			})
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationsCount(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.AdminPing())
		r.Get("/v1/payouts", controllers.AdminListPayouts(svcs.Ledger, logg))
		r.Route("/v1/outbox/dlq", func(r chi.Router) {
			r.Get("/", controllers.AdminListOutboxDLQ(svcs.OutboxDLQ, logg))
			r.Get("/{eventId}", controllers.AdminOutboxDLQDetail(svcs.OutboxDLQ, logg))
		})
		r.Route("/v1/billing/plans", func(r chi.Router) {
			r.Get("/", controllers.AdminBillingPlansList(svcs.Billing, logg))
			r.Post("/", controllers.AdminBillingPlanCreate(svcs.Billing, logg))
			r.Put("/{planId}", controllers.AdminBillingPlanUpdate(svcs.Billing, logg))
			r.Delete("/{planId}", controllers.AdminBillingPlanDelete(svcs.Billing, logg))
		})
	})

	return r
}
