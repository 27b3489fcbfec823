package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/toolyard/toolyard-backend/api/routes"
	"github.com/toolyard/toolyard-backend/internal/access"
	"github.com/toolyard/toolyard-backend/internal/auth"
	"github.com/toolyard/toolyard-backend/internal/billing"
	"github.com/toolyard/toolyard-backend/internal/checkout"
	"github.com/toolyard/toolyard-backend/internal/ledger"
	"github.com/toolyard/toolyard-backend/internal/notifications"
	"github.com/toolyard/toolyard-backend/internal/payouts"
	"github.com/toolyard/toolyard-backend/internal/stripecustomers"
	"github.com/toolyard/toolyard-backend/internal/subscriptions"
	"github.com/toolyard/toolyard-backend/internal/tools"
	"github.com/toolyard/toolyard-backend/internal/users"
	stripewebhook "github.com/toolyard/toolyard-backend/internal/webhooks/stripe"
	"github.com/toolyard/toolyard-backend/pkg/auth/session"
	"github.com/toolyard/toolyard-backend/pkg/config"
	"github.com/toolyard/toolyard-backend/pkg/db"
	"github.com/toolyard/toolyard-backend/pkg/logger"
	"github.com/toolyard/toolyard-backend/pkg/metrics"
	"github.com/toolyard/toolyard-backend/pkg/migrate"
	"github.com/toolyard/toolyard-backend/pkg/outbox"
	"github.com/toolyard/toolyard-backend/pkg/redis"
	pkgstripe "github.com/toolyard/toolyard-backend/pkg/stripe"
)

const webhookGuardScope = "stripe-webhook"

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to configure stripe", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	toolRepo := tools.NewRepository(dbClient.DB())
	billingRepo := billing.NewRepository(dbClient.DB())
	notificationRepo := notifications.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	earningsRepo := ledger.NewEarningsRepository(dbClient.DB())
	payoutRepo := ledger.NewPayoutRepository(dbClient.DB())
	historyRepo := ledger.NewBillingHistoryRepository(dbClient.DB())
	purchaseRepo := ledger.NewPurchaseRepository(dbClient.DB())
	processedEventRepo := ledger.NewProcessedEventRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	requireService(logg, "auth service", err)

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner:       dbClient,
		PasswordConfig: cfg.Password,
	})
	requireService(logg, "register service", err)

	adminRegisterService, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{
		TxRunner:       dbClient,
		PasswordConfig: cfg.Password,
	})
	requireService(logg, "admin register service", err)

	toolService, err := tools.NewService(toolRepo, userRepo)
	requireService(logg, "tool service", err)

	accessService, err := access.NewService(toolRepo, purchaseRepo)
	requireService(logg, "access service", err)

	customerService, err := stripecustomers.NewService(stripeClient, userRepo)
	requireService(logg, "stripe customer service", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tools:        toolRepo,
		Purchases:    purchaseRepo,
		Users:        userRepo,
		Customers:    customerService,
		StripeClient: checkout.NewStripeClient(stripeClient),
	})
	requireService(logg, "checkout service", err)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Earnings:  earningsRepo,
		Billing:   historyRepo,
		Payouts:   payoutRepo,
		Purchases: purchaseRepo,
	})
	requireService(logg, "ledger service", err)

	billingService, err := billing.NewService(billing.ServiceParams{Repo: billingRepo})
	requireService(logg, "billing service", err)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		BillingRepo:       billingRepo,
		Users:             userRepo,
		Customers:         customerService,
		StripeClient:      subscriptions.NewStripeClient(stripeClient),
		DefaultPriceID:    cfg.Stripe.SubscriptionPriceID,
		TransactionRunner: dbClient,
	})
	requireService(logg, "subscription service", err)

	payoutService, err := payouts.NewService(payouts.ServiceParams{
		Earnings:          earningsRepo,
		Payouts:           payoutRepo,
		Billing:           historyRepo,
		Users:             userRepo,
		StripeClient:      payouts.NewStripeClient(stripeClient),
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		MinimumCents:      cfg.Payout.MinimumCents,
		HourlyLimit:       cfg.Payout.HourlyLimit,
		Currency:          cfg.Payout.Currency,
	})
	requireService(logg, "payout service", err)

	notificationService, err := notifications.NewService(notificationRepo)
	requireService(logg, "notification service", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		ProcessedEvents:   processedEventRepo,
		Purchases:         purchaseRepo,
		Earnings:          earningsRepo,
		History:           historyRepo,
		BillingRepo:       billingRepo,
		Tools:             toolRepo,
		StripeClient:      subscriptions.NewStripeClient(stripeClient),
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	requireService(logg, "stripe webhook service", err)

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.OutboxIdempotencyTTL, webhookGuardScope)
	requireService(logg, "stripe webhook guard", err)

	registry := prometheus.NewRegistry()
	webhookMetrics := metrics.NewWebhookMetrics(registry)
	payoutMetrics := metrics.NewPayoutMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			routes.Services{
				Auth:          authService,
				Register:      registerService,
				AdminRegister: adminRegisterService,
				Tools:         toolService,
				Access:        accessService,
				Checkout:      checkoutService,
				Ledger:        ledgerService,
				Billing:       billingService,
				Subscriptions: subscriptionService,
				Payouts:       payoutService,
				Notifications: notificationService,
				OutboxDLQ:     outbox.NewDLQRepository(dbClient.DB()),
			},
			routes.Webhooks{
				Service: webhookService,
				Guard:   webhookGuard,
				Client:  stripeClient,
			},
			routes.Metrics{
				Registry: registry,
				Webhook:  webhookMetrics,
				Payout:   payoutMetrics,
			},
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("failed to create %s", name), err)
	os.Exit(1)
}
