package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/toolyard/toolyard-backend/internal/notifications"
	"github.com/toolyard/toolyard-backend/pkg/config"
	"github.com/toolyard/toolyard-backend/pkg/db"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	"github.com/toolyard/toolyard-backend/pkg/logger"
	"github.com/toolyard/toolyard-backend/pkg/outbox"
	"github.com/toolyard/toolyard-backend/pkg/pubsub"
	"github.com/toolyard/toolyard-backend/pkg/redis"
)

// ServiceParams bundles the worker dependencies.
type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	PubSub   *pubsub.Client
	Consumer *notifications.Consumer
}

// Service consumes the notification and billing subscriptions and fans
// domain events into in-app notifications.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	db       *db.Client
	redis    *redis.Client
	pubsub   *pubsub.Client
	consumer *notifications.Consumer
}

// NewService validates dependencies and builds the worker service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("notification consumer is required")
	}

	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		db:       params.DB,
		redis:    params.Redis,
		pubsub:   params.PubSub,
		consumer: params.Consumer,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks on both subscriptions until the context is canceled or a
// receive loop fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	notificationSub := s.pubsub.NotificationSubscription()
	if notificationSub == nil {
		return errors.New("notification subscription not configured")
	}
	billingSub := s.pubsub.BillingSubscription()
	if billingSub == nil {
		return errors.New("billing subscription not configured")
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.receive(ctx, "notification", notificationSub)
	}()
	go func() {
		errCh <- s.receive(ctx, "billing", billingSub)
	}()

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "consumer stopped unexpectedly", err)
		}
		return err
	}
}

func (s *Service) receive(ctx context.Context, name string, sub *gcppubsub.Subscriber) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{"subscription": name})
	s.logg.Info(logCtx, "subscription receive loop started")
	return sub.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.handleMessage(innerCtx, msg) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// handleMessage reports whether the message should be nacked. Messages that
// can never be handled (unknown types, malformed envelopes) are logged and
// acked so they do not loop forever.
func (s *Service) handleMessage(ctx context.Context, msg *gcppubsub.Message) (nack bool) {
	rawType := strings.TrimSpace(msg.Attributes["event_type"])
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": rawType,
	})

	eventType, err := enums.ParseOutboxEventType(rawType)
	if err != nil {
		s.logg.Warn(logCtx, "unknown event type on subscription")
		return false
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		s.logg.Error(logCtx, "failed to decode payload envelope", err)
		return false
	}
	if envelope.Version > outbox.PayloadVersion {
		// Redelivery will not make an unknown schema readable.
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{"version": envelope.Version}), "envelope version not supported, dropping")
		return false
	}

	start := time.Now()
	if err := s.consumer.Process(ctx, eventType, envelope); err != nil {
		return true
	}

	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"event_id":    envelope.EventID,
		"duration_ms": time.Since(start).Milliseconds(),
	}), "message handled")
	return false
}
