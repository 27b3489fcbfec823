package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/toolyard/toolyard-backend/api/responses"
	"github.com/toolyard/toolyard-backend/pkg/config"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/logger"
)

const readyProbeTimeout = 2 * time.Second

type dependencyPinger interface {
	Ping(ctx context.Context) error
}

// HealthLive reports process liveness without touching any dependency.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Toolyard-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness by pinging Postgres and Redis.
func HealthReady(cfg *config.Config, database, cache dependencyPinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Toolyard-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		var failed error
		if database != nil {
			if err := database.Ping(ctx); err != nil {
				checks["database"] = "unavailable"
				failed = err
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				checks["redis"] = "unavailable"
				failed = err
			}
		}
		if failed != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, failed, "dependency unavailable").WithDetails(checks))
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
