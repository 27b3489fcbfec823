package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/toolyard/toolyard-backend/api/responses"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/logger"
	pkgredis "github.com/toolyard/toolyard-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// replayRule marks a route as replay-protected. Exact matches the full chi
// route pattern; prefix/suffix cover parameterized patterns such as
// /api/v1/notifications/{notificationId}/read.
type replayRule struct {
	method string
	exact  string
	prefix string
	suffix string
	ttl    time.Duration
}

func (rule replayRule) matches(method, pattern string) bool {
	if rule.method != method {
		return false
	}
	if rule.exact != "" {
		return pattern == rule.exact
	}
	return strings.HasPrefix(pattern, rule.prefix) && strings.HasSuffix(pattern, rule.suffix)
}

var replayRules = []replayRule{
	{method: http.MethodPost, exact: "/api/v1/auth/register", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/payouts/connect", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/tools", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/notifications/", suffix: "/read", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/notifications/read-all", ttl: defaultIdempotencyTTL},
	// Money movement keeps its replay window long enough to outlive client
	// retry storms and support escalations.
	{method: http.MethodPost, exact: "/api/v1/checkout", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/payouts", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/billing/subscription", ttl: criticalIdempotencyTTL},
}

// replayRecord is the cached response stored in Redis per idempotency key.
// RequestHash pins the key to one request body so a reused key with a
// different payload is rejected instead of silently answered.
type replayRecord struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the stored response for duplicate deliveries of
// replay-protected routes, keyed by the Idempotency-Key header scoped to the
// authenticated user.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if idempotencyKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashBody(body)
			key := store.IdempotencyKey(buildScope(r), idempotencyKey)
			if replayed := replayStored(w, r, store, logg, key, requestHash); replayed {
				return
			}

			var captured bytes.Buffer
			rec := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			rec.Tee(&captured)
			next.ServeHTTP(rec, r)

			status := rec.Status()
			if status == 0 {
				status = http.StatusOK
			}
			record := replayRecord{
				Status:      status,
				Body:        base64.StdEncoding.EncodeToString(captured.Bytes()),
				ContentType: rec.Header().Get("Content-Type"),
				RequestHash: requestHash,
			}

			payload, marshalErr := json.Marshal(record)
			if marshalErr != nil {
				if logg != nil {
					logg.Error(r.Context(), "marshal idempotency record", marshalErr)
				}
				return
			}
			if _, setErr := store.SetNX(r.Context(), key, string(payload), ttl); setErr != nil {
				// The response already went out; losing the record only
				// costs replay protection for this one key.
				if logg != nil {
					logg.Error(r.Context(), "persist idempotency record", setErr)
				}
			}
		})
	}
}

// replayStored answers the request from the cached record when one exists.
// It reports true when it wrote a response and the handler must not run.
func replayStored(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, logg *logger.Logger, key, requestHash string) bool {
	stored, err := store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false
		}
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return true
	}
	if stored == "" {
		return false
	}

	var record replayRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return true
	}
	if record.RequestHash != requestHash {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return true
	}

	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
	return true
}

func buildScope(r *http.Request) string {
	return strings.Join([]string{
		UserIDFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, rule := range replayRules {
		if rule.matches(method, pattern) {
			return rule.ttl, true
		}
	}
	return 0, false
}
