package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/toolyard/toolyard-backend/api/responses"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/logger"
)

// AuthRateLimitPolicy throttles an unauthenticated auth surface. Counters run
// per client IP and per submitted email, so an attacker cannot burn a
// victim's budget from many addresses, nor spray many emails from one.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	return AuthRateLimitPolicy{
		name:       strings.ToLower(strings.TrimSpace(name)),
		window:     window,
		ipLimit:    ipLimit,
		emailLimit: emailLimit,
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

func (p AuthRateLimitPolicy) surface() string {
	if p.name == "" {
		return "auth"
	}
	return p.name
}

// AuthRateLimit guards login/register style endpoints. It runs before body
// validation, so the request body is buffered and restored for the handler.
func AuthRateLimit(policy AuthRateLimitPolicy, store fixedWindowStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		limiter := &authLimiter{policy: policy, store: store, logg: logg}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if policy.ipLimit > 0 {
				if ip := clientIP(r); ip != "" {
					scope := policy.surface() + ":ip:" + ip
					if limiter.check(ctx, w, scope, policy.ipLimit, map[string]any{"scope": "ip", "ip": ip}) {
						return
					}
				}
			}

			if policy.emailLimit > 0 {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if fp := emailFingerprint(body); fp != "" {
					scope := policy.surface() + ":email:" + fp
					if limiter.check(ctx, w, scope, policy.emailLimit, map[string]any{"scope": "email", "email_hash": fp}) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

type authLimiter struct {
	policy AuthRateLimitPolicy
	store  fixedWindowStore
	logg   *logger.Logger
}

// check runs one counter and writes the response when the request cannot
// proceed. Reports whether a response has been written.
func (l *authLimiter) check(ctx context.Context, w http.ResponseWriter, scope string, limit int, fields map[string]any) bool {
	allowed, count, err := l.store.FixedWindowAllow(ctx, scope, int64(limit), l.policy.window)
	if err != nil {
		responses.WriteError(ctx, l.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return true
	}
	if allowed {
		return false
	}

	if l.logg != nil {
		fields["policy"] = l.policy.surface()
		fields["attempts"] = count
		fields["limit"] = limit
		fields["window_seconds"] = int(l.policy.window.Seconds())
		l.logg.Warn(l.logg.WithFields(ctx, fields), "auth.rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
	return true
}

// clientIP picks the closest thing to the real peer: first X-Forwarded-For
// hop, then X-Real-IP, then the socket address.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for part := range strings.SplitSeq(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// emailFingerprint hashes the normalized email from a JSON body. Raw emails
// never reach Redis or the logs.
func emailFingerprint(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
