package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/toolyard/toolyard-backend/pkg/config"
	"github.com/toolyard/toolyard-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)

// Client holds the verified Stripe configuration. Constructing it installs
// the package-global API key that stripe-go's per-resource packages read, so
// downstream wrappers can assume Stripe is ready once a Client exists.
type Client struct {
	environment   string
	signingSecret string
}

// NewClient checks the configured secrets against the declared environment
// and installs the API key. A live deployment holding a test key, or the
// reverse, fails here at startup instead of on the first charge.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("stripe api key is required")
	}
	if err := checkKeyPrefix(env, apiKey); err != nil {
		return nil, err
	}

	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}
	return &Client{environment: env, signingSecret: signingSecret}, nil
}

// SigningSecret returns the secret used to verify webhook signatures.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// Livemode reports whether the client is configured against live Stripe.
// Webhook intake compares this with the livemode flag on each event so a
// misrouted delivery is rejected instead of reconciled.
func (c *Client) Livemode() bool {
	return c != nil && c.environment == liveEnv
}

func normalizeEnv(raw string) (string, error) {
	switch env := strings.TrimSpace(strings.ToLower(raw)); env {
	case "":
		return testEnv, nil
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

// checkKeyPrefix rejects a secret key whose sk_/rk_ prefix disagrees with the
// declared environment.
func checkKeyPrefix(env, key string) error {
	for _, prefix := range []string{"sk_" + env, "rk_" + env} {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe environment %q requires an sk_%s or rk_%s secret key", env, env, env)
}
