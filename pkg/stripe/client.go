package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

const defaultCurrency = "mxn"

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API client plus env-specific checkout settings.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
	currency      string
	successURL    string
	cancelURL     string
}

// NewClient initializes Stripe once with the configured secrets and env.
// The webhook signing secret is optional; without it webhooks are not served.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey)
	stripe.Key = apiKey

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	client := &Client{
		api:           api,
		environment:   env,
		signingSecret: strings.TrimSpace(cfg.Secret),
		currency:      currency,
		successURL:    strings.TrimSpace(cfg.SuccessURL),
		cancelURL:     strings.TrimSpace(cfg.CancelURL),
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"stripe_env":      env,
			"stripe_currency": currency,
			"stripe_webhooks": client.WebhooksEnabled(),
		})
		logg.Info(ctx, "stripe client initialized")
	}

	return client, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// WebhooksEnabled reports whether a signing secret is configured.
func (c *Client) WebhooksEnabled() bool {
	return c != nil && c.signingSecret != ""
}

// Currency returns the lowercase ISO currency used for checkout sessions.
func (c *Client) Currency() string {
	if c == nil || c.currency == "" {
		return defaultCurrency
	}
	return c.currency
}

// SuccessURL is where Stripe redirects after a completed checkout.
func (c *Client) SuccessURL() string {
	if c == nil {
		return ""
	}
	return c.successURL
}

// CancelURL is where Stripe redirects when the customer abandons checkout.
func (c *Client) CancelURL() string {
	if c == nil {
		return ""
	}
	return c.cancelURL
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
