// Package provider adapts the external payment platforms to one client contract.
package provider

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/subsync/internal/app/service/normalizer"
	"github.com/fatflowers/subsync/internal/platform/paddle"
	"github.com/fatflowers/subsync/internal/platform/paypal"
	"github.com/fatflowers/subsync/internal/platform/stripe"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/config"
	"github.com/fatflowers/subsync/pkg/metrics"
	"github.com/fatflowers/subsync/pkg/types"
)

type CheckoutRequest struct {
	UserID string
	Plan   *types.Plan
}

type Checkout struct {
	URL       string `json:"checkout_url"`
	SessionID string `json:"session_id"`
}

// Client is one external payment provider.
type Client interface {
	Provider() types.PaymentProvider
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	// LookupSession returns apperr NotFound when the provider has no such session.
	LookupSession(ctx context.Context, sessionID string) (*normalizer.Session, error)
	// VerifyWebhook returns apperr Unauthorized when the delivery is not signed by the provider.
	VerifyWebhook(ctx context.Context, h http.Header, payload []byte) error
}

// Registry resolves configured providers. Every client it returns is bounded by the provider timeout.
type Registry struct {
	clients map[types.PaymentProvider]Client
}

func NewRegistry(cfg *config.Config, log *zap.SugaredLogger, m *metrics.Metrics) (*Registry, error) {
	pc := cfg.Providers
	var clients []Client
	if pc.Card.SecretKey != "" {
		clients = append(clients, NewCardClient(stripe.New(pc.Card.SecretKey, pc.Card.WebhookSecret), pc.SuccessURL, pc.CancelURL))
	}
	if pc.PayPal.ClientID != "" && pc.PayPal.ClientSecret != "" {
		pp := paypal.New(paypal.Config{
			ClientID:     pc.PayPal.ClientID,
			ClientSecret: pc.PayPal.ClientSecret,
			BaseURL:      pc.PayPal.BaseURL,
			WebhookID:    pc.PayPal.WebhookID,
		}, nil)
		clients = append(clients, NewPayPalClient(pp, pc.SuccessURL, pc.CancelURL))
	}
	if pc.Aggregator.APIKey != "" {
		pd, err := paddle.New(paddle.Config{
			APIKey:        pc.Aggregator.APIKey,
			WebhookSecret: pc.Aggregator.WebhookSecret,
			Environment:   pc.Aggregator.Environment,
		})
		if err != nil {
			return nil, err
		}
		clients = append(clients, NewAggregatorClient(pd, pc.SuccessURL))
	}
	r := NewRegistryWith(pc.Timeout, m, clients...)
	for _, p := range types.ExternalProviders {
		if _, ok := r.clients[p]; !ok {
			log.Warnw("payment provider not configured", "provider", p)
		}
	}
	return r, nil
}

// NewRegistryWith wraps clients with the timeout and metrics decorator.
func NewRegistryWith(timeout time.Duration, m *metrics.Metrics, clients ...Client) *Registry {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &Registry{clients: make(map[types.PaymentProvider]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Provider()] = &timedClient{inner: c, timeout: timeout, metrics: m}
	}
	return r
}

func (r *Registry) Get(p types.PaymentProvider) (Client, error) {
	if !p.External() {
		return nil, apperr.Validation("unsupported provider: %s", p)
	}
	c, ok := r.clients[p]
	if !ok {
		return nil, apperr.Configuration("provider %s is not configured", p)
	}
	return c, nil
}

var Module = fx.Options(
	fx.Provide(NewRegistry),
)
