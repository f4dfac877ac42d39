package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/fatflowers/subsync/internal/app/service/normalizer"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/metrics"
	"github.com/fatflowers/subsync/pkg/types"
)

// timedClient bounds every call by timeout and turns deadline hits into retryable Timeout errors.
type timedClient struct {
	inner   Client
	timeout time.Duration
	metrics *metrics.Metrics
}

func (t *timedClient) Provider() types.PaymentProvider { return t.inner.Provider() }

func (t *timedClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	return timed(ctx, t, "create_checkout", func(ctx context.Context) (*Checkout, error) {
		return t.inner.CreateCheckout(ctx, req)
	})
}

func (t *timedClient) LookupSession(ctx context.Context, sessionID string) (*normalizer.Session, error) {
	return timed(ctx, t, "lookup_session", func(ctx context.Context) (*normalizer.Session, error) {
		return t.inner.LookupSession(ctx, sessionID)
	})
}

func (t *timedClient) VerifyWebhook(ctx context.Context, h http.Header, payload []byte) error {
	_, err := timed(ctx, t, "verify_webhook", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.inner.VerifyWebhook(ctx, h, payload)
	})
	return err
}

func timed[T any](ctx context.Context, t *timedClient, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	start := time.Now()
	v, err := callCtx(ctx, fn)
	t.metrics.ObserveProviderCall(string(t.inner.Provider()), op, start, err)
	if err != nil {
		var zero T
		return zero, apperr.FromProviderCall(string(t.inner.Provider())+"."+op, err)
	}
	return v, nil
}

// callCtx returns when fn does or ctx ends, whichever is first. Some SDK calls take no context.
func callCtx[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
