package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripelib "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/fatflowers/subsync/internal/app/service/normalizer"
	"github.com/fatflowers/subsync/internal/platform/paddle"
	"github.com/fatflowers/subsync/internal/platform/paypal"
	"github.com/fatflowers/subsync/internal/platform/stripe"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/config"
	"github.com/fatflowers/subsync/pkg/types"
)

var monthly = &types.Plan{
	ID:             "pro_monthly",
	ProviderID:     types.PaymentProviderCard,
	ProviderPlanID: "price_123",
	Interval:       types.IntervalMonth,
}

type fakeCard struct {
	lastReq   stripe.CheckoutRequest
	session   *stripelib.CheckoutSession
	err       error
	verifyErr error
}

func (f *fakeCard) CreateSubscriptionCheckout(req stripe.CheckoutRequest) (*stripelib.CheckoutSession, error) {
	f.lastReq = req
	return f.session, f.err
}

func (f *fakeCard) GetCheckoutSession(string) (*stripelib.CheckoutSession, error) {
	return f.session, f.err
}

func (f *fakeCard) VerifyWebhook([]byte, string) error { return f.verifyErr }

type fakePayPal struct {
	sub      *paypal.Subscription
	err      error
	verified bool
}

func (f *fakePayPal) CreateSubscription(context.Context, paypal.CreateSubscriptionRequest) (*paypal.Subscription, error) {
	return f.sub, f.err
}

func (f *fakePayPal) GetSubscription(context.Context, string) (*paypal.Subscription, error) {
	return f.sub, f.err
}

func (f *fakePayPal) VerifyWebhookSignature(context.Context, http.Header, []byte) (bool, error) {
	return f.verified, f.err
}

type fakeAggregator struct {
	lastReq paddle.CheckoutRequest
	txn     *paddle.Transaction
	err     error
}

func (f *fakeAggregator) CreateTransaction(_ context.Context, req paddle.CheckoutRequest) (*paddle.Transaction, error) {
	f.lastReq = req
	return f.txn, f.err
}

func (f *fakeAggregator) GetTransaction(context.Context, string) (*paddle.Transaction, error) {
	return f.txn, f.err
}

func (f *fakeAggregator) VerifyWebhook(context.Context, http.Header, []byte) (bool, error) {
	return false, nil
}

// slowClient blocks until its context ends.
type slowClient struct{}

func (slowClient) Provider() types.PaymentProvider { return types.PaymentProviderCard }

func (slowClient) CreateCheckout(ctx context.Context, _ CheckoutRequest) (*Checkout, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowClient) LookupSession(context.Context, string) (*normalizer.Session, error) {
	time.Sleep(time.Second)
	return &normalizer.Session{}, nil
}

func (slowClient) VerifyWebhook(context.Context, http.Header, []byte) error { return nil }

func TestRegistry_Get(t *testing.T) {
	r := NewRegistryWith(time.Second, nil, NewCardClient(&fakeCard{}, "s", "c"))

	c, err := r.Get(types.PaymentProviderCard)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentProviderCard, c.Provider())

	_, err = r.Get(types.PaymentProviderPayPal)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))

	_, err = r.Get(types.PaymentProviderInternal)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestNewRegistry_SkipsProvidersWithoutCredentials(t *testing.T) {
	cfg := &config.Config{}
	cfg.Providers.Timeout = time.Second
	r, err := NewRegistry(cfg, zap.NewNop().Sugar(), nil)
	require.NoError(t, err)
	for _, p := range types.ExternalProviders {
		_, err := r.Get(p)
		assert.True(t, apperr.Is(err, apperr.KindConfiguration), p)
	}
}

func TestTimedClient_DeadlineIsRetryableTimeout(t *testing.T) {
	r := NewRegistryWith(20*time.Millisecond, nil, slowClient{})
	c, err := r.Get(types.PaymentProviderCard)
	require.NoError(t, err)

	_, err = c.CreateCheckout(context.Background(), CheckoutRequest{UserID: "u1", Plan: monthly})
	assert.True(t, apperr.Is(err, apperr.KindTimeout))
	assert.True(t, apperr.IsRetryable(err))

	// Calls that ignore their context are still cut off.
	start := time.Now()
	_, err = c.LookupSession(context.Background(), "cs_1")
	assert.True(t, apperr.Is(err, apperr.KindTimeout))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCardClient_CreateCheckout(t *testing.T) {
	api := &fakeCard{session: &stripelib.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"}}
	c := NewCardClient(api, "https://app/ok", "https://app/cancel")

	out, err := c.CreateCheckout(context.Background(), CheckoutRequest{UserID: "u1", Plan: monthly})
	require.NoError(t, err)
	assert.Equal(t, &Checkout{URL: "https://pay.example/cs_1", SessionID: "cs_1"}, out)
	assert.Equal(t, "price_123", api.lastReq.PriceID)
	assert.Equal(t, "https://app/ok", api.lastReq.SuccessURL)
	assert.Equal(t, map[string]string{"user_id": "u1", "plan_id": "price_123", "interval": "month"}, api.lastReq.Metadata)
}

func TestCardClient_CreateCheckoutErrors(t *testing.T) {
	api := &fakeCard{err: &stripelib.Error{HTTPStatusCode: http.StatusBadRequest, Msg: "No such price"}}
	_, err := NewCardClient(api, "", "").CreateCheckout(context.Background(), CheckoutRequest{UserID: "u1", Plan: monthly})
	assert.True(t, apperr.Is(err, apperr.KindProvider))
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))
	assert.False(t, apperr.IsRetryable(err))

	api = &fakeCard{session: &stripelib.CheckoutSession{ID: "cs_1"}}
	_, err = NewCardClient(api, "", "").CreateCheckout(context.Background(), CheckoutRequest{UserID: "u1", Plan: monthly})
	assert.True(t, apperr.Is(err, apperr.KindProvider))
}

func TestCardClient_LookupSession(t *testing.T) {
	api := &fakeCard{session: &stripelib.CheckoutSession{
		ID:                "cs_1",
		Status:            stripelib.CheckoutSessionStatusComplete,
		PaymentStatus:     stripelib.CheckoutSessionPaymentStatusPaid,
		ClientReferenceID: "u1",
		Metadata:          map[string]string{"plan_id": "price_123", "interval": "year"},
		Customer:          &stripelib.Customer{ID: "cus_1"},
		Subscription:      &stripelib.Subscription{ID: "sub_1"},
	}}
	s, err := NewCardClient(api, "", "").LookupSession(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, &normalizer.Session{
		ID:             "cs_1",
		Status:         "paid",
		MetadataUserID: "u1",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		PlanID:         "price_123",
		Interval:       "year",
	}, s)

	api.session = &stripelib.CheckoutSession{
		ID:            "cs_2",
		Status:        stripelib.CheckoutSessionStatusExpired,
		PaymentStatus: stripelib.CheckoutSessionPaymentStatusUnpaid,
		Metadata:      map[string]string{"user_id": "u2"},
	}
	s, err = NewCardClient(api, "", "").LookupSession(context.Background(), "cs_2")
	require.NoError(t, err)
	assert.Equal(t, "expired", s.Status)
	assert.Equal(t, "u2", s.MetadataUserID)
}

func TestCardClient_LookupSessionNotFound(t *testing.T) {
	api := &fakeCard{err: &stripelib.Error{HTTPStatusCode: http.StatusNotFound, Code: stripelib.ErrorCodeResourceMissing}}
	_, err := NewCardClient(api, "", "").LookupSession(context.Background(), "cs_missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCardClient_VerifyWebhook(t *testing.T) {
	c := NewCardClient(&fakeCard{verifyErr: stripe.ErrMissingSignature}, "", "")
	err := c.VerifyWebhook(context.Background(), http.Header{}, []byte("{}"))
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	c = NewCardClient(&fakeCard{}, "", "")
	assert.NoError(t, c.VerifyWebhook(context.Background(), http.Header{}, []byte("{}")))
}

func TestPayPalClient_CreateCheckout(t *testing.T) {
	api := &fakePayPal{sub: &paypal.Subscription{
		ID:    "I-1",
		Links: []paypal.Link{{Rel: "self", Href: "https://x/self"}, {Rel: "approve", Href: "https://x/approve"}},
	}}
	out, err := NewPayPalClient(api, "", "").CreateCheckout(context.Background(), CheckoutRequest{UserID: "u1", Plan: monthly})
	require.NoError(t, err)
	assert.Equal(t, &Checkout{URL: "https://x/approve", SessionID: "I-1"}, out)

	api.sub.Links = nil
	_, err = NewPayPalClient(api, "", "").CreateCheckout(context.Background(), CheckoutRequest{UserID: "u1", Plan: monthly})
	assert.True(t, apperr.Is(err, apperr.KindProvider))
}

func TestPayPalClient_LookupSession(t *testing.T) {
	api := &fakePayPal{sub: &paypal.Subscription{
		ID:         "I-1",
		PlanID:     "P-1",
		Status:     "ACTIVE",
		CustomID:   "u1",
		Subscriber: paypal.Subscriber{PayerID: "PAYER"},
	}}
	s, err := NewPayPalClient(api, "", "").LookupSession(context.Background(), "I-1")
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", s.Status)
	assert.Equal(t, "u1", s.MetadataUserID)
	assert.Equal(t, "PAYER", s.CustomerID)
	assert.Equal(t, "I-1", s.SubscriptionID)

	api = &fakePayPal{err: &paypal.APIError{Status: http.StatusNotFound}}
	_, err = NewPayPalClient(api, "", "").LookupSession(context.Background(), "I-2")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	api = &fakePayPal{err: &paypal.APIError{Status: http.StatusServiceUnavailable, Body: "down"}}
	_, err = NewPayPalClient(api, "", "").LookupSession(context.Background(), "I-3")
	assert.True(t, apperr.Is(err, apperr.KindProvider))
	assert.True(t, apperr.IsRetryable(err))
}

func TestPayPalClient_VerifyWebhook(t *testing.T) {
	assert.True(t, apperr.Is(
		NewPayPalClient(&fakePayPal{}, "", "").VerifyWebhook(context.Background(), http.Header{}, nil),
		apperr.KindUnauthorized,
	))
	assert.NoError(t, NewPayPalClient(&fakePayPal{verified: true}, "", "").VerifyWebhook(context.Background(), http.Header{}, nil))
}

func TestAggregatorClient(t *testing.T) {
	plan := &types.Plan{ID: "pro_yearly", ProviderID: types.PaymentProviderAggregator, ProviderPlanID: "pri_1", Interval: types.IntervalYear}
	api := &fakeAggregator{txn: &paddle.Transaction{ID: "txn_1", CheckoutURL: "https://pay/txn_1"}}
	c := NewAggregatorClient(api, "https://app/ok")

	out, err := c.CreateCheckout(context.Background(), CheckoutRequest{UserID: "u1", Plan: plan})
	require.NoError(t, err)
	assert.Equal(t, "txn_1", out.SessionID)
	assert.Equal(t, "pri_1", api.lastReq.PriceID)
	assert.Equal(t, "year", api.lastReq.CustomData["interval"])

	api.txn = &paddle.Transaction{
		ID:         "txn_1",
		Status:     "completed",
		CustomerID: "ctm_1",
		CustomData: map[string]string{"user_id": "u1", "plan_id": "pri_1", "interval": "year"},
	}
	s, err := c.LookupSession(context.Background(), "txn_1")
	require.NoError(t, err)
	assert.Equal(t, "completed", s.Status)
	assert.Equal(t, "u1", s.MetadataUserID)
	assert.Equal(t, "year", s.Interval)

	api.err = errors.New("boom")
	_, err = c.LookupSession(context.Background(), "txn_1")
	assert.True(t, apperr.Is(err, apperr.KindProvider))

	api.err = context.DeadlineExceeded
	_, err = c.LookupSession(context.Background(), "txn_1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.True(t, apperr.Is(c.VerifyWebhook(context.Background(), http.Header{}, nil), apperr.KindUnauthorized))
}
