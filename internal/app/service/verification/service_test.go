package verification

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/subsync/internal/app/service/normalizer"
	"github.com/fatflowers/subsync/internal/app/service/provider"
	"github.com/fatflowers/subsync/internal/app/service/subscription"
	"github.com/fatflowers/subsync/internal/platform/db/dbtest"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/config"
	"github.com/fatflowers/subsync/pkg/types"
)

type stubClient struct {
	calls   atomic.Int32
	session *normalizer.Session
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (s *stubClient) Provider() types.PaymentProvider { return types.PaymentProviderCard }

func (s *stubClient) CreateCheckout(context.Context, provider.CheckoutRequest) (*provider.Checkout, error) {
	return nil, nil
}

func (s *stubClient) LookupSession(ctx context.Context, _ string) (*normalizer.Session, error) {
	s.calls.Add(1)
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.session, s.err
}

func (s *stubClient) VerifyWebhook(context.Context, http.Header, []byte) error { return nil }

type fixture struct {
	svc    *Service
	engine *subscription.Engine
	store  subscription.Store
}

func newFixture(t *testing.T, client *stubClient, fallback bool, timeout time.Duration) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.Verification.FallbackActivation = fallback
	log := zap.NewNop().Sugar()
	store := subscription.NewGormStore(dbtest.Open(t), log)
	engine := subscription.NewEngine(store, log, nil)
	registry := provider.NewRegistryWith(timeout, nil, client)
	return &fixture{svc: New(cfg, registry, normalizer.NewSet(cfg), engine, log), engine: engine, store: store}
}

func (f *fixture) pending(t *testing.T, userID string, interval types.Interval) {
	t.Helper()
	_, err := f.engine.RecordCheckout(context.Background(), subscription.PendingCheckout{
		UserID:    userID,
		Provider:  types.PaymentProviderCard,
		PlanID:    "price_m",
		SessionID: "cs_" + userID,
		Interval:  interval,
	})
	require.NoError(t, err)
}

func paid(userID string) *normalizer.Session {
	return &normalizer.Session{ID: "cs_" + userID, Status: "paid", MetadataUserID: userID, SubscriptionID: "sub_" + userID, PlanID: "price_m"}
}

func TestVerify_AlreadyActiveIsNotShortened(t *testing.T) {
	client := &stubClient{}
	f := newFixture(t, client, true, time.Second)
	ctx := context.Background()
	end := time.Now().Add(20 * 24 * time.Hour).Truncate(time.Second)
	_, err := f.store.Upsert(ctx, "u1", subscription.Patch{
		Status:           lo.ToPtr(types.SubscriptionStatusActive),
		Provider:         lo.ToPtr(types.PaymentProviderCard),
		CurrentPeriodEnd: &end,
	}, subscription.Change{Reason: types.SubscriptionChangeReasonProviderConfirmed})
	require.NoError(t, err)

	res, err := f.svc.Verify(ctx, &Request{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Zero(t, client.calls.Load())

	sub, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, sub.CurrentPeriodEnd.Equal(end))
}

func TestVerify_ConfirmedSessionActivates(t *testing.T) {
	client := &stubClient{session: paid("u1")}
	f := newFixture(t, client, true, time.Second)
	ctx := context.Background()
	f.pending(t, "u1", types.IntervalMonth)

	res, err := f.svc.Verify(ctx, &Request{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, types.SubscriptionStatusActive, res.Status)
	assert.Equal(t, "sub_u1", lo.FromPtr(res.Subscription.ExternalSubscriptionID))
	assert.True(t, res.Subscription.CurrentPeriodEnd.After(time.Now().AddDate(0, 0, 27)))
}

func TestVerify_UnpaidSessionStaysPending(t *testing.T) {
	s := paid("u1")
	s.Status = "unpaid"
	f := newFixture(t, &stubClient{session: s}, true, time.Second)
	f.pending(t, "u1", types.IntervalMonth)

	res, err := f.svc.Verify(context.Background(), &Request{UserID: "u1", SessionID: "cs_u1"})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, types.SubscriptionStatusPendingPayment, res.Status)
	assert.Contains(t, res.Message, "unpaid")
}

func TestVerify_SessionOfAnotherUser(t *testing.T) {
	f := newFixture(t, &stubClient{session: paid("u2")}, true, time.Second)
	f.pending(t, "u1", types.IntervalMonth)

	_, err := f.svc.Verify(context.Background(), &Request{UserID: "u1"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	sub, err := f.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusPendingPayment, sub.Status)
}

func TestVerify_TimeoutIsRetryableAndWritesNothing(t *testing.T) {
	client := &stubClient{block: make(chan struct{})}
	f := newFixture(t, client, true, 20*time.Millisecond)
	f.pending(t, "u1", types.IntervalMonth)

	_, err := f.svc.Verify(context.Background(), &Request{UserID: "u1"})
	assert.True(t, apperr.Is(err, apperr.KindTimeout))
	assert.True(t, apperr.IsRetryable(err))

	sub, err := f.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusPendingPayment, sub.Status)
}

func TestVerify_NotFoundFallsBackToRecordedInterval(t *testing.T) {
	client := &stubClient{err: apperr.NotFound("card session missing")}
	f := newFixture(t, client, true, time.Second)
	f.pending(t, "u1", types.IntervalYear)

	res, err := f.svc.Verify(context.Background(), &Request{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, types.SubscriptionStatusActive, res.Status)
	assert.True(t, res.Subscription.CurrentPeriodEnd.After(time.Now().AddDate(0, 11, 0)))
}

func TestVerify_FallbackDisabled(t *testing.T) {
	f := newFixture(t, &stubClient{err: apperr.NotFound("missing")}, false, time.Second)
	f.pending(t, "u1", types.IntervalMonth)

	res, err := f.svc.Verify(context.Background(), &Request{UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, res.Verified)

	sub, err := f.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusPendingPayment, sub.Status)
}

func TestVerify_ProviderRejectionsDoNotFallBack(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   apperr.Kind
	}{
		{"rejected credentials", http.StatusUnauthorized, apperr.KindConfiguration},
		{"forbidden", http.StatusForbidden, apperr.KindConfiguration},
		{"bad request", http.StatusBadRequest, apperr.KindProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{err: apperr.Provider("card.lookup_session", tt.status, `{"error":"denied"}`, nil)}
			f := newFixture(t, client, true, time.Second)
			f.pending(t, "u1", types.IntervalMonth)

			_, err := f.svc.Verify(context.Background(), &Request{UserID: "u1"})
			assert.True(t, apperr.Is(err, tt.kind))
			assert.False(t, apperr.IsRetryable(err))

			sub, err := f.store.Get(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, types.SubscriptionStatusPendingPayment, sub.Status)
		})
	}
}

func TestVerify_ProviderOutageFallsBack(t *testing.T) {
	client := &stubClient{err: apperr.Provider("card.lookup_session", http.StatusBadGateway, "", nil)}
	f := newFixture(t, client, true, time.Second)
	f.pending(t, "u1", types.IntervalMonth)

	res, err := f.svc.Verify(context.Background(), &Request{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, types.SubscriptionStatusActive, res.Status)
}

func TestVerify_NoRecordNoSession(t *testing.T) {
	f := newFixture(t, &stubClient{}, true, time.Second)
	_, err := f.svc.Verify(context.Background(), &Request{UserID: "ghost"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Verify(context.Background(), &Request{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestVerify_ExplicitSessionWithoutRecord(t *testing.T) {
	f := newFixture(t, &stubClient{session: paid("u9")}, true, time.Second)
	res, err := f.svc.Verify(context.Background(), &Request{UserID: "u9", SessionID: "cs_u9", Provider: types.PaymentProviderCard})
	require.NoError(t, err)
	assert.True(t, res.Verified)
}

func TestLookup_CollapsesConcurrentQueries(t *testing.T) {
	client := &stubClient{session: paid("u1"), block: make(chan struct{}), entered: make(chan struct{}, 8)}
	f := newFixture(t, client, true, 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := f.svc.lookup(context.Background(), types.PaymentProviderCard, "cs_u1")
			if assert.NoError(t, err) {
				assert.Equal(t, "cs_u1", s.ID)
			}
		}()
	}
	<-client.entered
	time.Sleep(100 * time.Millisecond)
	close(client.block)
	wg.Wait()
	assert.EqualValues(t, 1, client.calls.Load())
}

func TestVerify_CanceledCallerDoesNotFailCollapsedPeer(t *testing.T) {
	unpaid := paid("u1")
	unpaid.Status = "unpaid"
	client := &stubClient{session: unpaid, block: make(chan struct{}), entered: make(chan struct{}, 8)}
	f := newFixture(t, client, true, 5*time.Second)
	f.pending(t, "u1", types.IntervalMonth)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := f.svc.Verify(ctxA, &Request{UserID: "u1"})
		errA <- err
	}()
	type outcome struct {
		res *Result
		err error
	}
	doneB := make(chan outcome, 1)
	go func() {
		res, err := f.svc.Verify(context.Background(), &Request{UserID: "u1"})
		doneB <- outcome{res, err}
	}()

	<-client.entered
	time.Sleep(50 * time.Millisecond)
	cancelA()
	err := <-errA
	assert.True(t, apperr.Is(err, apperr.KindTimeout))
	assert.True(t, apperr.IsRetryable(err))

	close(client.block)
	b := <-doneB
	require.NoError(t, b.err)
	assert.False(t, b.res.Verified)
	assert.Equal(t, types.SubscriptionStatusPendingPayment, b.res.Status)

	sub, err := f.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusPendingPayment, sub.Status)
}
