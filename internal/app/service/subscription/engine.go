package subscription

import (
	"context"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/subsync/internal/app/service/normalizer"
	"github.com/fatflowers/subsync/internal/models"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/metrics"
	"github.com/fatflowers/subsync/pkg/types"
)

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	// OutcomeIgnored means the fact was valid but deliberately caused no write.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnchanged means the record already satisfied the request.
	OutcomeUnchanged Outcome = "unchanged"
)

type Result struct {
	Outcome      Outcome              `json:"outcome"`
	Reason       string               `json:"reason,omitempty"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// Engine decides the target record state for every signal and writes it through the Store.
type Engine struct {
	store   Store
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEngine(store Store, log *zap.SugaredLogger, m *metrics.Metrics) *Engine {
	return &Engine{store: store, log: log, metrics: m, now: time.Now}
}

// Store exposes the gateway for read paths.
func (e *Engine) Store() Store { return e.store }

// Now is the engine clock.
func (e *Engine) Now() time.Time { return e.now() }

// Apply reconciles one normalized fact onto the user's record.
func (e *Engine) Apply(ctx context.Context, fact *normalizer.Fact) (*Result, error) {
	if fact == nil || fact.UserID == "" {
		return nil, apperr.Validation("fact has no user id")
	}
	var (
		res *Result
		err error
	)
	switch fact.Kind {
	case normalizer.KindConfirmed:
		res, err = e.confirm(ctx, fact)
	case normalizer.KindCanceled:
		res, err = e.cancel(ctx, fact)
	case normalizer.KindDelinquent:
		res, err = e.delinquent(ctx, fact)
	case normalizer.KindFailed:
		// A failed checkout must not downgrade an earlier successful payment.
		res = &Result{Outcome: OutcomeIgnored, Reason: "failed payment leaves the record untouched"}
	default:
		res = &Result{Outcome: OutcomeIgnored, Reason: "status " + fact.Status + " is not actionable"}
	}
	if err != nil {
		e.metrics.ObserveReconcile(string(fact.Provider), string(fact.Kind), "error")
		return nil, err
	}
	e.metrics.ObserveReconcile(string(fact.Provider), string(fact.Kind), string(res.Outcome))
	logctx.FromCtx(ctx, e.log).Infow("reconcile_"+string(res.Outcome),
		"user_id", fact.UserID, "provider", fact.Provider, "kind", fact.Kind,
		"event_type", fact.EventType, "event_id", fact.EventID, "reason", res.Reason)
	return res, nil
}

func (e *Engine) confirm(ctx context.Context, fact *normalizer.Fact) (*Result, error) {
	existing, err := e.getOptional(ctx, fact.UserID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	interval := types.ParseInterval(string(fact.Interval))
	end := ComputePeriodEnd(interval, now)
	patch := Patch{
		Status:             lo.ToPtr(types.SubscriptionStatusActive),
		Provider:           lo.ToPtr(fact.Provider),
		Interval:           &interval,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &end,
		CancelAtPeriodEnd:  lo.ToPtr(false),
		LastEventAt:        lo.ToPtr(fact.OccurredAt),
		ClearExternalRefs:  existing == nil || existing.Provider != fact.Provider,
	}
	setIDs(&patch, fact)
	sub, err := e.store.Upsert(ctx, fact.UserID, patch, factChange(types.SubscriptionChangeReasonProviderConfirmed, fact))
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeApplied, Subscription: sub}, nil
}

func (e *Engine) cancel(ctx context.Context, fact *normalizer.Fact) (*Result, error) {
	existing, reason, err := e.matching(ctx, fact)
	if err != nil || existing == nil {
		return &Result{Outcome: OutcomeIgnored, Reason: reason}, err
	}
	patch := Patch{
		Status:            lo.ToPtr(types.SubscriptionStatusCanceled),
		CancelAtPeriodEnd: lo.ToPtr(true),
		LastEventAt:       lo.ToPtr(fact.OccurredAt),
	}
	sub, err := e.store.Upsert(ctx, fact.UserID, patch, factChange(types.SubscriptionChangeReasonProviderCanceled, fact))
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeApplied, Subscription: sub}, nil
}

func (e *Engine) delinquent(ctx context.Context, fact *normalizer.Fact) (*Result, error) {
	existing, reason, err := e.matching(ctx, fact)
	if err != nil || existing == nil {
		return &Result{Outcome: OutcomeIgnored, Reason: reason}, err
	}
	switch existing.Status {
	case types.SubscriptionStatusActive:
	case types.SubscriptionStatusPastDue:
		return &Result{Outcome: OutcomeUnchanged, Subscription: existing}, nil
	default:
		return &Result{Outcome: OutcomeIgnored, Reason: "only active subscriptions become past_due"}, nil
	}
	patch := Patch{
		Status:      lo.ToPtr(types.SubscriptionStatusPastDue),
		LastEventAt: lo.ToPtr(fact.OccurredAt),
	}
	sub, err := e.store.Upsert(ctx, fact.UserID, patch, factChange(types.SubscriptionChangeReasonProviderDelinquent, fact))
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeApplied, Subscription: sub}, nil
}

// matching returns the user's record when fact refers to it, or a reason why the fact is stale.
func (e *Engine) matching(ctx context.Context, fact *normalizer.Fact) (*models.Subscription, string, error) {
	existing, err := e.getOptional(ctx, fact.UserID)
	if err != nil {
		return nil, "", err
	}
	switch {
	case existing == nil:
		return nil, "no subscription record", nil
	case existing.Provider != fact.Provider:
		return nil, "record belongs to provider " + string(existing.Provider), nil
	case fact.ExternalSubscriptionID != "" && lo.FromPtr(existing.ExternalSubscriptionID) != "" &&
		*existing.ExternalSubscriptionID != fact.ExternalSubscriptionID:
		return nil, "fact refers to a superseded provider subscription", nil
	}
	return existing, "", nil
}

// ForceActivate grants the user's existing record for one interval without a provider confirmation.
// Rows that are already active are returned unchanged.
func (e *Engine) ForceActivate(ctx context.Context, userID string, extra map[string]any) (*Result, error) {
	existing, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing.Status == types.SubscriptionStatusActive {
		return &Result{Outcome: OutcomeUnchanged, Subscription: existing}, nil
	}
	now := e.now()
	interval := existing.BillingInterval()
	end := ComputePeriodEnd(interval, now)
	patch := Patch{
		Status:             lo.ToPtr(types.SubscriptionStatusActive),
		Interval:           &interval,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &end,
		CancelAtPeriodEnd:  lo.ToPtr(false),
	}
	sub, err := e.store.Upsert(ctx, userID, patch, Change{Reason: types.SubscriptionChangeReasonFallbackActivation, Extra: extra})
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveReconcile(string(existing.Provider), "fallback", string(OutcomeApplied))
	logctx.FromCtx(ctx, e.log).Warnw("verify_fallback_activation", "user_id", userID, "provider", existing.Provider, "interval", interval)
	return &Result{Outcome: OutcomeApplied, Subscription: sub}, nil
}

// PendingCheckout is the advisory state recorded when a checkout session is created.
type PendingCheckout struct {
	UserID    string
	Provider  types.PaymentProvider
	PlanID    string
	SessionID string
	Interval  types.Interval
}

// RecordCheckout writes pending_payment unless the user currently holds an entitlement.
func (e *Engine) RecordCheckout(ctx context.Context, p PendingCheckout) (*Result, error) {
	existing, err := e.getOptional(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if existing.Entitled(e.now()) {
		return &Result{Outcome: OutcomeUnchanged, Reason: "entitled record is not downgraded to pending", Subscription: existing}, nil
	}
	interval := types.ParseInterval(string(p.Interval))
	patch := Patch{
		Status:            lo.ToPtr(types.SubscriptionStatusPendingPayment),
		Provider:          lo.ToPtr(p.Provider),
		ExternalPlanID:    lo.EmptyableToPtr(p.PlanID),
		ExternalSessionID: lo.EmptyableToPtr(p.SessionID),
		Interval:          &interval,
		CancelAtPeriodEnd: lo.ToPtr(false),
		ClearExternalRefs: true,
	}
	sub, err := e.store.Upsert(ctx, p.UserID, patch, Change{
		Reason: types.SubscriptionChangeReasonCheckoutStarted,
		Extra:  map[string]any{"provider": p.Provider, "session_id": p.SessionID, "plan_id": p.PlanID},
	})
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeApplied, Subscription: sub}, nil
}

func (e *Engine) getOptional(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := e.store.Get(ctx, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	return sub, err
}

func setIDs(p *Patch, fact *normalizer.Fact) {
	p.ExternalSubscriptionID = lo.EmptyableToPtr(fact.ExternalSubscriptionID)
	p.ExternalPlanID = lo.EmptyableToPtr(fact.ExternalPlanID)
	p.ExternalSessionID = lo.EmptyableToPtr(fact.ExternalSessionID)
}

func factChange(reason types.SubscriptionChangeReason, fact *normalizer.Fact) Change {
	return Change{Reason: reason, Extra: map[string]any{
		"provider":    fact.Provider,
		"event_id":    fact.EventID,
		"event_type":  fact.EventType,
		"status":      fact.Status,
		"occurred_at": fact.OccurredAt,
	}}
}
