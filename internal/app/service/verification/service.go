// Package verification confirms a checkout by asking the provider directly.
package verification

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fatflowers/subsync/internal/app/service/normalizer"
	"github.com/fatflowers/subsync/internal/app/service/provider"
	"github.com/fatflowers/subsync/internal/app/service/subscription"
	"github.com/fatflowers/subsync/internal/models"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/config"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/types"
)

type Request struct {
	UserID    string                `json:"-"`
	SessionID string                `json:"session_id,omitempty"`
	Provider  types.PaymentProvider `json:"provider,omitempty"`
}

type Result struct {
	Verified     bool                     `json:"verified"`
	Status       types.SubscriptionStatus `json:"status,omitempty"`
	Message      string                   `json:"message,omitempty"`
	Subscription *models.Subscription     `json:"subscription,omitempty"`
}

type Service struct {
	cfg         *config.Config
	providers   *provider.Registry
	normalizers *normalizer.Set
	engine      *subscription.Engine
	log         *zap.SugaredLogger
	lookups     singleflight.Group
}

func New(cfg *config.Config, providers *provider.Registry, normalizers *normalizer.Set, engine *subscription.Engine, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, providers: providers, normalizers: normalizers, engine: engine, log: log}
}

// Verify resolves the session from the request or the stored record, queries the provider and reconciles the answer.
// Timeouts surface as retryable errors with no write.
func (s *Service) Verify(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || req.UserID == "" {
		return nil, apperr.Validation("user id is required")
	}
	log := logctx.FromCtx(ctx, s.log).With("user_id", req.UserID)

	sub, err := s.engine.Store().Get(ctx, req.UserID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	if err != nil {
		sub = nil
	}
	if sub != nil && sub.Status == types.SubscriptionStatusActive {
		return &Result{Verified: true, Status: sub.Status, Message: "subscription already active", Subscription: sub}, nil
	}

	p, sessionID := req.Provider, req.SessionID
	if sub != nil {
		if p == "" {
			p = sub.Provider
		}
		if sessionID == "" && p == sub.Provider {
			sessionID = lo.FromPtr(sub.ExternalSessionID)
		}
	}
	if sessionID == "" || !p.External() {
		return s.fallback(ctx, log, req.UserID, "no provider session on record", nil)
	}

	session, err := s.lookup(ctx, p, sessionID)
	switch {
	case err == nil:
	case unconfirmed(err):
		log.Warnw("verify_lookup_failed", "provider", p, "session_id", sessionID, "error", err)
		return s.fallback(ctx, log, req.UserID, "provider could not confirm the session", err)
	default:
		return nil, err
	}

	norm, err := s.normalizers.For(p)
	if err != nil {
		return nil, err
	}
	fact, err := norm.NormalizeSession(session)
	if err != nil {
		return nil, err
	}
	if fact.UserID != req.UserID {
		return nil, apperr.Validation("session %s does not belong to this user", sessionID)
	}
	applied, err := s.engine.Apply(ctx, fact)
	if err != nil {
		return nil, err
	}
	current := lo.CoalesceOrEmpty(applied.Subscription, sub)
	out := &Result{Subscription: current}
	if current != nil {
		out.Status = current.Status
	}
	out.Verified = out.Status == types.SubscriptionStatusActive
	if !out.Verified {
		out.Message = "payment not confirmed: " + fact.Status
	}
	log.Infow("verify_completed", "provider", p, "session_id", sessionID, "kind", fact.Kind, "verified", out.Verified)
	return out, nil
}

// unconfirmed reports whether a lookup failure may fall back to activation: the
// session is unknown to the provider, or the provider itself failed (no status or 5xx).
// Timeouts, cancellations, credential and request errors never do.
func unconfirmed(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return true
	case apperr.KindProvider:
		return apperr.IsRetryable(err)
	}
	return false
}

// lookup collapses concurrent queries for the same provider session. The shared call
// runs detached from any single caller so one caller giving up does not fail the others.
func (s *Service) lookup(ctx context.Context, p types.PaymentProvider, sessionID string) (*normalizer.Session, error) {
	client, err := s.providers.Get(p)
	if err != nil {
		return nil, err
	}
	ch := s.lookups.DoChan(string(p)+":"+sessionID, func() (any, error) {
		return client.LookupSession(context.WithoutCancel(ctx), sessionID)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*normalizer.Session), nil
	case <-ctx.Done():
		return nil, apperr.FromProviderCall(string(p)+".lookup_session", ctx.Err())
	}
}

func (s *Service) fallback(ctx context.Context, log *zap.SugaredLogger, userID, reason string, cause error) (*Result, error) {
	if !s.cfg.Verification.FallbackActivation {
		return &Result{Verified: false, Message: reason}, nil
	}
	extra := map[string]any{"reason": reason}
	if cause != nil {
		extra["error"] = cause.Error()
	}
	res, err := s.engine.ForceActivate(ctx, userID, extra)
	if err != nil {
		return nil, err
	}
	log.Infow("verify_fallback", "reason", reason, "outcome", res.Outcome)
	return &Result{
		Verified:     true,
		Status:       res.Subscription.Status,
		Message:      "activated without provider confirmation",
		Subscription: res.Subscription,
	}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
