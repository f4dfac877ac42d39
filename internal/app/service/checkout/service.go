// Package checkout opens provider checkout sessions and records the pending placeholder.
package checkout

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/subsync/internal/app/service/provider"
	"github.com/fatflowers/subsync/internal/app/service/subscription"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/config"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/types"
)

type Request struct {
	UserID string `json:"-"`
	PlanID string `json:"plan_id" binding:"required"`
	// Provider disambiguates plan ids shared across providers.
	Provider types.PaymentProvider `json:"provider,omitempty"`
	Interval types.Interval        `json:"interval,omitempty"`
}

type Service struct {
	cfg       *config.Config
	providers *provider.Registry
	engine    *subscription.Engine
	log       *zap.SugaredLogger
}

func New(cfg *config.Config, providers *provider.Registry, engine *subscription.Engine, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, providers: providers, engine: engine, log: log}
}

// Start creates the provider session first; the pending row is written only once a session exists.
func (s *Service) Start(ctx context.Context, req *Request) (*provider.Checkout, error) {
	if req == nil || req.UserID == "" {
		return nil, apperr.Validation("user id is required")
	}
	if req.PlanID == "" {
		return nil, apperr.Validation("plan_id is required")
	}
	plan, err := s.resolvePlan(req)
	if err != nil {
		return nil, err
	}
	client, err := s.providers.Get(plan.ProviderID)
	if err != nil {
		return nil, err
	}
	out, err := client.CreateCheckout(ctx, provider.CheckoutRequest{UserID: req.UserID, Plan: plan})
	if err != nil {
		return nil, err
	}
	res, err := s.engine.RecordCheckout(ctx, subscription.PendingCheckout{
		UserID:    req.UserID,
		Provider:  plan.ProviderID,
		PlanID:    plan.ProviderPlanID,
		SessionID: out.SessionID,
		Interval:  plan.BillingInterval(),
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("checkout_created",
		"user_id", req.UserID, "provider", plan.ProviderID, "plan_id", plan.ID,
		"session_id", out.SessionID, "outcome", res.Outcome)
	return out, nil
}

func (s *Service) resolvePlan(req *Request) (*types.Plan, error) {
	var plan *types.Plan
	if req.Provider != "" {
		plan = s.cfg.GetPlan(req.Provider, req.PlanID)
	} else {
		plan, _ = lo.Find(s.cfg.Plans, func(p *types.Plan) bool { return p.ID == req.PlanID })
	}
	if plan == nil {
		return nil, apperr.Validation("unknown plan: %s", req.PlanID)
	}
	if req.Interval != "" && plan.Interval != "" && types.ParseInterval(string(req.Interval)) != plan.BillingInterval() {
		return nil, apperr.Validation("plan %s bills per %s", plan.ID, plan.BillingInterval())
	}
	if plan.Interval == "" && req.Interval != "" {
		cp := *plan
		cp.Interval = types.ParseInterval(string(req.Interval))
		plan = &cp
	}
	return plan, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
