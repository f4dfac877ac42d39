// Package discount grants internal subscriptions from operator-seeded codes.
package discount

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/subsync/internal/app/service/subscription"
	"github.com/fatflowers/subsync/internal/models"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/tool"
	"github.com/fatflowers/subsync/pkg/types"
)

// ErrUsageCapReached is returned when the conditional increment matched no row.
var ErrUsageCapReached = errors.New("discount code usage limit reached")

type Service struct {
	db    *gorm.DB
	store subscription.Store
	log   *zap.SugaredLogger
	now   func() time.Time
}

func New(db *gorm.DB, store subscription.Store, log *zap.SugaredLogger) *Service {
	return &Service{db: db, store: store, log: log, now: time.Now}
}

type Redemption struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// Redeem grants a time-boxed internal subscription.
// Checks run in order: existing entitlement, code exists and is active, usage cap, full discount only.
// The usage increment and the subscription write commit together.
func (s *Service) Redeem(ctx context.Context, userID, code string) (*Redemption, error) {
	code = strings.TrimSpace(code)
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	if code == "" {
		return nil, apperr.Validation("code is required")
	}

	existing, err := s.store.Get(ctx, userID)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
	case err != nil:
		return nil, err
	case lo.Contains([]types.SubscriptionStatus{types.SubscriptionStatusActive, types.SubscriptionStatusTrialing}, existing.Status):
		return nil, apperr.Conflict("user already has an active subscription")
	}

	dc, err := s.GetCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !dc.IsActive {
		return nil, apperr.Validation("discount code %s is not active", code)
	}
	if dc.Exhausted() {
		return nil, apperr.Validation("%s: %s", ErrUsageCapReached, code)
	}
	if dc.DiscountPercent != 100 {
		return nil, apperr.NotImplemented("only 100%% discount codes can be redeemed")
	}
	if dc.DurationMonths <= 0 {
		return nil, apperr.Validation("discount code %s has no duration", code)
	}

	now := s.now()
	end := now.AddDate(0, dc.DurationMonths, 0)
	var sub *models.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DiscountCode{}).
			Where("code = ? AND is_active = ? AND current_uses < max_uses", code, true).
			UpdateColumn("current_uses", gorm.Expr("current_uses + ?", 1))
		if res.Error != nil {
			return apperr.Store("discount.increment", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrUsageCapReached
		}
		var err error
		sub, err = s.store.WithTx(tx).Upsert(ctx, userID, subscription.Patch{
			Status:             lo.ToPtr(types.SubscriptionStatusActive),
			Provider:           lo.ToPtr(types.PaymentProviderInternal),
			Interval:           lo.ToPtr(types.IntervalMonth),
			CurrentPeriodStart: &now,
			CurrentPeriodEnd:   &end,
			CancelAtPeriodEnd:  lo.ToPtr(false),
			DiscountCode:       &code,
			ClearExternalRefs:  true,
		}, subscription.Change{
			Reason: types.SubscriptionChangeReasonDiscountRedeemed,
			Extra:  map[string]any{"code": code, "duration_months": dc.DurationMonths},
		})
		return err
	})
	if errors.Is(err, ErrUsageCapReached) {
		return nil, apperr.Validation("%s: %s", ErrUsageCapReached, code)
	}
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("discount_redeemed", "user_id", userID, "code", code, "period_end", end)
	return &Redemption{Success: true, Message: "subscription activated", Subscription: sub}, nil
}

func (s *Service) GetCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&dc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("discount code %s not found", code)
	}
	if err != nil {
		return nil, apperr.Store("discount.get", err)
	}
	return &dc, nil
}

type CreateCodeRequest struct {
	Code            string `json:"code" binding:"required"`
	DiscountPercent int    `json:"discount_percent" binding:"required"`
	DurationMonths  int    `json:"duration_months" binding:"required"`
	MaxUses         int    `json:"max_uses" binding:"required"`
	IsActive        *bool  `json:"is_active,omitempty"`
}

// CreateCode seeds a new code; codes are never updated or deleted through this path.
func (s *Service) CreateCode(ctx context.Context, req *CreateCodeRequest) (*models.DiscountCode, error) {
	code := strings.TrimSpace(req.Code)
	switch {
	case code == "":
		return nil, apperr.Validation("code is required")
	case req.DiscountPercent <= 0 || req.DiscountPercent > 100:
		return nil, apperr.Validation("discount_percent must be in 1..100")
	case req.DurationMonths <= 0:
		return nil, apperr.Validation("duration_months must be positive")
	case req.MaxUses <= 0:
		return nil, apperr.Validation("max_uses must be positive")
	}
	if _, err := s.GetCode(ctx, code); err == nil {
		return nil, apperr.Conflict("discount code %s already exists", code)
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	dc := &models.DiscountCode{
		ID:              tool.GenerateUUIDV7(),
		Code:            code,
		DiscountPercent: req.DiscountPercent,
		DurationMonths:  req.DurationMonths,
		MaxUses:         req.MaxUses,
		IsActive:        lo.FromPtrOr(req.IsActive, true),
	}
	// Select("*") writes is_active=false instead of falling back to the column default.
	if err := s.db.WithContext(ctx).Select("*").Create(dc).Error; err != nil {
		return nil, apperr.Store("discount.create", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("discount_code_created", "code", code, "max_uses", dc.MaxUses)
	return dc, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
