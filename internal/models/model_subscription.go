package models

import (
	"time"

	"github.com/fatflowers/subsync/pkg/types"
)

// Subscription is the authoritative per-user subscription record. One row per user.
type Subscription struct {
	ID     string                   `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	UserID string                   `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex" json:"user_id"`
	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`

	Provider               types.PaymentProvider `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	ExternalSubscriptionID *string               `gorm:"column:external_subscription_id;type:varchar(128)" json:"external_subscription_id"`
	ExternalPlanID         *string               `gorm:"column:external_plan_id;type:varchar(128)" json:"external_plan_id"`
	// ExternalSessionID is the checkout session (card), subscription (PayPal) or transaction (aggregator) id.
	ExternalSessionID *string `gorm:"column:external_session_id;type:varchar(128);index" json:"external_session_id"`

	Interval           types.Interval `gorm:"column:billing_interval;type:varchar(16);not null" json:"interval"`
	CurrentPeriodStart *time.Time     `gorm:"column:current_period_start;default:null" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time     `gorm:"column:current_period_end;default:null" json:"current_period_end"`
	CancelAtPeriodEnd  bool           `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`

	// DiscountCode is set only for internally granted subscriptions.
	DiscountCode *string `gorm:"column:discount_code;type:varchar(64)" json:"discount_code"`

	// LastEventAt is the occurrence time of the latest provider fact applied to the row.
	LastEventAt *time.Time `gorm:"column:last_event_at;default:null" json:"last_event_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// Entitled reports whether the record grants paid access at now.
func (s *Subscription) Entitled(now time.Time) bool {
	if s == nil || s.CurrentPeriodEnd == nil || !s.CurrentPeriodEnd.After(now) {
		return false
	}
	switch s.Status {
	case types.SubscriptionStatusActive:
		return true
	case types.SubscriptionStatusCanceled:
		return s.CancelAtPeriodEnd
	default:
		return false
	}
}

// BillingInterval returns the recorded interval, monthly when unset.
func (s *Subscription) BillingInterval() types.Interval {
	if s == nil || s.Interval == "" {
		return types.IntervalMonth
	}
	return types.ParseInterval(string(s.Interval))
}

func (s *Subscription) ToUserSubscriptionInfo(now time.Time) *types.UserSubscriptionInfo {
	if s == nil {
		return &types.UserSubscriptionInfo{Status: types.SubscriptionStatusNone, Provider: types.PaymentProviderNone}
	}
	return &types.UserSubscriptionInfo{
		Status:             s.Status,
		Provider:           s.Provider,
		Interval:           s.BillingInterval(),
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		Entitled:           s.Entitled(now),
	}
}
