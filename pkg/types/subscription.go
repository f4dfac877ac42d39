package types

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusNone           SubscriptionStatus = "none"
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusCanceled       SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue        SubscriptionStatus = "past_due"
	// SubscriptionStatusTrialing is never written here; rows imported with it still block redemption.
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonCheckoutStarted    SubscriptionChangeReason = "checkoutStarted"
	SubscriptionChangeReasonProviderConfirmed  SubscriptionChangeReason = "providerConfirmed"
	SubscriptionChangeReasonProviderCanceled   SubscriptionChangeReason = "providerCanceled"
	SubscriptionChangeReasonProviderDelinquent SubscriptionChangeReason = "providerDelinquent"
	SubscriptionChangeReasonFallbackActivation SubscriptionChangeReason = "fallbackActivation"
	SubscriptionChangeReasonDiscountRedeemed   SubscriptionChangeReason = "discountRedeemed"
)

// UserSubscriptionInfo is the caller-facing view of a subscription record.
type UserSubscriptionInfo struct {
	Status             SubscriptionStatus `json:"status"`
	Provider           PaymentProvider    `json:"provider"`
	Interval           Interval           `json:"interval"`
	CurrentPeriodStart *time.Time         `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end"`
	Entitled           bool               `json:"entitled"`
}
