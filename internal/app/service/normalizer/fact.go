// Package normalizer maps provider payloads onto the canonical Fact consumed by reconciliation.
package normalizer

import (
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/types"
)

// Kind is the engine-facing classification of a provider signal.
type Kind string

const (
	KindConfirmed  Kind = "confirmed"
	KindFailed     Kind = "failed"
	KindCanceled   Kind = "canceled"
	KindDelinquent Kind = "delinquent"
	KindUnknown    Kind = "unknown"
)

// ErrIgnoredEvent is returned for event types that carry no subscription state.
var ErrIgnoredEvent = errors.New("event type ignored")

// Fact is a provider-agnostic statement about one user's subscription, derived from one event.
type Fact struct {
	Provider  types.PaymentProvider `json:"provider"`
	EventID   string                `json:"event_id,omitempty"`
	EventType string                `json:"event_type,omitempty"`

	UserID                 string `json:"user_id"`
	ExternalSubscriptionID string `json:"external_subscription_id,omitempty"`
	ExternalPlanID         string `json:"external_plan_id,omitempty"`
	ExternalSessionID      string `json:"external_session_id,omitempty"`

	// Status is the provider-native status string, kept for logs.
	Status     string         `json:"status"`
	Kind       Kind           `json:"kind"`
	Interval   types.Interval `json:"interval"`
	OccurredAt time.Time      `json:"occurred_at"`
}

var (
	confirmedStatuses  = []string{"completed", "complete", "active", "succeeded", "paid", "no_payment_required", "approved"}
	failedStatuses     = []string{"failed", "payment_failed", "expired", "unpaid_expired", "incomplete_expired", "denied"}
	canceledStatuses   = []string{"canceled", "cancelled"}
	delinquentStatuses = []string{"past_due", "unpaid", "suspended"}
)

// ClassifyStatus maps a provider-native status string to a Kind.
func ClassifyStatus(status string) Kind {
	s := strings.ToLower(strings.TrimSpace(status))
	switch {
	case lo.Contains(confirmedStatuses, s):
		return KindConfirmed
	case lo.Contains(failedStatuses, s):
		return KindFailed
	case lo.Contains(canceledStatuses, s):
		return KindCanceled
	case lo.Contains(delinquentStatuses, s):
		return KindDelinquent
	default:
		return KindUnknown
	}
}

// resolveUserID applies the identity precedence: internal id from metadata first,
// then the provider's own customer/subscriber id.
func resolveUserID(provider types.PaymentProvider, metadataUserID, customerID string) (string, error) {
	if id := strings.TrimSpace(metadataUserID); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(customerID); id != "" {
		return id, nil
	}
	return "", apperr.Validation("%s payload carries no resolvable user id", provider)
}

// PlanLookup resolves the catalog interval of a provider plan id.
type PlanLookup interface {
	PlanInterval(provider types.PaymentProvider, providerPlanID string) (types.Interval, bool)
}

func resolveInterval(plans PlanLookup, provider types.PaymentProvider, raw, planID string) types.Interval {
	if types.KnownInterval(raw) {
		return types.ParseInterval(raw)
	}
	if plans != nil {
		if iv, ok := plans.PlanInterval(provider, planID); ok {
			return iv
		}
	}
	return types.IntervalMonth
}

func unixOrNow(sec int64, now time.Time) time.Time {
	if sec <= 0 {
		return now
	}
	return time.Unix(sec, 0).UTC()
}
