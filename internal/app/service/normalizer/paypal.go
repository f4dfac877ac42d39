package normalizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/types"
)

type paypalEnvelope struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	CreateTime   time.Time       `json:"create_time"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

type paypalSubscription struct {
	ID         string `json:"id"`
	PlanID     string `json:"plan_id"`
	Status     string `json:"status"`
	CustomID   string `json:"custom_id"`
	Subscriber struct {
		PayerID string `json:"payer_id"`
	} `json:"subscriber"`
}

// paypalEvent is the closed set of PayPal webhook events that carry subscription state.
type paypalEvent interface{ isPayPalEvent() }

type paypalSubscriptionEvent struct {
	kind Kind
	sub  paypalSubscription
}

func (paypalSubscriptionEvent) isPayPalEvent() {}

var paypalEventKinds = map[string]Kind{
	"BILLING.SUBSCRIPTION.ACTIVATED":      KindConfirmed,
	"BILLING.SUBSCRIPTION.CANCELLED":      KindCanceled,
	"BILLING.SUBSCRIPTION.SUSPENDED":      KindDelinquent,
	"BILLING.SUBSCRIPTION.PAYMENT.FAILED": KindFailed,
}

func decodePayPalEvent(payload []byte) (*paypalEnvelope, paypalEvent, error) {
	var env paypalEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, nil, apperr.Validation("decode paypal event: %v", err)
	}
	kind, ok := paypalEventKinds[env.EventType]
	if !ok {
		return &env, nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, env.EventType)
	}
	var sub paypalSubscription
	if err := json.Unmarshal(env.Resource, &sub); err != nil {
		return &env, nil, apperr.Validation("decode paypal subscription resource: %v", err)
	}
	return &env, paypalSubscriptionEvent{kind: kind, sub: sub}, nil
}

type PayPalNormalizer struct {
	plans PlanLookup
	now   func() time.Time
}

func NewPayPalNormalizer(plans PlanLookup, now func() time.Time) *PayPalNormalizer {
	return &PayPalNormalizer{plans: plans, now: now}
}

func (n *PayPalNormalizer) Provider() types.PaymentProvider { return types.PaymentProviderPayPal }

func (n *PayPalNormalizer) Normalize(payload []byte) (*Fact, error) {
	env, ev, err := decodePayPalEvent(payload)
	if err != nil {
		return nil, err
	}
	fact := &Fact{
		Provider:   types.PaymentProviderPayPal,
		EventID:    env.ID,
		EventType:  env.EventType,
		OccurredAt: env.CreateTime,
	}
	if fact.OccurredAt.IsZero() {
		fact.OccurredAt = n.now()
	}
	switch ev := ev.(type) {
	case paypalSubscriptionEvent:
		fact.UserID, err = resolveUserID(fact.Provider, ev.sub.CustomID, ev.sub.Subscriber.PayerID)
		if err != nil {
			return nil, err
		}
		// The PayPal subscription id doubles as the checkout session id.
		fact.ExternalSubscriptionID = ev.sub.ID
		fact.ExternalSessionID = ev.sub.ID
		fact.ExternalPlanID = ev.sub.PlanID
		fact.Status = ev.sub.Status
		fact.Kind = ev.kind
		fact.Interval = resolveInterval(n.plans, fact.Provider, "", ev.sub.PlanID)
	}
	return fact, nil
}

func (n *PayPalNormalizer) NormalizeSession(s *Session) (*Fact, error) {
	return sessionFact(types.PaymentProviderPayPal, n.plans, n.now, s)
}
