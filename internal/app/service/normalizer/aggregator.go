package normalizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/types"
)

type aggregatorEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type aggregatorItem struct {
	Price struct {
		ID           string `json:"id"`
		BillingCycle *struct {
			Interval string `json:"interval"`
		} `json:"billing_cycle"`
	} `json:"price"`
}

type aggregatorCustomData struct {
	UserID   string `json:"user_id"`
	Interval string `json:"interval"`
}

type aggregatorTransaction struct {
	ID             string                `json:"id"`
	Status         string                `json:"status"`
	CustomerID     string                `json:"customer_id"`
	SubscriptionID string                `json:"subscription_id"`
	CustomData     *aggregatorCustomData `json:"custom_data"`
	Items          []aggregatorItem      `json:"items"`
}

type aggregatorSubscription struct {
	ID            string                `json:"id"`
	Status        string                `json:"status"`
	CustomerID    string                `json:"customer_id"`
	TransactionID string                `json:"transaction_id"`
	CustomData    *aggregatorCustomData `json:"custom_data"`
	Items         []aggregatorItem      `json:"items"`
}

// aggregatorEvent is the closed set of checkout aggregator events that carry subscription state.
type aggregatorEvent interface{ isAggregatorEvent() }

type aggregatorTransactionEvent struct {
	kind Kind
	txn  aggregatorTransaction
}

type aggregatorSubscriptionEvent struct {
	kind Kind
	sub  aggregatorSubscription
}

func (aggregatorTransactionEvent) isAggregatorEvent()  {}
func (aggregatorSubscriptionEvent) isAggregatorEvent() {}

func decodeAggregatorEvent(payload []byte) (*aggregatorEnvelope, aggregatorEvent, error) {
	var env aggregatorEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, nil, apperr.Validation("decode aggregator event: %v", err)
	}
	switch env.EventType {
	case "transaction.completed", "transaction.payment_failed":
		var txn aggregatorTransaction
		if err := json.Unmarshal(env.Data, &txn); err != nil {
			return &env, nil, apperr.Validation("decode aggregator transaction: %v", err)
		}
		kind := KindConfirmed
		if env.EventType == "transaction.payment_failed" {
			kind = KindFailed
		}
		return &env, aggregatorTransactionEvent{kind: kind, txn: txn}, nil
	case "subscription.activated", "subscription.canceled", "subscription.past_due":
		var sub aggregatorSubscription
		if err := json.Unmarshal(env.Data, &sub); err != nil {
			return &env, nil, apperr.Validation("decode aggregator subscription: %v", err)
		}
		kind := map[string]Kind{
			"subscription.activated": KindConfirmed,
			"subscription.canceled":  KindCanceled,
			"subscription.past_due":  KindDelinquent,
		}[env.EventType]
		return &env, aggregatorSubscriptionEvent{kind: kind, sub: sub}, nil
	default:
		return &env, nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, env.EventType)
	}
}

type AggregatorNormalizer struct {
	plans PlanLookup
	now   func() time.Time
}

func NewAggregatorNormalizer(plans PlanLookup, now func() time.Time) *AggregatorNormalizer {
	return &AggregatorNormalizer{plans: plans, now: now}
}

func (n *AggregatorNormalizer) Provider() types.PaymentProvider { return types.PaymentProviderAggregator }

func (n *AggregatorNormalizer) Normalize(payload []byte) (*Fact, error) {
	env, ev, err := decodeAggregatorEvent(payload)
	if err != nil {
		return nil, err
	}
	fact := &Fact{
		Provider:   types.PaymentProviderAggregator,
		EventID:    env.EventID,
		EventType:  env.EventType,
		OccurredAt: env.OccurredAt,
	}
	if fact.OccurredAt.IsZero() {
		fact.OccurredAt = n.now()
	}
	var (
		custom     *aggregatorCustomData
		customerID string
		items      []aggregatorItem
	)
	switch ev := ev.(type) {
	case aggregatorTransactionEvent:
		custom, customerID, items = ev.txn.CustomData, ev.txn.CustomerID, ev.txn.Items
		fact.ExternalSessionID = ev.txn.ID
		fact.ExternalSubscriptionID = ev.txn.SubscriptionID
		fact.Status = ev.txn.Status
		fact.Kind = ev.kind
	case aggregatorSubscriptionEvent:
		custom, customerID, items = ev.sub.CustomData, ev.sub.CustomerID, ev.sub.Items
		fact.ExternalSessionID = ev.sub.TransactionID
		fact.ExternalSubscriptionID = ev.sub.ID
		fact.Status = ev.sub.Status
		fact.Kind = ev.kind
	}
	if custom == nil {
		custom = &aggregatorCustomData{}
	}
	fact.UserID, err = resolveUserID(fact.Provider, custom.UserID, customerID)
	if err != nil {
		return nil, err
	}
	rawInterval := custom.Interval
	if len(items) > 0 {
		fact.ExternalPlanID = items[0].Price.ID
		if bc := items[0].Price.BillingCycle; bc != nil {
			rawInterval = lo.CoalesceOrEmpty(bc.Interval, rawInterval)
		}
	}
	fact.Interval = resolveInterval(n.plans, fact.Provider, rawInterval, fact.ExternalPlanID)
	return fact, nil
}

func (n *AggregatorNormalizer) NormalizeSession(s *Session) (*Fact, error) {
	return sessionFact(types.PaymentProviderAggregator, n.plans, n.now, s)
}
