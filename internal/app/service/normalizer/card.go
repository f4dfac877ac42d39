package normalizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
	stripelib "github.com/stripe/stripe-go/v82"

	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/types"
)

// Metadata keys written on card checkout sessions and subscriptions.
const (
	MetadataUserID   = "user_id"
	MetadataPlanID   = "plan_id"
	MetadataInterval = "interval"
)

type cardCheckoutSession struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	Metadata          map[string]string `json:"metadata"`
}

type cardSubscription struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Metadata          map[string]string `json:"metadata"`
	Items             struct {
		Data []struct {
			Price struct {
				ID        string `json:"id"`
				Recurring *struct {
					Interval string `json:"interval"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// cardEvent is the closed set of card processor events that carry subscription state.
type cardEvent interface{ isCardEvent() }

type cardCheckoutEvent struct {
	// kind is fixed by the event type, except for checkout.session.completed which
	// depends on payment_status.
	kind    Kind
	session cardCheckoutSession
}

type cardSubscriptionEvent struct {
	deleted bool
	sub     cardSubscription
}

func (cardCheckoutEvent) isCardEvent()     {}
func (cardSubscriptionEvent) isCardEvent() {}

func decodeCardEvent(payload []byte) (*stripelib.Event, cardEvent, error) {
	var event stripelib.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, nil, apperr.Validation("decode card event: %v", err)
	}
	if event.Data == nil {
		return &event, nil, apperr.Validation("card event %s has no data", event.ID)
	}
	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired", "checkout.session.failed":
		var s cardCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return &event, nil, apperr.Validation("decode checkout.session: %v", err)
		}
		return &event, cardCheckoutEvent{kind: cardCheckoutKind(string(event.Type), s), session: s}, nil
	case "customer.subscription.deleted", "customer.subscription.updated":
		var sub cardSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return &event, nil, apperr.Validation("decode subscription: %v", err)
		}
		return &event, cardSubscriptionEvent{deleted: event.Type == "customer.subscription.deleted", sub: sub}, nil
	default:
		return &event, nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
	}
}

func cardCheckoutKind(eventType string, s cardCheckoutSession) Kind {
	switch eventType {
	case "checkout.session.async_payment_succeeded":
		return KindConfirmed
	case "checkout.session.async_payment_failed", "checkout.session.expired", "checkout.session.failed":
		return KindFailed
	}
	// completed with payment_status=unpaid means a delayed payment method is still settling.
	return ClassifyStatus(s.PaymentStatus)
}

type CardNormalizer struct {
	plans PlanLookup
	now   func() time.Time
}

func NewCardNormalizer(plans PlanLookup, now func() time.Time) *CardNormalizer {
	return &CardNormalizer{plans: plans, now: now}
}

func (n *CardNormalizer) Provider() types.PaymentProvider { return types.PaymentProviderCard }

func (n *CardNormalizer) Normalize(payload []byte) (*Fact, error) {
	event, ev, err := decodeCardEvent(payload)
	if err != nil {
		return nil, err
	}
	fact := &Fact{
		Provider:   types.PaymentProviderCard,
		EventID:    event.ID,
		EventType:  string(event.Type),
		OccurredAt: unixOrNow(event.Created, n.now()),
	}
	switch ev := ev.(type) {
	case cardCheckoutEvent:
		s := ev.session
		fact.UserID, err = resolveUserID(fact.Provider, lo.CoalesceOrEmpty(s.Metadata[MetadataUserID], s.ClientReferenceID), s.Customer)
		if err != nil {
			return nil, err
		}
		fact.ExternalSessionID = s.ID
		fact.ExternalSubscriptionID = s.Subscription
		fact.ExternalPlanID = s.Metadata[MetadataPlanID]
		fact.Status = lo.CoalesceOrEmpty(s.PaymentStatus, s.Status)
		fact.Kind = ev.kind
		fact.Interval = resolveInterval(n.plans, fact.Provider, s.Metadata[MetadataInterval], fact.ExternalPlanID)
	case cardSubscriptionEvent:
		sub := ev.sub
		fact.UserID, err = resolveUserID(fact.Provider, sub.Metadata[MetadataUserID], sub.Customer)
		if err != nil {
			return nil, err
		}
		fact.ExternalSubscriptionID = sub.ID
		rawInterval := sub.Metadata[MetadataInterval]
		if len(sub.Items.Data) > 0 {
			price := sub.Items.Data[0].Price
			fact.ExternalPlanID = price.ID
			if price.Recurring != nil {
				rawInterval = price.Recurring.Interval
			}
		}
		fact.Status = sub.Status
		switch {
		case ev.deleted:
			fact.Kind = KindCanceled
		case sub.CancelAtPeriodEnd:
			fact.Kind = KindCanceled
		default:
			fact.Kind = ClassifyStatus(sub.Status)
		}
		fact.Interval = resolveInterval(n.plans, fact.Provider, rawInterval, fact.ExternalPlanID)
	}
	return fact, nil
}

func (n *CardNormalizer) NormalizeSession(s *Session) (*Fact, error) {
	return sessionFact(types.PaymentProviderCard, n.plans, n.now, s)
}
