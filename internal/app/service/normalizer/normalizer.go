package normalizer

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/config"
	"github.com/fatflowers/subsync/pkg/types"
)

// Normalizer turns a raw provider webhook body into a Fact.
// Unhandled event types return an error wrapping ErrIgnoredEvent.
type Normalizer interface {
	Provider() types.PaymentProvider
	Normalize(payload []byte) (*Fact, error)
	// NormalizeSession maps a provider lookup result from the verification path.
	NormalizeSession(s *Session) (*Fact, error)
}

// Session is what a provider lookup returns, before identity and status mapping.
type Session struct {
	ID             string
	Status         string
	MetadataUserID string
	CustomerID     string
	SubscriptionID string
	PlanID         string
	Interval       string
}

// Set holds one normalizer per external provider.
type Set struct {
	byProvider map[types.PaymentProvider]Normalizer
}

func NewSet(cfg *config.Config) *Set {
	now := time.Now
	return newSet(
		NewCardNormalizer(cfg, now),
		NewPayPalNormalizer(cfg, now),
		NewAggregatorNormalizer(cfg, now),
	)
}

func newSet(ns ...Normalizer) *Set {
	s := &Set{byProvider: make(map[types.PaymentProvider]Normalizer, len(ns))}
	for _, n := range ns {
		s.byProvider[n.Provider()] = n
	}
	return s
}

// For returns the normalizer for provider.
func (s *Set) For(provider types.PaymentProvider) (Normalizer, error) {
	n, ok := s.byProvider[provider]
	if !ok {
		return nil, apperr.Validation("unsupported provider: %s", provider)
	}
	return n, nil
}

// sessionFact is shared by every provider: the verification lookup carries the same fields everywhere.
func sessionFact(provider types.PaymentProvider, plans PlanLookup, now func() time.Time, s *Session) (*Fact, error) {
	if s == nil {
		return nil, apperr.Validation("empty %s session", provider)
	}
	userID, err := resolveUserID(provider, s.MetadataUserID, s.CustomerID)
	if err != nil {
		return nil, err
	}
	return &Fact{
		Provider:               provider,
		EventType:              "verify",
		UserID:                 userID,
		ExternalSubscriptionID: s.SubscriptionID,
		ExternalPlanID:         s.PlanID,
		ExternalSessionID:      s.ID,
		Status:                 s.Status,
		Kind:                   ClassifyStatus(s.Status),
		Interval:               resolveInterval(plans, provider, s.Interval, s.PlanID),
		OccurredAt:             now(),
	}, nil
}

var Module = fx.Options(
	fx.Provide(NewSet),
)
