package types

import "strings"

type PaymentProvider string

const (
	PaymentProviderNone       PaymentProvider = "none"
	PaymentProviderCard       PaymentProvider = "card"
	PaymentProviderPayPal     PaymentProvider = "paypal"
	PaymentProviderAggregator PaymentProvider = "aggregator"
	PaymentProviderInternal   PaymentProvider = "internal"
)

// ExternalProviders lists the providers reachable over the network.
var ExternalProviders = []PaymentProvider{PaymentProviderCard, PaymentProviderPayPal, PaymentProviderAggregator}

func (p PaymentProvider) External() bool {
	switch p {
	case PaymentProviderCard, PaymentProviderPayPal, PaymentProviderAggregator:
		return true
	default:
		return false
	}
}

// Interval is a billing cadence.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// ParseInterval accepts provider spellings; anything unrecognized is monthly.
func ParseInterval(s string) Interval {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "year", "yearly", "annual", "annually", "y":
		return IntervalYear
	default:
		return IntervalMonth
	}
}

// KnownInterval reports whether s names an interval explicitly.
func KnownInterval(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "year", "yearly", "annual", "annually", "y", "month", "monthly", "m":
		return true
	}
	return false
}

// Plan is one catalog entry mapping an internal plan to a provider price/plan.
type Plan struct {
	ID             string          `json:"id" mapstructure:"id"`
	ProviderID     PaymentProvider `json:"provider_id" mapstructure:"provider"`
	ProviderPlanID string          `json:"provider_plan_id" mapstructure:"provider_plan_id"`
	Interval       Interval        `json:"interval" mapstructure:"interval"`
}

func (p *Plan) BillingInterval() Interval {
	if p == nil || p.Interval == "" {
		return IntervalMonth
	}
	return ParseInterval(string(p.Interval))
}
