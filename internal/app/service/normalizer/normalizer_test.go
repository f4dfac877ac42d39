package normalizer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/config"
	"github.com/fatflowers/subsync/pkg/types"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func testPlans() *config.Config {
	return &config.Config{Plans: []*types.Plan{
		{ID: "pro_year", ProviderID: types.PaymentProviderPayPal, ProviderPlanID: "P-YEAR", Interval: types.IntervalYear},
		{ID: "pro_year", ProviderID: types.PaymentProviderCard, ProviderPlanID: "price_year", Interval: types.IntervalYear},
	}}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[string]Kind{
		"completed":           KindConfirmed,
		"ACTIVE":              KindConfirmed,
		"succeeded":           KindConfirmed,
		"paid":                KindConfirmed,
		"no_payment_required": KindConfirmed,
		"failed":              KindFailed,
		"expired":             KindFailed,
		"canceled":            KindCanceled,
		"CANCELLED":           KindCanceled,
		"past_due":            KindDelinquent,
		"SUSPENDED":           KindDelinquent,
		"unpaid":              KindDelinquent,
		"open":                KindUnknown,
		"":                    KindUnknown,
	}
	for status, want := range cases {
		assert.Equal(t, want, ClassifyStatus(status), status)
	}
}

func TestCard_MetadataUserIDWinsOverCustomer(t *testing.T) {
	n := NewCardNormalizer(testPlans(), clock)
	fact, err := n.Normalize([]byte(`{
		"id": "evt_1", "type": "checkout.session.completed", "created": 1717000000,
		"data": {"object": {
			"id": "cs_1", "customer": "cus_other", "subscription": "sub_1",
			"payment_status": "paid", "status": "complete",
			"metadata": {"user_id": "user-42", "plan_id": "price_year"}
		}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "user-42", fact.UserID)
	assert.Equal(t, KindConfirmed, fact.Kind)
	assert.Equal(t, "sub_1", fact.ExternalSubscriptionID)
	assert.Equal(t, "cs_1", fact.ExternalSessionID)
	assert.Equal(t, types.IntervalYear, fact.Interval, "interval resolved through the plan catalog")
	assert.Equal(t, time.Unix(1717000000, 0).UTC(), fact.OccurredAt)
}

func TestCard_FallsBackToCustomerID(t *testing.T) {
	n := NewCardNormalizer(nil, clock)
	fact, err := n.Normalize([]byte(`{"id":"evt_2","type":"checkout.session.completed",
		"data":{"object":{"id":"cs_2","customer":"cus_9","payment_status":"paid"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "cus_9", fact.UserID)
	assert.Equal(t, types.IntervalMonth, fact.Interval)
	assert.Equal(t, fixedNow, fact.OccurredAt)
}

func TestCard_MissingIdentityIsValidationError(t *testing.T) {
	n := NewCardNormalizer(nil, clock)
	_, err := n.Normalize([]byte(`{"id":"evt_3","type":"checkout.session.completed",
		"data":{"object":{"id":"cs_3","payment_status":"paid"}}}`))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCard_EventKinds(t *testing.T) {
	n := NewCardNormalizer(nil, clock)
	cases := []struct {
		name    string
		payload string
		want    Kind
	}{
		{"unpaid completion waits", `{"type":"checkout.session.completed","data":{"object":{"id":"cs","payment_status":"unpaid","metadata":{"user_id":"u"}}}}`, KindUnknown},
		{"async success", `{"type":"checkout.session.async_payment_succeeded","data":{"object":{"id":"cs","metadata":{"user_id":"u"}}}}`, KindConfirmed},
		{"async failure", `{"type":"checkout.session.async_payment_failed","data":{"object":{"id":"cs","metadata":{"user_id":"u"}}}}`, KindFailed},
		{"session failed", `{"type":"checkout.session.failed","data":{"object":{"id":"cs","metadata":{"user_id":"u"}}}}`, KindFailed},
		{"expired", `{"type":"checkout.session.expired","data":{"object":{"id":"cs","metadata":{"user_id":"u"}}}}`, KindFailed},
		{"deleted", `{"type":"customer.subscription.deleted","data":{"object":{"id":"sub","status":"canceled","customer":"u"}}}`, KindCanceled},
		{"scheduled cancel", `{"type":"customer.subscription.updated","data":{"object":{"id":"sub","status":"active","cancel_at_period_end":true,"customer":"u"}}}`, KindCanceled},
		{"past due", `{"type":"customer.subscription.updated","data":{"object":{"id":"sub","status":"past_due","customer":"u"}}}`, KindDelinquent},
		{"recovered", `{"type":"customer.subscription.updated","data":{"object":{"id":"sub","status":"active","customer":"u"}}}`, KindConfirmed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fact, err := n.Normalize([]byte(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.want, fact.Kind)
		})
	}
}

func TestCard_SubscriptionUsesPriceInterval(t *testing.T) {
	n := NewCardNormalizer(nil, clock)
	fact, err := n.Normalize([]byte(`{"type":"customer.subscription.updated","data":{"object":{
		"id":"sub_7","status":"active","metadata":{"user_id":"u-7"},"customer":"cus_7",
		"items":{"data":[{"price":{"id":"price_y","recurring":{"interval":"year"}}}]}}}}`))
	require.NoError(t, err)
	assert.Equal(t, "u-7", fact.UserID)
	assert.Equal(t, "price_y", fact.ExternalPlanID)
	assert.Equal(t, types.IntervalYear, fact.Interval)
}

func TestCard_IgnoredEvent(t *testing.T) {
	n := NewCardNormalizer(nil, clock)
	_, err := n.Normalize([]byte(`{"id":"evt","type":"invoice.created","data":{"object":{}}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIgnoredEvent))
}

func TestPayPal_Normalize(t *testing.T) {
	n := NewPayPalNormalizer(testPlans(), clock)
	fact, err := n.Normalize([]byte(`{
		"id": "WH-1", "event_type": "BILLING.SUBSCRIPTION.ACTIVATED",
		"create_time": "2024-05-30T10:00:00Z", "resource_type": "subscription",
		"resource": {"id": "I-1", "plan_id": "P-YEAR", "status": "ACTIVE",
			"custom_id": "user-1", "subscriber": {"payer_id": "PAYER"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "user-1", fact.UserID)
	assert.Equal(t, KindConfirmed, fact.Kind)
	assert.Equal(t, "I-1", fact.ExternalSubscriptionID)
	assert.Equal(t, types.IntervalYear, fact.Interval)
	assert.Equal(t, time.Date(2024, 5, 30, 10, 0, 0, 0, time.UTC), fact.OccurredAt)
}

func TestPayPal_PayerIDFallbackAndKinds(t *testing.T) {
	n := NewPayPalNormalizer(nil, clock)
	for eventType, want := range map[string]Kind{
		"BILLING.SUBSCRIPTION.CANCELLED":      KindCanceled,
		"BILLING.SUBSCRIPTION.SUSPENDED":      KindDelinquent,
		"BILLING.SUBSCRIPTION.PAYMENT.FAILED": KindFailed,
	} {
		fact, err := n.Normalize([]byte(`{"id":"WH","event_type":"` + eventType + `",
			"resource":{"id":"I-2","status":"X","subscriber":{"payer_id":"PAYER-2"}}}`))
		require.NoError(t, err, eventType)
		assert.Equal(t, "PAYER-2", fact.UserID)
		assert.Equal(t, want, fact.Kind, eventType)
		assert.Equal(t, types.IntervalMonth, fact.Interval)
	}

	_, err := n.Normalize([]byte(`{"id":"WH","event_type":"PAYMENT.SALE.COMPLETED","resource":{}}`))
	assert.True(t, errors.Is(err, ErrIgnoredEvent))
}

func TestAggregator_Normalize(t *testing.T) {
	n := NewAggregatorNormalizer(nil, clock)
	fact, err := n.Normalize([]byte(`{
		"event_id": "evt_01", "event_type": "transaction.completed",
		"occurred_at": "2024-05-31T08:00:00Z",
		"data": {"id": "txn_1", "status": "completed", "customer_id": "ctm_1",
			"subscription_id": "sub_01", "custom_data": {"user_id": "user-9"},
			"items": [{"price": {"id": "pri_1", "billing_cycle": {"interval": "year"}}}]}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "user-9", fact.UserID)
	assert.Equal(t, "txn_1", fact.ExternalSessionID)
	assert.Equal(t, "sub_01", fact.ExternalSubscriptionID)
	assert.Equal(t, "pri_1", fact.ExternalPlanID)
	assert.Equal(t, types.IntervalYear, fact.Interval)
	assert.Equal(t, KindConfirmed, fact.Kind)

	fact, err = n.Normalize([]byte(`{"event_type":"subscription.canceled","data":{"id":"sub_01","status":"canceled","customer_id":"ctm_1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "ctm_1", fact.UserID)
	assert.Equal(t, KindCanceled, fact.Kind)

	_, err = n.Normalize([]byte(`{"event_type":"subscription.past_due","data":{"id":"sub_01"}}`))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = n.Normalize([]byte(`{"event_type":"customer.updated","data":{}}`))
	assert.True(t, errors.Is(err, ErrIgnoredEvent))
}

func TestNormalizeSession(t *testing.T) {
	set := NewSet(testPlans())
	n, err := set.For(types.PaymentProviderCard)
	require.NoError(t, err)

	fact, err := n.NormalizeSession(&Session{ID: "cs_1", Status: "paid", MetadataUserID: "u-1", CustomerID: "cus_1", PlanID: "price_year"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", fact.UserID)
	assert.Equal(t, KindConfirmed, fact.Kind)
	assert.Equal(t, types.IntervalYear, fact.Interval)

	_, err = n.NormalizeSession(&Session{ID: "cs_2", Status: "paid"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = set.For(types.PaymentProviderInternal)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
