package provider

const (
	metaUserID   = "user_id"
	metaPlanID   = "plan_id"
	metaInterval = "interval"
)

// checkoutMetadata is echoed back by the provider on the session and its webhook events.
func checkoutMetadata(req CheckoutRequest) map[string]string {
	return map[string]string{
		metaUserID:   req.UserID,
		metaPlanID:   req.Plan.ProviderPlanID,
		metaInterval: string(req.Plan.BillingInterval()),
	}
}
