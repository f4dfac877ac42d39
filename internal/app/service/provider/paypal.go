package provider

import (
	"context"
	"errors"
	"net/http"

	"github.com/fatflowers/subsync/internal/app/service/normalizer"
	"github.com/fatflowers/subsync/internal/platform/paypal"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/types"
)

type paypalAPI interface {
	CreateSubscription(ctx context.Context, req paypal.CreateSubscriptionRequest) (*paypal.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*paypal.Subscription, error)
	VerifyWebhookSignature(ctx context.Context, h http.Header, payload []byte) (bool, error)
}

type paypalClient struct {
	api        paypalAPI
	successURL string
	cancelURL  string
}

func NewPayPalClient(api paypalAPI, successURL, cancelURL string) Client {
	return &paypalClient{api: api, successURL: successURL, cancelURL: cancelURL}
}

func (c *paypalClient) Provider() types.PaymentProvider { return types.PaymentProviderPayPal }

// CreateCheckout opens a subscription awaiting buyer approval; its id doubles as the session id.
func (c *paypalClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	sub, err := c.api.CreateSubscription(ctx, paypal.CreateSubscriptionRequest{
		PlanID:    req.Plan.ProviderPlanID,
		CustomID:  req.UserID,
		ReturnURL: c.successURL,
		CancelURL: c.cancelURL,
	})
	if err != nil {
		return nil, paypalError("create_checkout", err)
	}
	url := sub.ApproveURL()
	if url == "" {
		return nil, apperr.Provider("paypal.create_checkout", 0, "", errors.New("subscription has no approve link"))
	}
	return &Checkout{URL: url, SessionID: sub.ID}, nil
}

func (c *paypalClient) LookupSession(ctx context.Context, sessionID string) (*normalizer.Session, error) {
	sub, err := c.api.GetSubscription(ctx, sessionID)
	if err != nil {
		var ae *paypal.APIError
		if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
			return nil, apperr.NotFound("paypal subscription %s not found", sessionID)
		}
		return nil, paypalError("lookup_session", err)
	}
	return &normalizer.Session{
		ID:             sub.ID,
		Status:         sub.Status,
		MetadataUserID: sub.CustomID,
		CustomerID:     sub.Subscriber.PayerID,
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
	}, nil
}

func (c *paypalClient) VerifyWebhook(ctx context.Context, h http.Header, payload []byte) error {
	ok, err := c.api.VerifyWebhookSignature(ctx, h, payload)
	if err != nil {
		return paypalError("verify_webhook", err)
	}
	if !ok {
		return apperr.Unauthorized("invalid paypal webhook signature")
	}
	return nil
}

func paypalError(op string, err error) error {
	var ae *paypal.APIError
	if errors.As(err, &ae) {
		return apperr.Provider("paypal."+op, ae.Status, ae.Body, err)
	}
	return err
}
