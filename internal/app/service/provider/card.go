package provider

import (
	"context"
	"errors"
	"net/http"

	stripelib "github.com/stripe/stripe-go/v82"

	"github.com/fatflowers/subsync/internal/app/service/normalizer"
	"github.com/fatflowers/subsync/internal/platform/stripe"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/types"
)

type cardAPI interface {
	CreateSubscriptionCheckout(req stripe.CheckoutRequest) (*stripelib.CheckoutSession, error)
	GetCheckoutSession(id string) (*stripelib.CheckoutSession, error)
	VerifyWebhook(payload []byte, sigHeader string) error
}

type cardClient struct {
	api        cardAPI
	successURL string
	cancelURL  string
}

func NewCardClient(api cardAPI, successURL, cancelURL string) Client {
	return &cardClient{api: api, successURL: successURL, cancelURL: cancelURL}
}

func (c *cardClient) Provider() types.PaymentProvider { return types.PaymentProviderCard }

func (c *cardClient) CreateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	s, err := c.api.CreateSubscriptionCheckout(stripe.CheckoutRequest{
		UserID:     req.UserID,
		PriceID:    req.Plan.ProviderPlanID,
		SuccessURL: c.successURL,
		CancelURL:  c.cancelURL,
		Metadata:   checkoutMetadata(req),
	})
	if err != nil {
		return nil, cardError("create_checkout", err)
	}
	if s.URL == "" {
		return nil, apperr.Provider("card.create_checkout", 0, "", errors.New("checkout session has no url"))
	}
	return &Checkout{URL: s.URL, SessionID: s.ID}, nil
}

func (c *cardClient) LookupSession(_ context.Context, sessionID string) (*normalizer.Session, error) {
	s, err := c.api.GetCheckoutSession(sessionID)
	if err != nil {
		if stripe.IsNotFound(err) {
			return nil, apperr.NotFound("card session %s not found", sessionID)
		}
		return nil, cardError("lookup_session", err)
	}
	out := &normalizer.Session{
		ID:             s.ID,
		Status:         string(s.PaymentStatus),
		MetadataUserID: s.Metadata[metaUserID],
		PlanID:         s.Metadata[metaPlanID],
		Interval:       s.Metadata[metaInterval],
	}
	if s.Status == stripelib.CheckoutSessionStatusExpired {
		out.Status = string(s.Status)
	}
	if out.MetadataUserID == "" {
		out.MetadataUserID = s.ClientReferenceID
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out, nil
}

func (c *cardClient) VerifyWebhook(_ context.Context, h http.Header, payload []byte) error {
	if err := c.api.VerifyWebhook(payload, h.Get("Stripe-Signature")); err != nil {
		return apperr.Unauthorized("invalid card webhook signature: %v", err)
	}
	return nil
}

// cardError keeps API errors as Provider errors and leaves transport errors for the timeout classifier.
func cardError(op string, err error) error {
	if status, body, ok := stripe.ErrorStatus(err); ok {
		return apperr.Provider("card."+op, status, body, err)
	}
	return err
}
