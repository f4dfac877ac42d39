// Package stripe wraps the card processor's checkout session and webhook APIs.
package stripe

import (
	"errors"
	"strings"

	stripelib "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Client holds the session functions behind variables so tests can swap them.
type Client struct {
	webhookSecret string

	createCheckoutSession func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
	getCheckoutSession    func(id string, params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
}

// New configures the process-wide secret key; one card account per process.
func New(secretKey, webhookSecret string) *Client {
	stripelib.Key = strings.TrimSpace(secretKey)
	return &Client{
		webhookSecret:         strings.TrimSpace(webhookSecret),
		createCheckoutSession: stripesession.New,
		getCheckoutSession:    stripesession.Get,
	}
}

type CheckoutRequest struct {
	UserID     string
	PriceID    string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CreateSubscriptionCheckout opens a hosted subscription checkout for one price.
// Metadata is copied onto the subscription so later subscription events resolve the same user.
func (c *Client) CreateSubscriptionCheckout(req CheckoutRequest) (*stripelib.CheckoutSession, error) {
	params := &stripelib.CheckoutSessionParams{
		Mode:              stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		SuccessURL:        stripelib.String(req.SuccessURL),
		CancelURL:         stripelib.String(req.CancelURL),
		ClientReferenceID: stripelib.String(req.UserID),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				Price:    stripelib.String(req.PriceID),
				Quantity: stripelib.Int64(1),
			},
		},
		SubscriptionData: &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		},
		Metadata: req.Metadata,
	}
	return c.createCheckoutSession(params)
}

func (c *Client) GetCheckoutSession(id string) (*stripelib.CheckoutSession, error) {
	return c.getCheckoutSession(id, nil)
}

var ErrMissingSignature = errors.New("missing Stripe-Signature header")

// VerifyWebhook checks the Stripe-Signature header against the endpoint secret.
func (c *Client) VerifyWebhook(payload []byte, sigHeader string) error {
	if strings.TrimSpace(sigHeader) == "" {
		return ErrMissingSignature
	}
	_, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	return err
}

// ErrorStatus extracts the HTTP status and body of a card processor API error.
func ErrorStatus(err error) (int, string, bool) {
	var se *stripelib.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode, se.Error(), true
	}
	return 0, "", false
}

// IsNotFound reports whether err is a missing-resource API error.
func IsNotFound(err error) bool {
	var se *stripelib.Error
	return errors.As(err, &se) && se.Code == stripelib.ErrorCodeResourceMissing
}
