// Package paypal is a small REST client for PayPal billing subscriptions.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const maxBodyBytes = 1 << 20

type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	WebhookID    string
}

// Client authenticates with client credentials; the token source refreshes tokens on expiry.
type Client struct {
	baseURL   string
	webhookID string
	http      *http.Client
}

// New builds a client. base, when non-nil, is the transport used for both token and API calls.
func New(cfg Config, base *http.Client) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return &Client{baseURL: baseURL, webhookID: cfg.WebhookID, http: cc.Client(ctx)}
}

// APIError is a non-2xx PayPal response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal api status %d: %s", e.Status, e.Body)
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type Subscriber struct {
	PayerID string `json:"payer_id,omitempty"`
}

type Subscription struct {
	ID         string     `json:"id"`
	PlanID     string     `json:"plan_id"`
	Status     string     `json:"status"`
	CustomID   string     `json:"custom_id"`
	Subscriber Subscriber `json:"subscriber"`
	Links      []Link     `json:"links"`
}

// ApproveURL is where the buyer confirms the subscription.
func (s *Subscription) ApproveURL() string {
	for _, l := range s.Links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}

type applicationContext struct {
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	UserAction string `json:"user_action"`
}

type CreateSubscriptionRequest struct {
	PlanID    string
	CustomID  string
	ReturnURL string
	CancelURL string
}

func (c *Client) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error) {
	body := map[string]any{
		"plan_id":   req.PlanID,
		"custom_id": req.CustomID,
		"application_context": applicationContext{
			ReturnURL:  req.ReturnURL,
			CancelURL:  req.CancelURL,
			UserAction: "SUBSCRIBE_NOW",
		},
	}
	var out Subscription
	if err := c.do(ctx, http.MethodPost, "/v1/billing/subscriptions", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	var out Subscription
	if err := c.do(ctx, http.MethodGet, "/v1/billing/subscriptions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

// VerifyWebhookSignature asks PayPal to validate the transmission headers of a delivery.
func (c *Client) VerifyWebhookSignature(ctx context.Context, h http.Header, payload []byte) (bool, error) {
	if h.Get("PAYPAL-TRANSMISSION-SIG") == "" {
		return false, nil
	}
	req := verifyRequest{
		AuthAlgo:         h.Get("PAYPAL-AUTH-ALGO"),
		CertURL:          h.Get("PAYPAL-CERT-URL"),
		TransmissionID:   h.Get("PAYPAL-TRANSMISSION-ID"),
		TransmissionSig:  h.Get("PAYPAL-TRANSMISSION-SIG"),
		TransmissionTime: h.Get("PAYPAL-TRANSMISSION-TIME"),
		WebhookID:        c.webhookID,
		WebhookEvent:     json.RawMessage(payload),
	}
	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", req, &out); err != nil {
		return false, err
	}
	return out.VerificationStatus == "SUCCESS", nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode paypal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read paypal response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	return nil
}
