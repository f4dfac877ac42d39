// Package paddle wraps the checkout aggregator SDK for transactions and webhook verification.
package paddle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"
)

type Config struct {
	APIKey        string
	WebhookSecret string
	Environment   string
}

type Client struct {
	sdk      *paddlesdk.SDK
	verifier *paddlesdk.WebhookVerifier
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("paddle API key is required")
	}
	var (
		sdk *paddlesdk.SDK
		err error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		sdk, err = paddlesdk.NewSandbox(cfg.APIKey)
	case "production", "":
		sdk, err = paddlesdk.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}
	return &Client{sdk: sdk, verifier: paddlesdk.NewWebhookVerifier(cfg.WebhookSecret)}, nil
}

// Transaction is the subset of a transaction the reconciliation path reads.
type Transaction struct {
	ID             string
	Status         string
	CustomerID     string
	SubscriptionID string
	CheckoutURL    string
	CustomData     map[string]string
}

type CheckoutRequest struct {
	PriceID    string
	SuccessURL string
	CustomData map[string]string
}

func (c *Client) CreateTransaction(ctx context.Context, req CheckoutRequest) (*Transaction, error) {
	item := paddlesdk.NewCreateTransactionItemsTransactionItemFromCatalog(&paddlesdk.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})
	custom := paddlesdk.CustomData{}
	for k, v := range req.CustomData {
		custom[k] = v
	}
	txReq := &paddlesdk.CreateTransactionRequest{
		Items:      []paddlesdk.CreateTransactionItems{*item},
		CustomData: custom,
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddlesdk.TransactionCheckout{URL: paddlesdk.PtrTo(req.SuccessURL)}
	}
	txn, err := c.sdk.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle transaction: %w", err)
	}
	out := fromSDK(txn)
	if out.CheckoutURL == "" {
		return nil, errors.New("no checkout URL returned from paddle")
	}
	return out, nil
}

func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	txn, err := c.sdk.TransactionsClient.GetTransaction(ctx, &paddlesdk.GetTransactionRequest{TransactionID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to get paddle transaction: %w", err)
	}
	return fromSDK(txn), nil
}

func fromSDK(txn *paddlesdk.Transaction) *Transaction {
	out := &Transaction{
		ID:         txn.ID,
		Status:     string(txn.Status),
		CustomData: map[string]string{},
	}
	if txn.CustomerID != nil {
		out.CustomerID = *txn.CustomerID
	}
	if txn.SubscriptionID != nil {
		out.SubscriptionID = *txn.SubscriptionID
	}
	if txn.Checkout != nil && txn.Checkout.URL != nil {
		out.CheckoutURL = *txn.Checkout.URL
	}
	for k, v := range txn.CustomData {
		if s, ok := v.(string); ok {
			out.CustomData[k] = s
		}
	}
	return out
}

// VerifyWebhook checks the Paddle-Signature header of a delivery.
func (c *Client) VerifyWebhook(ctx context.Context, h http.Header, payload []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Paddle-Signature", h.Get("Paddle-Signature"))
	return c.verifier.Verify(req)
}
