package provider

import (
	"context"
	"errors"
	"net/http"

	"github.com/fatflowers/subsync/internal/app/service/normalizer"
	"github.com/fatflowers/subsync/internal/platform/paddle"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/types"
)

type aggregatorAPI interface {
	CreateTransaction(ctx context.Context, req paddle.CheckoutRequest) (*paddle.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*paddle.Transaction, error)
	VerifyWebhook(ctx context.Context, h http.Header, payload []byte) (bool, error)
}

type aggregatorClient struct {
	api        aggregatorAPI
	successURL string
}

func NewAggregatorClient(api aggregatorAPI, successURL string) Client {
	return &aggregatorClient{api: api, successURL: successURL}
}

func (c *aggregatorClient) Provider() types.PaymentProvider { return types.PaymentProviderAggregator }

func (c *aggregatorClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	txn, err := c.api.CreateTransaction(ctx, paddle.CheckoutRequest{
		PriceID:    req.Plan.ProviderPlanID,
		SuccessURL: c.successURL,
		CustomData: checkoutMetadata(req),
	})
	if err != nil {
		return nil, aggregatorError("create_checkout", err)
	}
	if txn.CheckoutURL == "" {
		return nil, apperr.Provider("aggregator.create_checkout", 0, "", errors.New("transaction has no checkout url"))
	}
	return &Checkout{URL: txn.CheckoutURL, SessionID: txn.ID}, nil
}

func (c *aggregatorClient) LookupSession(ctx context.Context, sessionID string) (*normalizer.Session, error) {
	txn, err := c.api.GetTransaction(ctx, sessionID)
	if err != nil {
		return nil, aggregatorError("lookup_session", err)
	}
	return &normalizer.Session{
		ID:             txn.ID,
		Status:         txn.Status,
		MetadataUserID: txn.CustomData[metaUserID],
		CustomerID:     txn.CustomerID,
		SubscriptionID: txn.SubscriptionID,
		PlanID:         txn.CustomData[metaPlanID],
		Interval:       txn.CustomData[metaInterval],
	}, nil
}

func (c *aggregatorClient) VerifyWebhook(ctx context.Context, h http.Header, payload []byte) error {
	ok, err := c.api.VerifyWebhook(ctx, h, payload)
	if err != nil || !ok {
		return apperr.Unauthorized("invalid aggregator webhook signature")
	}
	return nil
}

// aggregatorError leaves context errors for the timeout classifier.
func aggregatorError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return apperr.Provider("aggregator."+op, 0, err.Error(), err)
}
