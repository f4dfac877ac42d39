package handlers

import (
	"github.com/fatflowers/subsync/internal/app/service/discount"
	nh "github.com/fatflowers/subsync/internal/app/service/notification_handler"
	"github.com/fatflowers/subsync/internal/app/service/provider"
	"github.com/fatflowers/subsync/internal/app/service/statistics"
	"github.com/fatflowers/subsync/internal/app/service/verification"
	"github.com/fatflowers/subsync/internal/models"
	"github.com/fatflowers/subsync/pkg/response"
	"github.com/fatflowers/subsync/pkg/types"
)

// RespError is the envelope returned with every non-2xx status.
type RespError struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    response.ErrorData       `json:"data"`
}

// RespCheckout wraps provider.Checkout in the standard envelope.
type RespCheckout struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    provider.Checkout        `json:"data"`
}

// RespVerify wraps verification.Result in the standard envelope.
type RespVerify struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    verification.Result      `json:"data"`
}

// RespRedemption wraps discount.Redemption in the standard envelope.
type RespRedemption struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    discount.Redemption      `json:"data"`
}

type RespDiscountCode struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.DiscountCode      `json:"data"`
}

type RespSubscriptionInfo struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    types.UserSubscriptionInfo `json:"data"`
}

type RespWebhook struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    nh.Result                `json:"data"`
}

// RespListSubscriptions wraps ListSubscriptionsResponse in the standard envelope.
type RespListSubscriptions struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    ListSubscriptionsResponse `json:"data"`
}

// RespStatistic wraps statistics.Response in the standard envelope.
type RespStatistic struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    statistics.Response      `json:"data"`
}
