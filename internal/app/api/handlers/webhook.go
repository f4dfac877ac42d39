package handlers

import (
	"io"
	"net/http"

	nh "github.com/fatflowers/subsync/internal/app/service/notification_handler"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/response"
	"github.com/fatflowers/subsync/pkg/types"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// @Summary      Provider webhook
// @Description  Receives a provider event, verifies its signature and reconciles the subscription. Ignored events are acknowledged with 200.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        provider  path  string  true  "card, paypal or aggregator"
// @Param        payload   body  object  true  "Raw provider event"
// @Success      200  {object}  handlers.RespWebhook
// @Failure      401  {object}  handlers.RespError
// @Router       /api/v1/webhook/{provider} [post]
func ApiProviderWebhook(h *nh.NotificationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, h.Logger)
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil {
			fail(c, apperr.Validation("read webhook body: %v", err))
			return
		}
		if len(body) > maxWebhookBody {
			fail(c, apperr.Validation("webhook body exceeds %d bytes", maxWebhookBody))
			return
		}

		res, err := h.HandleNotification(c.Request.Context(), &nh.Delivery{
			Provider: types.PaymentProvider(c.Param("provider")),
			Header:   c.Request.Header,
			Body:     body,
			TraceID:  c.GetString(logctx.KeyTraceID),
		})
		if err != nil {
			log.Warnw("webhook_handle_error", "provider", c.Param("provider"), "error", err)
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterWebhookRoutes(r gin.IRouter, h *nh.NotificationHandler) {
	r.POST("/webhook/:provider", ApiProviderWebhook(h))
}
