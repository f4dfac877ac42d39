package handlers

import (
	"net/http"

	"github.com/fatflowers/subsync/internal/app/service/subscription"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/response"
	"github.com/gin-gonic/gin"
)

// @Summary      Current subscription
// @Description  Returns the caller's subscription state and whether it currently grants access.
// @Tags         Subscription
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespSubscriptionInfo
// @Router       /api/v1/subscription [get]
func ApiGetSubscription(engine *subscription.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := engine.Store().Get(c.Request.Context(), logctx.UserID(c))
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub.ToUserSubscriptionInfo(engine.Now())))
	}
}
