package handlers

import (
	"net/http"

	"github.com/fatflowers/subsync/internal/app/service/checkout"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/response"
	"github.com/gin-gonic/gin"
)

// @Summary      Create checkout session
// @Description  Opens a hosted checkout with the plan's provider and records the user as pending_payment.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body checkout.Request true "Plan and optional provider/interval"
// @Success      200  {object}  handlers.RespCheckout
// @Failure      400  {object}  handlers.RespError
// @Failure      504  {object}  handlers.RespError
// @Router       /api/v1/checkout [post]
func ApiCreateCheckout(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkout.Request
		if !bindJSON(c, &req) {
			return
		}
		req.UserID = logctx.UserID(c)
		out, err := svc.Start(c.Request.Context(), &req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}
