package handlers

import (
	"net/http"

	"github.com/fatflowers/subsync/internal/app/service/discount"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/response"
	"github.com/gin-gonic/gin"
)

type RedeemDiscountRequest struct {
	Code string `json:"code" binding:"required"`
}

// @Summary      Redeem discount code
// @Description  Grants an internal active subscription for a 100% discount code.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body RedeemDiscountRequest true "Discount code"
// @Success      200  {object}  handlers.RespRedemption
// @Failure      400  {object}  handlers.RespError
// @Failure      404  {object}  handlers.RespError
// @Router       /api/v1/discount/redeem [post]
func ApiRedeemDiscount(svc *discount.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RedeemDiscountRequest
		if !bindJSON(c, &req) {
			return
		}
		res, err := svc.Redeem(c.Request.Context(), logctx.UserID(c), req.Code)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Create discount code (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminToken
// @Param        request body discount.CreateCodeRequest true "New code"
// @Success      200  {object}  handlers.RespDiscountCode
// @Failure      400  {object}  handlers.RespError
// @Router       /api/v1/admin/discount_codes [post]
func ApiCreateDiscountCode(svc *discount.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req discount.CreateCodeRequest
		if !bindJSON(c, &req) {
			return
		}
		dc, err := svc.CreateCode(c.Request.Context(), &req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(dc))
	}
}
