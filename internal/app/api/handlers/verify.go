package handlers

import (
	"net/http"

	"github.com/fatflowers/subsync/internal/app/service/verification"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/response"
	"github.com/fatflowers/subsync/pkg/types"
	"github.com/gin-gonic/gin"
)

// @Summary      Verify payment
// @Description  Polls the provider for the caller's checkout session and reconciles the result. The body is optional.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body verification.Request false "Session to verify; defaults to the stored session"
// @Success      200  {object}  handlers.RespVerify
// @Failure      404  {object}  handlers.RespError
// @Failure      504  {object}  handlers.RespError
// @Router       /api/v1/verify [post]
func ApiVerify(svc *verification.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verification.Request
		if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
			return
		}
		req.UserID = logctx.UserID(c)
		res, err := svc.Verify(c.Request.Context(), &req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type AdminVerifyRequest struct {
	UserID    string                `json:"user_id" binding:"required"`
	SessionID string                `json:"session_id,omitempty"`
	Provider  types.PaymentProvider `json:"provider,omitempty"`
}

// @Summary      Verify payment (Admin)
// @Description  Runs verification on behalf of a user.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminToken
// @Param        request body AdminVerifyRequest true "Target user and optional session"
// @Success      200  {object}  handlers.RespVerify
// @Router       /api/v1/admin/verify [post]
func ApiAdminVerify(svc *verification.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdminVerifyRequest
		if !bindJSON(c, &req) {
			return
		}
		res, err := svc.Verify(c.Request.Context(), &verification.Request{
			UserID:    req.UserID,
			SessionID: req.SessionID,
			Provider:  req.Provider,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}
