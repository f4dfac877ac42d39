package handlers

import (
	"github.com/fatflowers/subsync/internal/app/service/checkout"
	"github.com/fatflowers/subsync/internal/app/service/discount"
	"github.com/fatflowers/subsync/internal/app/service/subscription"
	"github.com/fatflowers/subsync/internal/app/service/verification"
	"github.com/gin-gonic/gin"
)

// RegisterUserRoutes mounts the session-authenticated endpoints.
func RegisterUserRoutes(r gin.IRouter, co *checkout.Service, verify *verification.Service, codes *discount.Service, engine *subscription.Engine) {
	r.POST("/checkout", ApiCreateCheckout(co))
	r.POST("/verify", ApiVerify(verify))
	r.POST("/discount/redeem", ApiRedeemDiscount(codes))
	r.GET("/subscription", ApiGetSubscription(engine))
}
