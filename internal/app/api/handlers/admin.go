package handlers

import (
	"net/http"
	"strings"

	"github.com/fatflowers/subsync/internal/app/service/discount"
	"github.com/fatflowers/subsync/internal/app/service/statistics"
	"github.com/fatflowers/subsync/internal/app/service/subscription"
	"github.com/fatflowers/subsync/internal/app/service/verification"
	"github.com/fatflowers/subsync/internal/models"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/response"
	"github.com/fatflowers/subsync/pkg/types"
	"github.com/gin-gonic/gin"
)

type ListSubscriptionsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ListSubscriptionsResponse struct {
	Items []*models.Subscription `json:"items"`
	Total int64                  `json:"total"`
}

// @Summary      List subscriptions (Admin)
// @Description  Retrieves a paginated and filterable list of subscription records.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminToken
// @Param        request body ListSubscriptionsRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListSubscriptions
// @Failure      400  {object}  handlers.RespError
// @Router       /api/v1/admin/list_subscriptions [post]
func ApiListSubscriptions(store subscription.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListSubscriptionsRequest
		if !bindJSON(c, &req) {
			return
		}
		switch strings.ToLower(req.SortOrder) {
		case "", "asc", "desc":
		default:
			fail(c, apperr.Validation("sort_order must be asc or desc"))
			return
		}
		items, total, err := store.Scan(c.Request.Context(), &subscription.ScanQuery{
			Filters:  req.Filters,
			From:     req.From,
			Size:     req.Size,
			SortBy:   req.SortBy,
			SortDesc: !strings.EqualFold(req.SortOrder, "asc"),
		})
		if err != nil {
			fail(c, err)
			return
		}
		if items == nil {
			items = []*models.Subscription{}
		}
		c.JSON(http.StatusOK, response.OKT(&ListSubscriptionsResponse{Items: items, Total: total}))
	}
}

// @Summary      Subscription statistics (Admin)
// @Description  Returns the requested aggregate counters; all of them when data_items is empty.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminToken
// @Param        request body statistics.Request true "Statistic ids"
// @Success      200  {object}  handlers.RespStatistic
// @Router       /api/v1/admin/get_subscription_statistic [post]
func ApiGetSubscriptionStatistic(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.Request
		if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
			return
		}
		res, err := svc.GetSubscriptionStatistic(c.Request.Context(), &req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, verify *verification.Service, codes *discount.Service, store subscription.Store, stats *statistics.Service) {
	r.POST("/verify", ApiAdminVerify(verify))
	r.POST("/discount_codes", ApiCreateDiscountCode(codes))
	r.POST("/list_subscriptions", ApiListSubscriptions(store))
	r.POST("/get_subscription_statistic", ApiGetSubscriptionStatistic(stats))
}
