package handlers

import (
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/response"
	"github.com/gin-gonic/gin"
)

// fail writes the error envelope with the status its kind maps to.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := response.FromError(err)
	c.JSON(status, body)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, apperr.Validation("invalid request body: %v", err))
		return false
	}
	return true
}
