package middleware

import (
	"github.com/fatflowers/subsync/pkg/response"
	"github.com/gin-gonic/gin"
)

func abortWithError(c *gin.Context, err error) {
	status, body := response.FromError(err)
	c.AbortWithStatusJSON(status, body)
}
