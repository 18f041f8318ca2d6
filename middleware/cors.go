package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	allowedHeaders = "authorization, x-client-info, apikey, content-type"
	allowedMethods = "GET, POST, PATCH, OPTIONS"
)

// CORS allows any origin and answers every preflight request with an empty
// 200, before any authentication runs.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", allowedHeaders)
		c.Header("Access-Control-Allow-Methods", allowedMethods)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
