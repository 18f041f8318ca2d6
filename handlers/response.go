package handlers

import (
	"log"
	"net/http"

	"avtotest/middleware"
	"avtotest/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError writes err as {"error": message} with the status of its kind.
// Errors without a kind are logged and reported as 500.
func respondError(c *gin.Context, err error) {
	if e, ok := services.AsError(err); ok {
		c.JSON(e.HTTPStatus(), gin.H{"error": e.Message})
		return
	}
	log.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(middleware.ContextUserID)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}
	return value.(uuid.UUID), true
}
