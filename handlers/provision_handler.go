package handlers

import (
	"io"
	"net/http"

	"avtotest/services"

	"github.com/gin-gonic/gin"
)

// ProvisionHandler serves the create-user function.
type ProvisionHandler struct {
	provisioner *services.Provisioner
}

func NewProvisionHandler(provisioner *services.Provisioner) *ProvisionHandler {
	return &ProvisionHandler{provisioner: provisioner}
}

func (h *ProvisionHandler) Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h *ProvisionHandler) CreateUser(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.provisioner.Provision(c.Request.Context(), c.GetHeader("Authorization"), body)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
