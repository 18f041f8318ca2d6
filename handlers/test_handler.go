package handlers

import (
	"context"
	"net/http"

	"avtotest/services"
	"avtotest/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TestHandler struct {
	testService *services.TestService
}

func NewTestHandler(testService *services.TestService) *TestHandler {
	return &TestHandler{testService: testService}
}

func (h *TestHandler) GetSession(c *gin.Context) {
	h.run(c, h.testService.GetSession)
}

func (h *TestHandler) Start(c *gin.Context) {
	var req services.StartTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.run(c, func(ctx context.Context, userID uuid.UUID) (*session.View, error) {
		return h.testService.Start(ctx, userID, &req)
	})
}

func (h *TestHandler) Answer(c *gin.Context) {
	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.run(c, func(ctx context.Context, userID uuid.UUID) (*session.View, error) {
		return h.testService.Answer(ctx, userID, &req)
	})
}

func (h *TestHandler) Next(c *gin.Context) {
	h.run(c, h.testService.Next)
}

func (h *TestHandler) Prev(c *gin.Context) {
	h.run(c, h.testService.Prev)
}

func (h *TestHandler) Finish(c *gin.Context) {
	h.run(c, h.testService.Finish)
}

func (h *TestHandler) Reset(c *gin.Context) {
	h.run(c, h.testService.Reset)
}

func (h *TestHandler) run(c *gin.Context, op func(context.Context, uuid.UUID) (*session.View, error)) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	view, err := op(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
