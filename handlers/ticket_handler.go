package handlers

import (
	"net/http"

	"avtotest/services"

	"github.com/gin-gonic/gin"
)

type TicketHandler struct {
	ticketService *services.TicketService
	resultService *services.ResultService
}

func NewTicketHandler(ticketService *services.TicketService, resultService *services.ResultService) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
		resultService: resultService,
	}
}

func (h *TicketHandler) ListTickets(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	tickets, err := h.ticketService.ListTickets(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tickets)
}

func (h *TicketHandler) ListMyResults(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	results, err := h.resultService.ListUserResults(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}
