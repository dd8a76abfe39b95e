package handlers

import (
	"net/http"

	"paygate_backend/internal/services"

	"github.com/gin-gonic/gin"
)

type HistoryHandler struct {
	*BaseHandler
	historyService services.HistoryService
}

func NewHistoryHandler(base *BaseHandler, historyService services.HistoryService) *HistoryHandler {
	return &HistoryHandler{
		BaseHandler:    base,
		historyService: historyService,
	}
}

func (h *HistoryHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/history/:customerId", h.GetHistory)
}

func (h *HistoryHandler) GetHistory(c *gin.Context) {
	records, err := h.historyService.GetHistory(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}
