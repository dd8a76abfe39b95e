package handlers

import (
	"net/http"

	"paygate_backend/internal/metrics"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	gateways []string
}

func NewHealthHandler(gateways []string) *HealthHandler {
	return &HealthHandler{gateways: gateways}
}

func (h *HealthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"gateways": h.gateways,
	})
}
