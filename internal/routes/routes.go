package routes

import (
	"paygate_backend/internal/handlers"
	"paygate_backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts every HTTP route on the engine.
func RegisterRoutes(ginRouter *gin.Engine, appHandlers *handlers.AppHandlers) {
	root := ginRouter.Group("/")
	{
		appHandlers.HealthHandler.RegisterRoutes(root)
		appHandlers.PaymentHandler.RegisterRoutes(root)
		appHandlers.HistoryHandler.RegisterRoutes(root)
	}

	if appHandlers.AdminHandler == nil {
		logger.Info("Admin routes disabled: no admin password hash configured")
		return
	}
	appHandlers.AdminHandler.RegisterRoutes(root)
	logger.Info("Admin routes registered")
}
