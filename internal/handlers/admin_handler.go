package handlers

import (
	"io"
	"net/http"

	"paygate_backend/internal/auth"
	"paygate_backend/internal/logger"
	"paygate_backend/internal/middleware"
	"paygate_backend/internal/services"
	"paygate_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	*BaseHandler
	adminService    services.AdminService
	snapshotService services.SnapshotService
	tokens          *auth.TokenManager
}

func NewAdminHandler(base *BaseHandler, adminService services.AdminService, snapshotService services.SnapshotService, tokens *auth.TokenManager) *AdminHandler {
	return &AdminHandler{
		BaseHandler:     base,
		adminService:    adminService,
		snapshotService: snapshotService,
		tokens:          tokens,
	}
}

func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin")
	admin.POST("/login", h.Login)

	ledger := admin.Group("/ledger")
	ledger.Use(middleware.AdminAuthMiddleware(h.tokens))
	{
		ledger.POST("/snapshots", h.CreateSnapshot)
		ledger.GET("/snapshots", h.ListSnapshots)
		ledger.GET("/snapshots/:name", h.DownloadSnapshot)
	}
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.AdminLoginRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	res, err := h.adminService.Login(c.Request.Context(), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) CreateSnapshot(c *gin.Context) {
	res, err := h.snapshotService.CreateSnapshot(c.Request.Context())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	logger.CtxInfo(c.Request.Context(), "Snapshot requested", "admin", middleware.GetSubject(c), "path", res.Path)
	c.JSON(http.StatusCreated, res)
}

func (h *AdminHandler) ListSnapshots(c *gin.Context) {
	res, err := h.snapshotService.ListSnapshots(c.Request.Context())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) DownloadSnapshot(c *gin.Context) {
	name := c.Param("name")

	rc, err := h.snapshotService.OpenSnapshot(c.Request.Context(), name)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.CtxWithError(c.Request.Context(), "Snapshot download interrupted", err, "name", name)
	}
}
