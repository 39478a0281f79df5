package handler

import (
	"net/http"

	"cashops/internal/middleware"
	"cashops/internal/model"
	"cashops/internal/service"
	"cashops/pkg/pagination"
	"cashops/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(middleware.RequireRole(model.RoleAdmin, model.RoleAuditor))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves the change trail, newest first
// @Summary      Get audit logs
// @Description  Paginated history of every governed change and decision
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entity_type  query  string  false  "Filter by entity type"
// @Param        page         query  int     false  "Page number (default 1)"
// @Param        limit        query  int     false  "Items per page (default 20)"
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)
	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), middleware.Identity(c), c.Query("entity_type"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, logs, total, p))
}
