package handler

import (
	"net/http"

	"cashops/internal/middleware"
	"cashops/internal/model"
	"cashops/internal/repository"
	"cashops/internal/service"
	"cashops/pkg/pagination"
	"cashops/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	workflow *service.WorkflowService
}

func NewApprovalHandler(workflow *service.WorkflowService) *ApprovalHandler {
	return &ApprovalHandler{workflow: workflow}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvals := router.Group("/api/approvals")
	{
		allRoles := middleware.RequireRole(model.RoleMaker, model.RoleChecker, model.RoleAdmin, model.RoleAuditor)
		approvals.GET("", allRoles, h.List)
		approvals.GET("/pending", allRoles, h.ListPending)
		approvals.GET("/clarifications", middleware.RequireRole(model.RoleMaker, model.RoleAdmin), h.ListClarifications)
		approvals.GET("/:id", allRoles, h.Get)
		approvals.POST("/:id/clarify", middleware.RequireRole(model.RoleChecker, model.RoleAdmin), h.Clarify)
		approvals.POST("/:id/resubmit", middleware.RequireRole(model.RoleMaker, model.RoleAdmin), h.Resubmit)
	}
}

type commentBody struct {
	Comment string `json:"comment" binding:"required"`
}

// List returns approval requests filtered by status, entity type and maker
// @Summary      List approval requests
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        status       query  string  false  "Workflow status"
// @Param        entity_type  query  string  false  "Governed entity type"
// @Param        maker_id     query  string  false  "Filter by maker"
// @Param        page         query  int     false  "Page number (default 1)"
// @Param        limit        query  int     false  "Items per page (default 20)"
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/approvals [get]
func (h *ApprovalHandler) List(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.workflow.List(c.Request.Context(), middleware.Identity(c), repository.ApprovalFilter{
		Status:     c.Query("status"),
		EntityType: c.Query("entity_type"),
		MakerID:    c.Query("maker_id"),
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, items, total, p))
}

// ListPending returns the checker work queue, oldest first
// @Summary      Pending approval queue
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        entity_type  query  string  false  "Governed entity type"
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/approvals/pending [get]
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.workflow.ListPending(c.Request.Context(), middleware.Identity(c), c.Query("entity_type"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, items, total, p))
}

// ListClarifications returns the caller's requests waiting on a response
// @Summary      My clarification queue
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/approvals/clarifications [get]
func (h *ApprovalHandler) ListClarifications(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.workflow.ListClarifications(c.Request.Context(), middleware.Identity(c), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, items, total, p))
}

// Get returns a single request with its full comment history
// @Summary      Get approval request
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  int  true  "Approval ID"
// @Success      200  {object}  response.Response{data=model.ApprovalRequest}
// @Router       /api/approvals/{id} [get]
func (h *ApprovalHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	approval, err := h.workflow.Get(c.Request.Context(), middleware.Identity(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, approval))
}

// Clarify parks a pending request until its maker responds
// @Summary      Request clarification
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path  int          true  "Approval ID"
// @Param        body  body  commentBody  true  "Clarification question"
// @Success      200  {object}  response.Response{data=model.ApprovalRequest}
// @Router       /api/approvals/{id}/clarify [post]
func (h *ApprovalHandler) Clarify(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body commentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "a clarification question is required"))
		return
	}
	approval, err := h.workflow.RequestClarification(c.Request.Context(), middleware.Identity(c), id, body.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, approval))
}

// Resubmit answers a clarification and returns the request to the queue
// @Summary      Resubmit after clarification
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path  int          true  "Approval ID"
// @Param        body  body  commentBody  true  "Maker response"
// @Success      200  {object}  response.Response{data=model.ApprovalRequest}
// @Router       /api/approvals/{id}/resubmit [post]
func (h *ApprovalHandler) Resubmit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body commentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "a response comment is required"))
		return
	}
	approval, err := h.workflow.Resubmit(c.Request.Context(), middleware.Identity(c), id, body.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, approval))
}
