package handler

import (
	"net/http"
	"strconv"

	"cashops/internal/middleware"
	"cashops/internal/model"
	"cashops/internal/service"
	"cashops/pkg/response"

	"github.com/gin-gonic/gin"
)

// CorrectionHandler exposes the reconciliation correction family. Filing and
// deciding go through the same workflow engine as every other collection;
// the extra lookups exist because each correction keeps its own governed row.
type CorrectionHandler struct {
	workflow    *service.WorkflowService
	corrections service.CorrectionService
}

func NewCorrectionHandler(workflow *service.WorkflowService, corrections service.CorrectionService) *CorrectionHandler {
	return &CorrectionHandler{workflow: workflow, corrections: corrections}
}

func (h *CorrectionHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/reconciliation/corrections")
	{
		allRoles := middleware.RequireRole(model.RoleMaker, model.RoleChecker, model.RoleAdmin, model.RoleAuditor)
		group.POST("/requests", middleware.RequireRole(model.RoleMaker, model.RoleAdmin), h.Submit)
		group.POST("/requests/:id/approve", middleware.RequireRole(model.RoleChecker, model.RoleAdmin), h.Approve)
		group.POST("/requests/:id/reject", middleware.RequireRole(model.RoleChecker, model.RoleAdmin), h.Reject)
		group.GET("/by-approval/:id", allRoles, h.GetByApproval)
		group.GET("/by-recon/:reconID", allRoles, h.ListByRecon)
	}
}

// Submit files an amount edit against a reconciliation result
// @Summary      File a reconciliation correction
// @Tags         corrections
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Success      201  {object}  response.Response{data=model.ApprovalRequest}
// @Router       /api/reconciliation/corrections/requests [post]
func (h *CorrectionHandler) Submit(c *gin.Context) {
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "action, reason and proposed_data are required"))
		return
	}
	approval, err := h.workflow.Submit(c.Request.Context(), middleware.Identity(c), service.SubmitInput{
		EntityType: model.EntityReconCorrection,
		Action:     body.Action,
		EntityID:   body.EntityID,
		MakerID:    body.MakerID,
		Reason:     body.Reason,
		Proposed:   body.Proposed,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, approval))
}

// Approve applies the correction and closes any exceptions it resolves
// @Summary      Approve a correction
// @Tags         corrections
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id  path  int  true  "Approval ID"
// @Success      200  {object}  response.Response{data=model.ApprovalRequest}
// @Router       /api/reconciliation/corrections/requests/{id}/approve [post]
func (h *CorrectionHandler) Approve(c *gin.Context) {
	h.decideCorrection(c, true)
}

// Reject discards the correction, leaving the reconciliation result as it was
// @Summary      Reject a correction
// @Tags         corrections
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id  path  int  true  "Approval ID"
// @Success      200  {object}  response.Response{data=model.ApprovalRequest}
// @Router       /api/reconciliation/corrections/requests/{id}/reject [post]
func (h *CorrectionHandler) Reject(c *gin.Context) {
	h.decideCorrection(c, false)
}

func (h *CorrectionHandler) decideCorrection(c *gin.Context, approve bool) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body decideBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "a decision comment is required"))
		return
	}

	actor := middleware.Identity(c)
	ctx := c.Request.Context()

	existing, err := h.workflow.Get(ctx, actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if existing.EntityType != model.EntityReconCorrection {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "approval request not found in this collection"))
		return
	}

	var approval *model.ApprovalRequest
	if approve {
		approval, err = h.workflow.Approve(ctx, actor, id, body.Comment)
	} else {
		approval, err = h.workflow.Reject(ctx, actor, id, body.Comment)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, approval))
}

// GetByApproval returns the correction row staged for an approval request
// @Summary      Correction by approval id
// @Tags         corrections
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  int  true  "Approval ID"
// @Success      200  {object}  response.Response{data=model.ReconciliationCorrection}
// @Router       /api/reconciliation/corrections/by-approval/{id} [get]
func (h *CorrectionHandler) GetByApproval(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	correction, err := h.corrections.GetByApproval(c.Request.Context(), middleware.Identity(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, correction))
}

// ListByRecon returns every correction ever filed against a result
// @Summary      Corrections for a reconciliation result
// @Tags         corrections
// @Security     BearerAuth
// @Produce      json
// @Param        reconID  path  int  true  "Reconciliation result ID"
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/reconciliation/corrections/by-recon/{reconID} [get]
func (h *CorrectionHandler) ListByRecon(c *gin.Context) {
	reconID, err := strconv.ParseUint(c.Param("reconID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid recon id"))
		return
	}
	corrections, err := h.corrections.ListByRecon(c.Request.Context(), middleware.Identity(c), reconID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, corrections))
}
