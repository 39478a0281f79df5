package handler

import (
	"encoding/json"
	"net/http"

	"cashops/internal/middleware"
	"cashops/internal/model"
	"cashops/internal/service"
	"cashops/pkg/response"

	"github.com/gin-gonic/gin"
)

// collection binds a URL path segment to the entity type it governs.
type collection struct {
	path       string
	entityType string
}

// Every governed collection shares the same request family:
//
//	POST /api/<collection>/requests             file a change
//	POST /api/<collection>/requests/:id/approve
//	POST /api/<collection>/requests/:id/reject
//
// Reconciliation corrections have their own handler because they carry a
// linked correction row and a by-approval lookup.
var collections = []collection{
	{"vendors", model.EntityVendorMaster},
	{"bank-stores", model.EntityBankStoreMaster},
	{"store-mappings", model.EntityStoreMapping},
	{"charge-configs", model.EntityChargeConfig},
	{"vendor-charges", model.EntityVendorCharge},
	{"charge-slabs", model.EntityChargeSlab},
	{"waivers", model.EntityWaiver},
	{"file-formats", model.EntityVendorFileFormat},
	{"pickup-rules", model.EntityPickupRule},
	{"remittances", model.EntityRemittance},
	{"exceptions", model.EntityExceptionResolution},
}

type RequestsHandler struct {
	workflow *service.WorkflowService
}

func NewRequestsHandler(workflow *service.WorkflowService) *RequestsHandler {
	return &RequestsHandler{workflow: workflow}
}

func (h *RequestsHandler) RegisterRoutes(router *gin.RouterGroup) {
	for _, col := range collections {
		group := router.Group("/api/" + col.path + "/requests")
		entityType := col.entityType
		group.POST("", middleware.RequireRole(model.RoleMaker, model.RoleAdmin), h.submit(entityType))
		group.POST("/:id/approve", middleware.RequireRole(model.RoleChecker, model.RoleAdmin), h.decide(entityType, true))
		group.POST("/:id/reject", middleware.RequireRole(model.RoleChecker, model.RoleAdmin), h.decide(entityType, false))
	}
}

type submitBody struct {
	Action   string          `json:"action" binding:"required"`
	EntityID *uint64         `json:"entity_id"`
	MakerID  string          `json:"maker_id"`
	Reason   string          `json:"reason" binding:"required"`
	Proposed json.RawMessage `json:"proposed_data"`
}

type decideBody struct {
	Comment string `json:"comment" binding:"required"`
}

func (h *RequestsHandler) submit(entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body submitBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "action, reason and proposed_data are required"))
			return
		}
		approval, err := h.workflow.Submit(c.Request.Context(), middleware.Identity(c), service.SubmitInput{
			EntityType: entityType,
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
}

func (h *RequestsHandler) decide(entityType string, approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
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

		// A request reached through the wrong collection does not exist here.
		existing, err := h.workflow.Get(ctx, actor, id)
		if err != nil {
			writeError(c, err)
			return
		}
		if existing.EntityType != entityType {
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
}
