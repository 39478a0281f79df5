package handler

import (
	"net/http"

	"cashops/internal/middleware"
	"cashops/internal/model"
	"cashops/internal/service"
	"cashops/pkg/response"

	"github.com/gin-gonic/gin"
)

type MonthLockHandler struct {
	locks *service.MonthLockService
}

func NewMonthLockHandler(locks *service.MonthLockService) *MonthLockHandler {
	return &MonthLockHandler{locks: locks}
}

func (h *MonthLockHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/admin/month-locks")
	{
		group.GET("", middleware.RequireRole(model.RoleAdmin, model.RoleAuditor), h.List)
		group.POST("/:monthKey", middleware.RequireRole(model.RoleAdmin), h.Lock)
		group.DELETE("/:monthKey", middleware.RequireRole(model.RoleAdmin), h.Unlock)
	}
}

// List returns every month lock on record
// @Summary      List month locks
// @Tags         month-locks
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/admin/month-locks [get]
func (h *MonthLockHandler) List(c *gin.Context) {
	locks, err := h.locks.List(c.Request.Context(), middleware.Identity(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, locks))
}

// Lock freezes an accounting month
// @Summary      Lock a month
// @Tags         month-locks
// @Security     BearerAuth
// @Produce      json
// @Param        monthKey  path  string  true  "Month key, YYYYMM"
// @Success      200  {object}  response.Response
// @Router       /api/admin/month-locks/{monthKey} [post]
func (h *MonthLockHandler) Lock(c *gin.Context) {
	monthKey := c.Param("monthKey")
	if err := h.locks.Lock(c.Request.Context(), middleware.Identity(c), monthKey); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"month": monthKey, "status": model.MonthLocked}))
}

// Unlock reopens a frozen month
// @Summary      Unlock a month
// @Tags         month-locks
// @Security     BearerAuth
// @Produce      json
// @Param        monthKey  path  string  true  "Month key, YYYYMM"
// @Success      200  {object}  response.Response
// @Router       /api/admin/month-locks/{monthKey} [delete]
func (h *MonthLockHandler) Unlock(c *gin.Context) {
	monthKey := c.Param("monthKey")
	if err := h.locks.Unlock(c.Request.Context(), middleware.Identity(c), monthKey); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"month": monthKey, "status": model.MonthOpen}))
}
