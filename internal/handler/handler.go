package handler

import (
	"strconv"

	"cashops/internal/apperr"
	"cashops/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError maps a service error onto the wire: sentinel errors carry their
// HTTP status, anything else is a 500.
func writeError(c *gin.Context, err error) {
	status := apperr.Status(err)
	c.JSON(status, response.Error(status, err.Error()))
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(400, response.Error(400, "invalid id"))
		return 0, false
	}
	return id, true
}
