package http

import (
	"net/http"

	"github.com/GriffinCanCode/scriptbridge/internal/types"
	"github.com/gin-gonic/gin"
)

// ListServices lists the host services, optionally filtered by category
func (h *Handlers) ListServices(c *gin.Context) {
	var category *types.Category
	if raw := c.Query("category"); raw != "" {
		cat := types.Category(raw)
		category = &cat
	}

	c.JSON(http.StatusOK, gin.H{
		"services": h.services.List(category),
		"stats":    h.services.Stats(),
	})
}

// ExecuteService runs a host service tool on behalf of the host
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}

	if !h.services.HasTool(req.ToolID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool: " + req.ToolID})
		return
	}

	result, err := h.services.Execute(c.Request.Context(), req.ToolID, req.Params, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(err))
		return
	}

	c.JSON(http.StatusOK, result)
}
