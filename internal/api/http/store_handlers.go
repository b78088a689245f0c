package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/scriptbridge/internal/store"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi"
	"github.com/gin-gonic/gin"
)

// ListScripts lists installed scripts
func (h *Handlers) ListScripts(c *gin.Context) {
	manifests, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(err))
		return
	}
	if manifests == nil {
		manifests = []store.Manifest{}
	}
	c.JSON(http.StatusOK, gin.H{"scripts": manifests})
}

// InstallScript installs or replaces a script
func (h *Handlers) InstallScript(c *gin.Context) {
	var d userapi.Descriptor
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}

	manifest, err := h.store.Install(c.Request.Context(), d)
	if err != nil {
		c.JSON(storeStatus(err), errorBody(err))
		return
	}
	c.JSON(http.StatusCreated, manifest)
}

// GetScript returns a manifest, with the source when ?source=true
func (h *Handlers) GetScript(c *gin.Context) {
	d, manifest, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(storeStatus(err), errorBody(err))
		return
	}

	body := gin.H{"manifest": manifest}
	if c.Query("source") == "true" {
		body["script"] = d.Script
	}
	c.JSON(http.StatusOK, body)
}

// RemoveScript uninstalls a script. The loaded plugin is not affected.
func (h *Handlers) RemoveScript(c *gin.Context) {
	if err := h.store.Remove(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(storeStatus(err), errorBody(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// LoadScript loads an installed script into the runtime
func (h *Handlers) LoadScript(c *gin.Context) {
	d, _, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(storeStatus(err), errorBody(err))
		return
	}
	h.load(c, d)
}

func storeStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, userapi.ErrInvalidDescriptor):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
