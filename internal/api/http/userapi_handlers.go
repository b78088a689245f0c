package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/scriptbridge/internal/types"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoadPlugin loads the posted descriptor, replacing whatever is loaded
func (h *Handlers) LoadPlugin(c *gin.Context) {
	var d userapi.Descriptor
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}
	h.load(c, d)
}

// load is shared by LoadPlugin and LoadScript
func (h *Handlers) load(c *gin.Context, d userapi.Descriptor) {
	done := h.metrics.Track("load")
	ctx, finish := h.span(c.Request.Context(), "userapi.load", d.ID)

	info, err := h.runtime.Load(ctx, d)
	finish(err)
	if err != nil {
		done("error")
		h.logger.Info("Plugin load failed",
			append(tracing.Fields(ctx), zap.String("plugin_id", d.ID), zap.Error(err))...)

		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, userapi.ErrClosed):
			status = http.StatusServiceUnavailable
		case errors.Is(err, userapi.ErrSuperseded):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error(), "plugin_id": d.ID})
		return
	}

	done("success")
	c.JSON(http.StatusOK, gin.H{
		"state":  userapi.StateReady,
		"plugin": info,
	})
}

// DispatchAction delivers an action to the loaded plugin
func (h *Handlers) DispatchAction(c *gin.Context) {
	var req types.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}

	var payload string
	if req.Data != nil {
		encoded, err := sonic.MarshalString(req.Data)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(err))
			return
		}
		payload = encoded
	}

	done := h.metrics.Track("dispatch")
	delivered, err := h.runtime.DispatchAction(c.Request.Context(), req.Action, payload)

	switch {
	case errors.Is(err, userapi.ErrNotReady):
		done("not_ready")
		c.JSON(http.StatusConflict, gin.H{"delivered": false, "error": err.Error()})
	case errors.Is(err, userapi.ErrInvalidPayload):
		done("invalid")
		c.JSON(http.StatusBadRequest, gin.H{"delivered": false, "error": err.Error()})
	case err != nil && !delivered:
		done("error")
		c.JSON(http.StatusServiceUnavailable, gin.H{"delivered": false, "error": err.Error()})
	case err != nil:
		// the handler ran but did not finish cleanly; details are on the event stream
		done("script_error")
		c.JSON(http.StatusOK, gin.H{"delivered": true, "error": err.Error()})
	default:
		done("success")
		c.JSON(http.StatusOK, gin.H{"delivered": true})
	}
}

// DestroyPlugin tears down the loaded plugin. It always succeeds.
func (h *Handlers) DestroyPlugin(c *gin.Context) {
	done := h.metrics.Track("destroy")
	if err := h.runtime.Destroy(c.Request.Context()); err != nil {
		h.logger.Warn("Destroy failed", zap.Error(err))
	}
	done("success")
	c.Status(http.StatusNoContent)
}

// State reports the runtime state and the loaded plugin, if any
func (h *Handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.runtime.Status())
}

// span starts a traced operation when a tracer is configured
func (h *Handlers) span(ctx context.Context, name, pluginID string) (context.Context, func(error)) {
	if h.tracer == nil {
		return ctx, func(error) {}
	}
	span, ctx := h.tracer.StartSpan(ctx, name)
	span.SetTag("plugin_id", pluginID)
	return ctx, func(err error) {
		if err != nil {
			span.SetError(err)
		} else {
			span.SetStatus(http.StatusOK)
		}
		span.Finish()
		h.tracer.Submit(span)
	}
}
