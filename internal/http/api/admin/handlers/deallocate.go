package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/slotmarket/slotmarket/internal/allocation"
	"github.com/slotmarket/slotmarket/internal/models"
)

// DeallocationHandler releases claimed sub-resources back to FREE.
type DeallocationHandler struct {
	engine *allocation.Engine
}

// NewDeallocationHandler constructs a DeallocationHandler.
func NewDeallocationHandler(engine *allocation.Engine) *DeallocationHandler {
	return &DeallocationHandler{engine: engine}
}

// createDeallocationRequest captures the payload for an admin release.
type createDeallocationRequest struct {
	ResourceKind string `json:"resource_kind"` // NETFLIX_PROFILE or SPOTIFY_SLOT.
	ResourceID   uint64 `json:"resource_id"`
	Override     bool   `json:"override"` // Required while the owning order is still paid.
}

// Create releases a claimed resource. While the owning order is PAID or
// COMPLETED the release is rejected unless override is set.
func (h *DeallocationHandler) Create(c *gin.Context) {
	var body createDeallocationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	kind := strings.ToUpper(strings.TrimSpace(body.ResourceKind))
	if kind != models.ResourceKindProfile && kind != models.ResourceKindSlot {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resource_kind must be NETFLIX_PROFILE or SPOTIFY_SLOT"})
		return
	}
	if body.ResourceID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resource_id is required"})
		return
	}

	if errDeallocate := h.engine.Deallocate(c.Request.Context(), kind, body.ResourceID, body.Override); errDeallocate != nil {
		switch {
		case errors.Is(errDeallocate, allocation.ErrResourceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		case errors.Is(errDeallocate, allocation.ErrOrderStillPaid):
			c.JSON(http.StatusConflict, gin.H{"error": "order_still_paid"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "deallocation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
