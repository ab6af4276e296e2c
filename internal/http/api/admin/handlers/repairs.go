package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/slotmarket/slotmarket/internal/allocation"
	"github.com/slotmarket/slotmarket/internal/models"
)

// RepairHandler manually re-links resources and order items.
type RepairHandler struct {
	engine *allocation.Engine
}

// NewRepairHandler constructs a RepairHandler.
func NewRepairHandler(engine *allocation.Engine) *RepairHandler {
	return &RepairHandler{engine: engine}
}

// relinkRequest captures the payload for a manual re-link.
type relinkRequest struct {
	ResourceKind string `json:"resource_kind"`
	ResourceID   uint64 `json:"resource_id"`
	OrderItemID  uint64 `json:"order_item_id"`
}

// Relink binds a specific free resource to a specific unbound order item.
// Used to repair links broken by out-of-band edits.
func (h *RepairHandler) Relink(c *gin.Context) {
	var body relinkRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	kind := strings.ToUpper(strings.TrimSpace(body.ResourceKind))
	if kind != models.ResourceKindProfile && kind != models.ResourceKindSlot {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resource_kind must be NETFLIX_PROFILE or SPOTIFY_SLOT"})
		return
	}
	if body.ResourceID == 0 || body.OrderItemID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resource_id and order_item_id are required"})
		return
	}

	result, errRelink := h.engine.Relink(c.Request.Context(), kind, body.ResourceID, body.OrderItemID)
	if errRelink != nil {
		switch {
		case errors.Is(errRelink, allocation.ErrItemNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order item not found"})
		case errors.Is(errRelink, allocation.ErrResourceNotFound):
			c.JSON(http.StatusConflict, gin.H{"error": "resource not free"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "relink failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"resource_kind": result.ResourceKind,
		"resource_id":   result.ResourceID,
		"already_bound": result.AlreadyAllocated,
	})
}
