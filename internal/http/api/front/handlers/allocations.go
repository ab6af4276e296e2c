package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slotmarket/slotmarket/internal/allocation"
)

// AllocationHandler handles post-payment fulfillment endpoints.
type AllocationHandler struct {
	engine *allocation.Engine
}

// NewAllocationHandler constructs an AllocationHandler.
func NewAllocationHandler(engine *allocation.Engine) *AllocationHandler {
	return &AllocationHandler{engine: engine}
}

// createAllocationRequest captures the payload for binding a paid item.
type createAllocationRequest struct {
	OrderItemID uint64 `json:"order_item_id"` // Paid order item to fulfill.
}

// Create claims one free sub-resource for a paid order item. Retrying with the
// same item returns the same binding.
func (h *AllocationHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createAllocationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.OrderItemID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_item_id is required"})
		return
	}

	result, errAllocate := h.engine.Allocate(c.Request.Context(), body.OrderItemID, userID)
	if errAllocate != nil {
		switch {
		case errors.Is(errAllocate, allocation.ErrItemNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order item not found"})
		case errors.Is(errAllocate, allocation.ErrUserMismatch):
			c.JSON(http.StatusForbidden, gin.H{"error": "order belongs to another user"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "allocation_failed"})
		}
		return
	}

	if !result.OK {
		switch result.Failure {
		case allocation.FailureOrderNotPaid:
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "order_not_paid"})
		case allocation.FailureNoProfileAvailable:
			c.JSON(http.StatusConflict, gin.H{"error": "no_profile_available"})
		case allocation.FailureNoSlotAvailable:
			c.JSON(http.StatusConflict, gin.H{"error": "no_slot_available"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "allocation_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"resource_kind": result.ResourceKind,
		"resource_id":   result.ResourceID,
	})
}
