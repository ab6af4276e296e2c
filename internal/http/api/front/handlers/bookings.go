package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slotmarket/slotmarket/internal/booking"
	"github.com/slotmarket/slotmarket/internal/settings"
)

// BookingHandler handles checkout hold endpoints.
type BookingHandler struct {
	bookings *booking.Manager
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings *booking.Manager) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// createBookingRequest captures the payload for placing a hold.
type createBookingRequest struct {
	AccountID uint64 `json:"account_id"` // Account to hold.
	OrderID   uint64 `json:"order_id"`   // Pending order placing the hold.
}

// Create places a whole-account hold for the duration of checkout.
func (h *BookingHandler) Create(c *gin.Context) {
	if getUserID(c) == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createBookingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.AccountID == 0 || body.OrderID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_id and order_id are required"})
		return
	}

	hold := time.Duration(settings.BookingHoldMinutes()) * time.Minute
	until, errBook := h.bookings.Book(c.Request.Context(), body.AccountID, body.OrderID, hold)
	if errBook != nil {
		switch {
		case errors.Is(errBook, booking.ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		case errors.Is(errBook, booking.ErrAccountInactive):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "account_inactive"})
		case errors.Is(errBook, booking.ErrAlreadyBooked):
			c.JSON(http.StatusConflict, gin.H{"error": "already_booked"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "booking failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "booked_until": until})
}

// Release clears a hold on explicit checkout cancellation.
func (h *BookingHandler) Release(c *gin.Context) {
	if getUserID(c) == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	accountID, errParse := strconv.ParseUint(c.Param("accountID"), 10, 64)
	if errParse != nil || accountID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	if errRelease := h.bookings.Release(c.Request.Context(), accountID); errRelease != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "release failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
