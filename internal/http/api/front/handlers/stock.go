package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/slotmarket/slotmarket/internal/stock"
)

// StockHandler serves storefront availability lookups.
type StockHandler struct {
	calc *stock.Calculator
}

// NewStockHandler constructs a StockHandler.
func NewStockHandler(calc *stock.Calculator) *StockHandler {
	return &StockHandler{calc: calc}
}

// Get returns the sellable unit count for an account, served from the
// advisory cache when warm.
func (h *StockHandler) Get(c *gin.Context) {
	accountID, errParse := strconv.ParseUint(c.Param("accountID"), 10, 64)
	if errParse != nil || accountID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	available, errCompute := h.calc.CachedStock(c.Request.Context(), accountID)
	if errCompute != nil {
		if errors.Is(errCompute, stock.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stock lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"available": available})
}
