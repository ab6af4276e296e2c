package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/slotmarket/slotmarket/internal/allocation"
	"github.com/slotmarket/slotmarket/internal/booking"
	"github.com/slotmarket/slotmarket/internal/config"
	"github.com/slotmarket/slotmarket/internal/http/api/front/handlers"
	"github.com/slotmarket/slotmarket/internal/security"
	"github.com/slotmarket/slotmarket/internal/stock"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers checkout-facing routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, bookings *booking.Manager, engine *allocation.Engine, calc *stock.Calculator) {
	if r == nil || db == nil {
		return
	}

	front := r.Group("/v0/front")
	front.Use(userAuthMiddleware(jwtCfg))

	bookingHandler := handlers.NewBookingHandler(bookings)
	front.POST("/bookings", bookingHandler.Create)
	front.DELETE("/bookings/:accountID", bookingHandler.Release)

	allocationHandler := handlers.NewAllocationHandler(engine)
	front.POST("/allocations", allocationHandler.Create)

	stockHandler := handlers.NewStockHandler(calc)
	front.GET("/accounts/:accountID/stock", stockHandler.Get)
}

// userAuthMiddleware validates buyer JWTs and loads the user ID into context.
func userAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errParse := security.ParseUserToken(jwtCfg.UserSecret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errParse.Error()})
			return
		}
		c.Set("userID", claims.UserID)
		c.Next()
	}
}
