package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/slotmarket/slotmarket/internal/allocation"
	"github.com/slotmarket/slotmarket/internal/config"
	"github.com/slotmarket/slotmarket/internal/http/api/admin/handlers"
	"github.com/slotmarket/slotmarket/internal/security"
	"github.com/slotmarket/slotmarket/internal/stock"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers administrator routes.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, engine *allocation.Engine, calc *stock.Calculator) {
	if r == nil || db == nil {
		return
	}

	group := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	accountHandler := handlers.NewAccountHandler(db, calc)
	authed.POST("/accounts", accountHandler.Create)
	authed.GET("/accounts", accountHandler.List)
	authed.POST("/accounts/:id/deactivate", accountHandler.Deactivate)
	authed.POST("/accounts/:id/profiles", accountHandler.CreateProfile)
	authed.POST("/accounts/:id/slots", accountHandler.CreateSlot)

	deallocationHandler := handlers.NewDeallocationHandler(engine)
	authed.POST("/deallocations", deallocationHandler.Create)

	repairHandler := handlers.NewRepairHandler(engine)
	authed.POST("/repairs", repairHandler.Relink)

	anomalyHandler := handlers.NewAnomalyHandler(db)
	authed.GET("/anomalies", anomalyHandler.List)
	authed.POST("/anomalies/:id/resolve", anomalyHandler.Resolve)
}

// adminAuthMiddleware validates admin JWTs and checks the account is active.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		claims, errParse := security.ParseAdminToken(jwtCfg.AdminSecret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errParse.Error()})
			return
		}

		var active int64
		if errCount := db.WithContext(c.Request.Context()).
			Table("admins").
			Where("id = ? AND active = ?", claims.AdminID, true).
			Count(&active).Error; errCount != nil || active == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", claims.AdminID)
		c.Next()
	}
}
