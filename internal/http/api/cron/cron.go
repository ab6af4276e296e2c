package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slotmarket/slotmarket/internal/reconcile"
	"github.com/slotmarket/slotmarket/internal/security"
)

// RegisterCronRoutes registers endpoints invoked by the external scheduler.
func RegisterCronRoutes(r *gin.Engine, secret string, job *reconcile.Job) {
	if r == nil || job == nil {
		return
	}

	group := r.Group("/v0/cron")
	group.Use(sharedSecretMiddleware(secret))
	group.POST("/reconcile", func(c *gin.Context) {
		report, errRun := job.RunOnce(c.Request.Context())
		if errRun != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": errRun.Error(), "partial": report})
			return
		}
		c.JSON(http.StatusOK, report)
	})
}

// sharedSecretMiddleware authenticates scheduler callers via X-Cron-Secret.
func sharedSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !security.SecretsEqual(secret, c.GetHeader("X-Cron-Secret")) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
