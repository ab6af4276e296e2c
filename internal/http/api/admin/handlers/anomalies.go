package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slotmarket/slotmarket/internal/models"
	"gorm.io/gorm"
)

// AnomalyHandler exposes reconciliation findings for admin review.
type AnomalyHandler struct {
	db *gorm.DB
}

// NewAnomalyHandler constructs an AnomalyHandler.
func NewAnomalyHandler(db *gorm.DB) *AnomalyHandler {
	return &AnomalyHandler{db: db}
}

// List returns anomaly records, unresolved first. Filterable by kind and
// resolution state.
func (h *AnomalyHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.AnomalyRecord{})

	if kind := strings.ToUpper(strings.TrimSpace(c.Query("kind"))); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	switch strings.TrimSpace(c.Query("resolved")) {
	case "true":
		query = query.Where("resolved_at IS NOT NULL")
	case "false":
		query = query.Where("resolved_at IS NULL")
	}

	var records []models.AnomalyRecord
	if errFind := query.
		Order("resolved_at IS NOT NULL, detected_at DESC").
		Limit(500).
		Find(&records).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list anomalies failed"})
		return
	}

	var unresolved int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.AnomalyRecord{}).
		Where("resolved_at IS NULL").
		Count(&unresolved).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count anomalies failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"anomalies": records, "unresolved": unresolved})
}

// Resolve marks an anomaly as handled after manual repair.
func (h *AnomalyHandler) Resolve(c *gin.Context) {
	recordID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || recordID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid anomaly id"})
		return
	}

	now := time.Now().UTC()
	res := h.db.WithContext(c.Request.Context()).Model(&models.AnomalyRecord{}).
		Where("id = ? AND resolved_at IS NULL", recordID).
		Update("resolved_at", now)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "anomaly not found or already resolved"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
