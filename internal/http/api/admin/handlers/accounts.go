package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	dbutil "github.com/slotmarket/slotmarket/internal/db"
	"github.com/slotmarket/slotmarket/internal/models"
	"github.com/slotmarket/slotmarket/internal/stock"
	"github.com/slotmarket/slotmarket/internal/util"
	"gorm.io/gorm"
)

// maxNetflixProfiles caps profile creation per account.
const maxNetflixProfiles = 5

// AccountHandler handles admin operations on shared accounts.
type AccountHandler struct {
	db   *gorm.DB
	calc *stock.Calculator
}

// NewAccountHandler wires an account handler with its dependencies.
func NewAccountHandler(db *gorm.DB, calc *stock.Calculator) *AccountHandler {
	return &AccountHandler{db: db, calc: calc}
}

// netflixCreatePayload holds NETFLIX-specific creation fields.
type netflixCreatePayload struct {
	Profiles []profilePayload `json:"profiles"` // Initial profiles, up to five.
}

// profilePayload describes one profile to create.
type profilePayload struct {
	Name   string `json:"name"`
	PIN    string `json:"pin"`
	IsKids bool   `json:"is_kids"`
}

// spotifyCreatePayload holds SPOTIFY-specific creation fields.
type spotifyCreatePayload struct {
	IsFamilyPlan bool `json:"is_family_plan"`
	MaxSlots     int  `json:"max_slots"`
}

// createAccountRequest is the tagged per-kind creation payload. Exactly one of
// the kind sections may be present and it must match the declared kind.
type createAccountRequest struct {
	Kind     string                `json:"kind"`
	Email    string                `json:"email"`
	Password string                `json:"password"`
	Netflix  *netflixCreatePayload `json:"netflix"`
	Spotify  *spotifyCreatePayload `json:"spotify"`
}

// Create validates a tagged payload and persists the account with its initial
// sub-resources in one transaction.
func (h *AccountHandler) Create(c *gin.Context) {
	var body createAccountRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	kind := strings.ToUpper(strings.TrimSpace(body.Kind))
	email := strings.TrimSpace(body.Email)
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email"})
		return
	}
	if body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}

	account := models.Account{
		Kind:     kind,
		Email:    email,
		Password: body.Password,
		IsActive: true,
		MaxSlots: 1,
	}

	switch kind {
	case models.AccountKindNetflix:
		if body.Spotify != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "spotify payload not allowed for NETFLIX"})
			return
		}
		if body.Netflix == nil || len(body.Netflix.Profiles) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "netflix.profiles is required"})
			return
		}
		if len(body.Netflix.Profiles) > maxNetflixProfiles {
			c.JSON(http.StatusBadRequest, gin.H{"error": "at most 5 profiles"})
			return
		}
		for _, profile := range body.Netflix.Profiles {
			if strings.TrimSpace(profile.Name) == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "profile name is required"})
				return
			}
		}
	case models.AccountKindSpotify:
		if body.Netflix != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "netflix payload not allowed for SPOTIFY"})
			return
		}
		if body.Spotify == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "spotify payload is required"})
			return
		}
		if body.Spotify.IsFamilyPlan {
			if body.Spotify.MaxSlots < 2 || body.Spotify.MaxSlots > 6 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "max_slots must be between 2 and 6"})
				return
			}
			account.IsFamilyPlan = true
			account.MaxSlots = body.Spotify.MaxSlots
		} else if body.Spotify.MaxSlots > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_slots requires is_family_plan"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be NETFLIX or SPOTIFY"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&account).Error; errCreate != nil {
			return errCreate
		}
		switch kind {
		case models.AccountKindNetflix:
			for _, profile := range body.Netflix.Profiles {
				row := models.NetflixProfile{
					AccountID: account.ID,
					Name:      strings.TrimSpace(profile.Name),
					PIN:       strings.TrimSpace(profile.PIN),
					IsKids:    profile.IsKids,
					Status:    models.ResourceStatusFree,
				}
				if errProfile := tx.Create(&row).Error; errProfile != nil {
					return errProfile
				}
			}
		case models.AccountKindSpotify:
			// The plan owner seat exists from day one; family members are
			// added as separate seats later.
			seat := models.SpotifySlot{
				AccountID:     account.ID,
				IsMainAccount: true,
				IsActive:      true,
				Status:        models.ResourceStatusFree,
			}
			if errSeat := tx.Create(&seat).Error; errSeat != nil {
				return errSeat
			}
		}
		return nil
	})
	if errTx != nil {
		log.WithError(errTx).Warnf("admin: create account %s failed", util.MaskEmail(email))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create account failed"})
		return
	}

	if _, errRecompute := h.calc.Recompute(c.Request.Context(), account.ID); errRecompute != nil {
		log.WithError(errRecompute).Warnf("admin: stock recompute account=%d failed", account.ID)
	}

	c.JSON(http.StatusOK, gin.H{"id": account.ID})
}

// accountDTO is the admin listing payload; credentials stay masked.
type accountDTO struct {
	ID           uint64 `json:"id"`
	Kind         string `json:"kind"`
	Email        string `json:"email"`
	IsActive     bool   `json:"is_active"`
	Stock        int    `json:"stock"`
	IsFamilyPlan bool   `json:"is_family_plan"`
	MaxSlots     int    `json:"max_slots"`
	IsBooked     bool   `json:"is_booked"`
}

// List returns accounts with cached stock, filterable by kind and email.
func (h *AccountHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.Account{})

	if kind := strings.ToUpper(strings.TrimSpace(c.Query("kind"))); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+search+"%")
		query = query.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "email"), pattern)
	}

	var accounts []models.Account
	if errFind := query.Order("id ASC").Find(&accounts).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list accounts failed"})
		return
	}

	out := make([]accountDTO, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, accountDTO{
			ID:           account.ID,
			Kind:         account.Kind,
			Email:        util.MaskEmail(account.Email),
			IsActive:     account.IsActive,
			Stock:        account.Stock,
			IsFamilyPlan: account.IsFamilyPlan,
			MaxSlots:     account.MaxSlots,
			IsBooked:     account.IsBooked,
		})
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

// Deactivate takes an account off sale without touching existing claims.
func (h *AccountHandler) Deactivate(c *gin.Context) {
	accountID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || accountID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("is_active", false)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deactivate failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	h.calc.Invalidate(c.Request.Context(), accountID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// CreateProfile adds a Netflix profile to an existing account.
func (h *AccountHandler) CreateProfile(c *gin.Context) {
	accountID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || accountID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	var body profilePayload
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile name is required"})
		return
	}

	var account models.Account
	if errFind := h.db.WithContext(c.Request.Context()).First(&account, accountID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	if account.Kind != models.AccountKindNetflix {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a NETFLIX account"})
		return
	}

	var existing int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.NetflixProfile{}).
		Where("account_id = ?", accountID).
		Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count profiles failed"})
		return
	}
	if existing >= maxNetflixProfiles {
		c.JSON(http.StatusConflict, gin.H{"error": "profile limit reached"})
		return
	}

	row := models.NetflixProfile{
		AccountID: accountID,
		Name:      strings.TrimSpace(body.Name),
		PIN:       strings.TrimSpace(body.PIN),
		IsKids:    body.IsKids,
		Status:    models.ResourceStatusFree,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create profile failed"})
		return
	}
	if _, errRecompute := h.calc.Recompute(c.Request.Context(), accountID); errRecompute != nil {
		log.WithError(errRecompute).Warnf("admin: stock recompute account=%d failed", accountID)
	}
	c.JSON(http.StatusOK, gin.H{"id": row.ID})
}

// CreateSlot adds a Spotify seat to an existing family-plan account.
func (h *AccountHandler) CreateSlot(c *gin.Context) {
	accountID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || accountID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	var account models.Account
	if errFind := h.db.WithContext(c.Request.Context()).First(&account, accountID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	if account.Kind != models.AccountKindSpotify {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a SPOTIFY account"})
		return
	}

	var existing int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.SpotifySlot{}).
		Where("account_id = ?", accountID).
		Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count slots failed"})
		return
	}
	if existing >= int64(account.MaxSlots) {
		c.JSON(http.StatusConflict, gin.H{"error": "slot limit reached"})
		return
	}

	row := models.SpotifySlot{
		AccountID: accountID,
		IsActive:  true,
		Status:    models.ResourceStatusFree,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create slot failed"})
		return
	}
	if _, errRecompute := h.calc.Recompute(c.Request.Context(), accountID); errRecompute != nil {
		log.WithError(errRecompute).Warnf("admin: stock recompute account=%d failed", accountID)
	}
	c.JSON(http.StatusOK, gin.H{"id": row.ID})
}
