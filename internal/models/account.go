package models

import "time"

// Account kinds.
const (
	// AccountKindNetflix marks a Netflix credential pair.
	AccountKindNetflix = "NETFLIX"
	// AccountKindSpotify marks a Spotify credential pair.
	AccountKindSpotify = "SPOTIFY"
)

// Account represents one shared streaming credential pair whose slots are sold individually.
type Account struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Kind     string `gorm:"type:varchar(16);not null;index"` // Account kind, NETFLIX or SPOTIFY.
	Email    string `gorm:"type:text;not null;uniqueIndex"`  // Login email of the shared credential.
	Password string `gorm:"type:text;not null"`              // Login password; masked everywhere it is logged.

	IsActive bool `gorm:"not null;default:true"` // Whether the account is sellable at all.
	Stock    int  `gorm:"not null;default:0"`    // Cached sellable unit count; live free-row counts stay authoritative.

	IsFamilyPlan bool `gorm:"not null;default:false"` // Spotify family plan flag.
	MaxSlots     int  `gorm:"not null;default:1"`     // Seat capacity for Spotify family plans.

	IsBooked       bool       `gorm:"not null;default:false"` // Whole-account checkout hold flag.
	BookedAt       *time.Time // When the current hold was placed.
	BookedUntil    *time.Time // Deadline after which the hold is stale.
	OrderIDBooking *uint64    `gorm:"index"` // Order that placed the current hold.

	NetflixProfiles []NetflixProfile `gorm:"foreignKey:AccountID"` // Child profiles for NETFLIX accounts.
	SpotifySlots    []SpotifySlot    `gorm:"foreignKey:AccountID"` // Child seats for SPOTIFY accounts.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Subdivided reports whether stock derives from child rows rather than the account itself.
func (a *Account) Subdivided() bool {
	if a == nil {
		return false
	}
	switch a.Kind {
	case AccountKindNetflix:
		return true
	case AccountKindSpotify:
		return a.IsFamilyPlan
	default:
		return false
	}
}

// HoldExpired reports whether the current booking hold is past its deadline.
func (a *Account) HoldExpired(now time.Time) bool {
	if a == nil || !a.IsBooked {
		return false
	}
	return a.BookedUntil != nil && a.BookedUntil.Before(now)
}
