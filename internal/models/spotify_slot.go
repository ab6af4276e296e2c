package models

import "time"

// SpotifySlot is one seat inside a Spotify account. Family plans carry up to
// MaxSlots seats, non-family accounts exactly one.
type SpotifySlot struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID uint64   `gorm:"not null;index"`       // Owning account.
	Account   *Account `gorm:"foreignKey:AccountID"` // Owning account record.

	IsMainAccount bool `gorm:"not null;default:false"` // Marks the plan owner seat; at most one per account.
	IsActive      bool `gorm:"not null;default:true"`  // Whether the seat is sellable.

	Status      string     `gorm:"type:varchar(16);not null;default:'FREE';index"` // FREE or CLAIMED.
	IsAllocated bool       `gorm:"not null;default:false"`                         // Mirrors Status for the storefront; CLAIMED iff true.
	UserID      *uint64    `gorm:"index"`                                          // Buyer the seat is bound to.
	OrderItemID *uint64    `gorm:"index"`                                          // Order item the seat is bound to.
	ClaimedAt   *time.Time // When the seat was claimed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Free reports whether the seat can still be claimed.
func (s *SpotifySlot) Free() bool {
	return s != nil && s.IsActive && s.Status == ResourceStatusFree && s.UserID == nil && s.OrderItemID == nil
}

// HalfLinked reports whether the reference pair disagrees with itself or the status column.
func (s *SpotifySlot) HalfLinked() bool {
	if s == nil {
		return false
	}
	if (s.UserID == nil) != (s.OrderItemID == nil) {
		return true
	}
	claimed := s.UserID != nil && s.OrderItemID != nil
	if claimed != (s.Status == ResourceStatusClaimed) {
		return true
	}
	return claimed != s.IsAllocated
}
