package models

import "time"

// NetflixProfile is one of up to five named viewing slots inside a Netflix account.
type NetflixProfile struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID uint64   `gorm:"not null;index"`         // Owning account.
	Account   *Account `gorm:"foreignKey:AccountID"`   // Owning account record.
	Name      string   `gorm:"type:text;not null"`     // Profile display name inside Netflix.
	PIN       string   `gorm:"type:varchar(8)"`        // Optional profile PIN.
	IsKids    bool     `gorm:"not null;default:false"` // Kids profile flag.

	Status      string     `gorm:"type:varchar(16);not null;default:'FREE';index"` // FREE or CLAIMED.
	UserID      *uint64    `gorm:"index"`                                          // Buyer the profile is bound to.
	OrderItemID *uint64    `gorm:"index"`                                          // Order item the profile is bound to.
	ClaimedAt   *time.Time // When the profile was claimed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Free reports whether the profile can still be claimed.
func (p *NetflixProfile) Free() bool {
	return p != nil && p.Status == ResourceStatusFree && p.UserID == nil && p.OrderItemID == nil
}

// HalfLinked reports whether the reference pair disagrees with itself or the status column.
func (p *NetflixProfile) HalfLinked() bool {
	if p == nil {
		return false
	}
	if (p.UserID == nil) != (p.OrderItemID == nil) {
		return true
	}
	claimed := p.UserID != nil && p.OrderItemID != nil
	return claimed != (p.Status == ResourceStatusClaimed)
}
