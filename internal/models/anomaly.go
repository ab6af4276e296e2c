package models

import (
	"time"

	"gorm.io/datatypes"
)

// Anomaly kinds recorded by the reconciliation sweep.
const (
	// AnomalyHalfLinkedProfile marks a Netflix profile with a broken reference pair.
	AnomalyHalfLinkedProfile = "HALF_LINKED_PROFILE"
	// AnomalyHalfLinkedSlot marks a Spotify seat with a broken reference pair.
	AnomalyHalfLinkedSlot = "HALF_LINKED_SLOT"
	// AnomalyUnboundPaidItem marks a paid order item with no bound resource and no free capacity.
	AnomalyUnboundPaidItem = "UNBOUND_PAID_ITEM"
	// AnomalyRepairedAllocation records a paid item the sweep managed to allocate itself.
	AnomalyRepairedAllocation = "REPAIRED_ALLOCATION"
)

// AnomalyRecord is a data inconsistency flagged for admin review. The sweep
// never deletes or silently rewrites the offending rows.
type AnomalyRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Kind        string `gorm:"type:varchar(32);not null;index"` // Anomaly classification.
	EntityTable string `gorm:"type:varchar(64);not null"`       // Table holding the offending row.
	EntityID    uint64 `gorm:"not null;index"`                  // Offending row ID.

	Details datatypes.JSON `gorm:"type:jsonb"` // Snapshot of the inconsistent fields.

	DetectedAt time.Time  `gorm:"not null"` // When the sweep found the row.
	ResolvedAt *time.Time // When an admin marked it handled.
}
