package db

import (
	"fmt"

	"github.com/slotmarket/slotmarket/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all persisted entities and then
// runs data backfills that AutoMigrate cannot express.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.Account{},
		&models.NetflixProfile{},
		&models.SpotifySlot{},
		&models.Order{},
		&models.OrderItem{},
		&models.Transaction{},
		&models.AnomalyRecord{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: auto migrate: %w", errMigrate)
	}

	if errBackfill := backfillResourceStatus(conn); errBackfill != nil {
		return errBackfill
	}
	return nil
}

// backfillResourceStatus derives the status column for rows created before the
// column existed, where claim state lived only in the reference pair. Rows with
// a broken pair are left untouched for the reconciliation sweep to flag.
func backfillResourceStatus(conn *gorm.DB) error {
	if errProfiles := conn.Exec(`
		UPDATE netflix_profiles
		SET status = 'CLAIMED'
		WHERE status = 'FREE' AND user_id IS NOT NULL AND order_item_id IS NOT NULL
	`).Error; errProfiles != nil {
		return fmt.Errorf("db: backfill profile status: %w", errProfiles)
	}

	if errSlots := conn.Exec(`
		UPDATE spotify_slots
		SET status = 'CLAIMED', is_allocated = ?
		WHERE status = 'FREE' AND user_id IS NOT NULL AND order_item_id IS NOT NULL
	`, true).Error; errSlots != nil {
		return fmt.Errorf("db: backfill slot status: %w", errSlots)
	}

	if errMirror := conn.Exec(`
		UPDATE spotify_slots
		SET is_allocated = (status = 'CLAIMED')
		WHERE is_allocated != (status = 'CLAIMED')
	`).Error; errMirror != nil {
		return fmt.Errorf("db: backfill slot allocation mirror: %w", errMirror)
	}
	return nil
}
