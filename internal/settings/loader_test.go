package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/slotmarket/slotmarket/internal/models"
	"gorm.io/gorm"
)

func openSettingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:settings_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestRefreshDBConfigSnapshot(t *testing.T) {
	resetDBConfig(t)
	conn := openSettingsTestDB(t)

	rows := []models.Setting{
		{Key: BookingHoldMinutesKey, Value: json.RawMessage(`25`)},
		{Key: ReconcileIntervalSecondsKey, Value: json.RawMessage(`"90"`)},
	}
	for _, row := range rows {
		if errCreate := conn.Create(&row).Error; errCreate != nil {
			t.Fatalf("create setting: %v", errCreate)
		}
	}

	if errRefresh := RefreshDBConfigSnapshot(context.Background(), conn); errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}

	if got := BookingHoldMinutes(); got != 25 {
		t.Fatalf("expected hold 25, got %d", got)
	}
	if got := ReconcileInterval(); got != 90*time.Second {
		t.Fatalf("expected interval 90s, got %s", got)
	}
	if DBConfigUpdatedAt().IsZero() {
		t.Fatalf("expected updated at to track row timestamps")
	}
}

func TestRefreshDBConfigSnapshotNilDB(t *testing.T) {
	if errRefresh := RefreshDBConfigSnapshot(context.Background(), nil); errRefresh == nil {
		t.Fatalf("expected error for nil db")
	}
}
