package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slotmarket/slotmarket/internal/allocation"
	"github.com/slotmarket/slotmarket/internal/booking"
	"github.com/slotmarket/slotmarket/internal/models"
	"github.com/slotmarket/slotmarket/internal/settings"
	"github.com/slotmarket/slotmarket/internal/stock"
	"gorm.io/gorm"
)

// Report summarizes one reconciliation sweep.
type Report struct {
	ClearedBookings    int `json:"cleared_bookings"`    // Stale holds released.
	RecomputedAccounts int `json:"recomputed_accounts"` // Accounts whose cached stock was refreshed.
	Anomalies          int `json:"anomalies"`           // New half-linked or unbound rows flagged.
	RepairedItems      int `json:"repaired_items"`      // Paid items the sweep managed to allocate.
}

// Job is the periodic reconciliation sweep. It is the sole authority for
// expiring stale holds; each step is independently idempotent and safe to run
// concurrently with live checkout traffic.
type Job struct {
	db       *gorm.DB
	bookings *booking.Manager
	stock    *stock.Calculator
	engine   *allocation.Engine
}

// NewJob wires the sweep with its collaborators.
func NewJob(db *gorm.DB, bookings *booking.Manager, calc *stock.Calculator, engine *allocation.Engine) *Job {
	if db == nil {
		return nil
	}
	return &Job{db: db, bookings: bookings, stock: calc, engine: engine}
}

// Start launches the sweep loop in a background goroutine.
func (j *Job) Start(ctx context.Context) {
	if j == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go j.run(ctx)
	log.Infof("reconciler started (interval=%s)", settings.ReconcileInterval())
}

func (j *Job) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if _, errRun := j.RunOnce(ctx); errRun != nil {
			log.WithError(errRun).Warn("reconciler: sweep failed")
		}
		timer := time.NewTimer(settings.ReconcileInterval())
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// RunOnce performs one full sweep and returns its report.
func (j *Job) RunOnce(ctx context.Context) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	report := Report{}

	// Settings may have changed since boot; the sweep doubles as the
	// periodic snapshot refresh.
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, j.db); errRefresh != nil {
		log.WithError(errRefresh).Warn("reconciler: settings refresh failed")
	}

	now := time.Now().UTC()

	cleared, errExpire := j.bookings.ExpireDue(ctx, now)
	report.ClearedBookings = cleared
	if errExpire != nil {
		return report, fmt.Errorf("reconcile: expire holds: %w", errExpire)
	}

	recomputed, errStock := j.stock.ReconcileAll(ctx)
	report.RecomputedAccounts = recomputed
	if errStock != nil {
		return report, fmt.Errorf("reconcile: recompute stock: %w", errStock)
	}

	anomalies, errDetect := j.detectHalfLinked(ctx, now)
	report.Anomalies += anomalies
	if errDetect != nil {
		return report, errDetect
	}

	repaired, unbound, errRepair := j.repairUnboundItems(ctx, now)
	report.RepairedItems = repaired
	report.Anomalies += unbound
	if errRepair != nil {
		return report, errRepair
	}

	log.Infof("reconciler: cleared=%d recomputed=%d anomalies=%d repaired=%d",
		report.ClearedBookings, report.RecomputedAccounts, report.Anomalies, report.RepairedItems)
	return report, nil
}

// detectHalfLinked flags sub-resources whose status column and reference pair
// disagree. The rows are logged and recorded, never auto-fixed.
func (j *Job) detectHalfLinked(ctx context.Context, now time.Time) (int, error) {
	flagged := 0

	var profiles []models.NetflixProfile
	if errFind := j.db.WithContext(ctx).
		Where("(user_id IS NULL) != (order_item_id IS NULL) OR (status = ?) != (user_id IS NOT NULL AND order_item_id IS NOT NULL)",
			models.ResourceStatusClaimed).
		Find(&profiles).Error; errFind != nil {
		return flagged, fmt.Errorf("reconcile: scan profiles: %w", errFind)
	}
	for _, profile := range profiles {
		recorded, errRecord := j.recordAnomaly(ctx, models.AnomalyHalfLinkedProfile, "netflix_profiles", profile.ID, now, map[string]any{
			"status":        profile.Status,
			"user_id":       profile.UserID,
			"order_item_id": profile.OrderItemID,
		})
		if errRecord != nil {
			return flagged, errRecord
		}
		if recorded {
			flagged++
			log.Warnf("reconciler: half-linked profile id=%d status=%s", profile.ID, profile.Status)
		}
	}

	var slots []models.SpotifySlot
	if errFind := j.db.WithContext(ctx).
		Where("(user_id IS NULL) != (order_item_id IS NULL) OR (status = ?) != (user_id IS NOT NULL AND order_item_id IS NOT NULL) OR is_allocated != (status = ?)",
			models.ResourceStatusClaimed, models.ResourceStatusClaimed).
		Find(&slots).Error; errFind != nil {
		return flagged, fmt.Errorf("reconcile: scan slots: %w", errFind)
	}
	for _, slot := range slots {
		recorded, errRecord := j.recordAnomaly(ctx, models.AnomalyHalfLinkedSlot, "spotify_slots", slot.ID, now, map[string]any{
			"status":        slot.Status,
			"is_allocated":  slot.IsAllocated,
			"user_id":       slot.UserID,
			"order_item_id": slot.OrderItemID,
		})
		if errRecord != nil {
			return flagged, errRecord
		}
		if recorded {
			flagged++
			log.Warnf("reconciler: half-linked slot id=%d status=%s", slot.ID, slot.Status)
		}
	}

	return flagged, nil
}

// repairUnboundItems finds paid items with no bound resource and attempts a
// best-effort allocation. Items that still cannot be bound are flagged for
// admin review rather than silently dropped.
func (j *Job) repairUnboundItems(ctx context.Context, now time.Time) (repaired, unbound int, err error) {
	var items []models.OrderItem
	if errFind := j.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status IN ? AND order_items.resource_id IS NULL",
			[]string{models.OrderStatusPaid, models.OrderStatusCompleted}).
		Order("order_items.id ASC").
		Find(&items).Error; errFind != nil {
		return 0, 0, fmt.Errorf("reconcile: scan unbound items: %w", errFind)
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return repaired, unbound, ctx.Err()
		}
		result, errAllocate := j.engine.Allocate(ctx, item.ID, 0)
		if errAllocate != nil {
			log.WithError(errAllocate).Warnf("reconciler: repair allocation item=%d failed", item.ID)
			continue
		}
		if result.OK {
			repaired++
			if _, errRecord := j.recordAnomaly(ctx, models.AnomalyRepairedAllocation, "order_items", item.ID, now, map[string]any{
				"resource_kind": result.ResourceKind,
				"resource_id":   result.ResourceID,
			}); errRecord != nil {
				return repaired, unbound, errRecord
			}
			log.Infof("reconciler: repaired item=%d resource=%s/%d", item.ID, result.ResourceKind, result.ResourceID)
			continue
		}

		recorded, errRecord := j.recordAnomaly(ctx, models.AnomalyUnboundPaidItem, "order_items", item.ID, now, map[string]any{
			"failure":    string(result.Failure),
			"account_id": item.AccountID,
		})
		if errRecord != nil {
			return repaired, unbound, errRecord
		}
		if recorded {
			unbound++
			log.Warnf("reconciler: unbound paid item=%d failure=%s", item.ID, result.Failure)
		}
	}
	return repaired, unbound, nil
}

// recordAnomaly inserts an anomaly row unless an unresolved one already exists
// for the same entity and kind, keeping repeated sweeps idempotent. Returns
// true when a new row was written.
func (j *Job) recordAnomaly(ctx context.Context, kind, table string, entityID uint64, now time.Time, details map[string]any) (bool, error) {
	var existing int64
	if errCount := j.db.WithContext(ctx).Model(&models.AnomalyRecord{}).
		Where("kind = ? AND entity_table = ? AND entity_id = ? AND resolved_at IS NULL", kind, table, entityID).
		Count(&existing).Error; errCount != nil {
		return false, fmt.Errorf("reconcile: check anomaly: %w", errCount)
	}
	if existing > 0 {
		return false, nil
	}

	payload, errMarshal := json.Marshal(details)
	if errMarshal != nil {
		return false, fmt.Errorf("reconcile: marshal anomaly: %w", errMarshal)
	}
	record := models.AnomalyRecord{
		Kind:        kind,
		EntityTable: table,
		EntityID:    entityID,
		Details:     payload,
		DetectedAt:  now,
	}
	if errCreate := j.db.WithContext(ctx).Create(&record).Error; errCreate != nil {
		return false, fmt.Errorf("reconcile: record anomaly: %w", errCreate)
	}
	return true, nil
}
