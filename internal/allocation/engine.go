package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slotmarket/slotmarket/internal/models"
	"github.com/slotmarket/slotmarket/internal/stock"
	"gorm.io/gorm"
)

// Engine binds paid order items to free sub-resources. Correctness rests
// entirely on conditional updates scoped to the known-free state: the update
// affects at most one row, so no two callers can win the same profile or seat
// regardless of interleaving. No in-process locks are involved.
type Engine struct {
	db    *gorm.DB
	stock *stock.Calculator
}

// NewEngine wires an allocation engine with its database and stock calculator.
func NewEngine(db *gorm.DB, calc *stock.Calculator) *Engine {
	return &Engine{db: db, stock: calc}
}

// Allocate claims exactly one free sub-resource for a paid order item. Safe to
// retry: an item that already has a binding returns it again without consuming
// a second resource. Pass userID 0 to bind to the order's owner.
func (e *Engine) Allocate(ctx context.Context, orderItemID, userID uint64) (Result, error) {
	item, errLoad := e.loadItem(ctx, orderItemID)
	if errLoad != nil {
		return Result{}, errLoad
	}

	if item.Allocated() {
		return success(*item.ResourceKind, *item.ResourceID, true), nil
	}

	if item.Order == nil || item.Account == nil {
		return Result{}, fmt.Errorf("allocation: item %d missing order or account", orderItemID)
	}
	if userID == 0 {
		userID = item.Order.UserID
	} else if userID != item.Order.UserID {
		return Result{}, ErrUserMismatch
	}
	if !item.Order.Payable() {
		return failure(FailureOrderNotPaid), nil
	}

	var (
		result Result
		err    error
	)
	switch item.Account.Kind {
	case models.AccountKindNetflix:
		result, err = e.claimProfile(ctx, item, userID)
	case models.AccountKindSpotify:
		result, err = e.claimSlot(ctx, item, userID)
	default:
		return Result{}, fmt.Errorf("allocation: unknown account kind %q", item.Account.Kind)
	}
	if err != nil {
		return Result{}, err
	}

	if result.OK && !result.AlreadyAllocated {
		// Stock staleness is tolerated, double allocation is not; a failed
		// refresh never rolls back the claim.
		if _, errRecompute := e.stock.Recompute(ctx, item.AccountID); errRecompute != nil {
			log.WithError(errRecompute).Warnf("allocation: stock recompute account=%d failed", item.AccountID)
		}
	}
	return result, nil
}

func (e *Engine) loadItem(ctx context.Context, orderItemID uint64) (*models.OrderItem, error) {
	var item models.OrderItem
	if errFind := e.db.WithContext(ctx).
		Preload("Order").
		Preload("Account").
		First(&item, orderItemID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("allocation: load item: %w", errFind)
	}
	return &item, nil
}

// claimProfile walks free Netflix profiles and claims the first one it wins.
// A zero-row conditional update is a lost race, not an error: pick the next
// candidate until none remain. Every lost race means the candidate left the
// free pool, so the walk always terminates.
func (e *Engine) claimProfile(ctx context.Context, item *models.OrderItem, userID uint64) (Result, error) {
	for {
		var candidate models.NetflixProfile
		errFind := e.db.WithContext(ctx).
			Where("account_id = ? AND status = ? AND user_id IS NULL AND order_item_id IS NULL",
				item.AccountID, models.ResourceStatusFree).
			Order("id ASC").
			First(&candidate).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return failure(FailureNoProfileAvailable), nil
			}
			return Result{}, fmt.Errorf("allocation: find free profile: %w", errFind)
		}

		now := time.Now().UTC()
		res := e.db.WithContext(ctx).Model(&models.NetflixProfile{}).
			Where("id = ? AND status = ? AND user_id IS NULL AND order_item_id IS NULL",
				candidate.ID, models.ResourceStatusFree).
			Updates(map[string]any{
				"status":        models.ResourceStatusClaimed,
				"user_id":       userID,
				"order_item_id": item.ID,
				"claimed_at":    now,
			})
		if res.Error != nil {
			return Result{}, fmt.Errorf("allocation: claim profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}

		return e.bindItem(ctx, item, models.ResourceKindProfile, candidate.ID)
	}
}

// claimSlot is the Spotify mirror of claimProfile, filtered to active seats.
func (e *Engine) claimSlot(ctx context.Context, item *models.OrderItem, userID uint64) (Result, error) {
	for {
		var candidate models.SpotifySlot
		errFind := e.db.WithContext(ctx).
			Where("account_id = ? AND is_active = ? AND status = ? AND user_id IS NULL AND order_item_id IS NULL",
				item.AccountID, true, models.ResourceStatusFree).
			Order("id ASC").
			First(&candidate).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return failure(FailureNoSlotAvailable), nil
			}
			return Result{}, fmt.Errorf("allocation: find free slot: %w", errFind)
		}

		now := time.Now().UTC()
		res := e.db.WithContext(ctx).Model(&models.SpotifySlot{}).
			Where("id = ? AND is_active = ? AND status = ? AND user_id IS NULL AND order_item_id IS NULL",
				candidate.ID, true, models.ResourceStatusFree).
			Updates(map[string]any{
				"status":        models.ResourceStatusClaimed,
				"is_allocated":  true,
				"user_id":       userID,
				"order_item_id": item.ID,
				"claimed_at":    now,
			})
		if res.Error != nil {
			return Result{}, fmt.Errorf("allocation: claim slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}

		return e.bindItem(ctx, item, models.ResourceKindSlot, candidate.ID)
	}
}

// bindItem writes the reciprocal link onto the order item. When a concurrent
// call for the same item bound first, the freshly claimed resource is handed
// back and the existing binding is returned idempotently.
func (e *Engine) bindItem(ctx context.Context, item *models.OrderItem, kind string, resourceID uint64) (Result, error) {
	res := e.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("id = ? AND resource_id IS NULL", item.ID).
		Updates(map[string]any{
			"resource_kind": kind,
			"resource_id":   resourceID,
		})
	if res.Error != nil {
		return Result{}, fmt.Errorf("allocation: bind item: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return success(kind, resourceID, false), nil
	}

	if errRelease := e.releaseResource(ctx, kind, resourceID, item.ID); errRelease != nil {
		return Result{}, errRelease
	}
	bound, errLoad := e.loadItem(ctx, item.ID)
	if errLoad != nil {
		return Result{}, errLoad
	}
	if !bound.Allocated() {
		return Result{}, fmt.Errorf("allocation: item %d binding vanished", item.ID)
	}
	return success(*bound.ResourceKind, *bound.ResourceID, true), nil
}

// releaseResource returns a claimed resource to FREE, conditioned on it still
// being linked to the given item so an unrelated claim is never clobbered.
func (e *Engine) releaseResource(ctx context.Context, kind string, resourceID, orderItemID uint64) error {
	patch := map[string]any{
		"status":        models.ResourceStatusFree,
		"user_id":       nil,
		"order_item_id": nil,
		"claimed_at":    nil,
	}
	switch kind {
	case models.ResourceKindProfile:
		res := e.db.WithContext(ctx).Model(&models.NetflixProfile{}).
			Where("id = ? AND status = ? AND order_item_id = ?", resourceID, models.ResourceStatusClaimed, orderItemID).
			Updates(patch)
		if res.Error != nil {
			return fmt.Errorf("allocation: release profile: %w", res.Error)
		}
		return nil
	case models.ResourceKindSlot:
		patch["is_allocated"] = false
		res := e.db.WithContext(ctx).Model(&models.SpotifySlot{}).
			Where("id = ? AND status = ? AND order_item_id = ?", resourceID, models.ResourceStatusClaimed, orderItemID).
			Updates(patch)
		if res.Error != nil {
			return fmt.Errorf("allocation: release slot: %w", res.Error)
		}
		return nil
	default:
		return fmt.Errorf("allocation: unknown resource kind %q", kind)
	}
}

// Deallocate releases a claimed sub-resource back to FREE. Rejected while the
// owning order is still PAID or COMPLETED unless override is set; paid
// allocations are otherwise only ever released by an admin, never by sweeps.
func (e *Engine) Deallocate(ctx context.Context, kind string, resourceID uint64, override bool) error {
	orderItemID, accountID, claimed, errLoad := e.loadResourceLink(ctx, kind, resourceID)
	if errLoad != nil {
		return errLoad
	}
	if !claimed {
		// Already free; releasing twice is a no-op.
		return nil
	}

	if orderItemID != 0 && !override {
		var item models.OrderItem
		if errItem := e.db.WithContext(ctx).Preload("Order").First(&item, orderItemID).Error; errItem != nil {
			if !errors.Is(errItem, gorm.ErrRecordNotFound) {
				return fmt.Errorf("allocation: load owning item: %w", errItem)
			}
		} else if item.Order != nil && item.Order.Payable() {
			return ErrOrderStillPaid
		}
	}

	if errRelease := e.releaseResource(ctx, kind, resourceID, orderItemID); errRelease != nil {
		return errRelease
	}
	if orderItemID != 0 {
		if errUnbind := e.db.WithContext(ctx).Model(&models.OrderItem{}).
			Where("id = ? AND resource_kind = ? AND resource_id = ?", orderItemID, kind, resourceID).
			Updates(map[string]any{"resource_kind": nil, "resource_id": nil}).Error; errUnbind != nil {
			return fmt.Errorf("allocation: unbind item: %w", errUnbind)
		}
	}

	if _, errRecompute := e.stock.Recompute(ctx, accountID); errRecompute != nil {
		log.WithError(errRecompute).Warnf("allocation: stock recompute account=%d failed", accountID)
	}
	return nil
}

// Relink manually binds a specific free resource to a specific unbound item.
// First-class admin repair for links broken by out-of-band edits.
func (e *Engine) Relink(ctx context.Context, kind string, resourceID, orderItemID uint64) (Result, error) {
	item, errLoad := e.loadItem(ctx, orderItemID)
	if errLoad != nil {
		return Result{}, errLoad
	}
	if item.Allocated() {
		return success(*item.ResourceKind, *item.ResourceID, true), nil
	}
	if item.Order == nil {
		return Result{}, fmt.Errorf("allocation: item %d missing order", orderItemID)
	}

	now := time.Now().UTC()
	patch := map[string]any{
		"status":        models.ResourceStatusClaimed,
		"user_id":       item.Order.UserID,
		"order_item_id": item.ID,
		"claimed_at":    now,
	}

	var claimed int64
	switch kind {
	case models.ResourceKindProfile:
		res := e.db.WithContext(ctx).Model(&models.NetflixProfile{}).
			Where("id = ? AND account_id = ? AND status = ? AND user_id IS NULL AND order_item_id IS NULL",
				resourceID, item.AccountID, models.ResourceStatusFree).
			Updates(patch)
		if res.Error != nil {
			return Result{}, fmt.Errorf("allocation: relink profile: %w", res.Error)
		}
		claimed = res.RowsAffected
	case models.ResourceKindSlot:
		patch["is_allocated"] = true
		res := e.db.WithContext(ctx).Model(&models.SpotifySlot{}).
			Where("id = ? AND account_id = ? AND is_active = ? AND status = ? AND user_id IS NULL AND order_item_id IS NULL",
				resourceID, item.AccountID, true, models.ResourceStatusFree).
			Updates(patch)
		if res.Error != nil {
			return Result{}, fmt.Errorf("allocation: relink slot: %w", res.Error)
		}
		claimed = res.RowsAffected
	default:
		return Result{}, fmt.Errorf("allocation: unknown resource kind %q", kind)
	}
	if claimed == 0 {
		return Result{}, ErrResourceNotFound
	}

	result, err := e.bindItem(ctx, item, kind, resourceID)
	if err != nil {
		return Result{}, err
	}
	if result.OK && !result.AlreadyAllocated {
		if _, errRecompute := e.stock.Recompute(ctx, item.AccountID); errRecompute != nil {
			log.WithError(errRecompute).Warnf("allocation: stock recompute account=%d failed", item.AccountID)
		}
	}
	return result, nil
}

// loadResourceLink reads a resource's claim state for deallocation.
func (e *Engine) loadResourceLink(ctx context.Context, kind string, resourceID uint64) (orderItemID, accountID uint64, claimed bool, err error) {
	switch kind {
	case models.ResourceKindProfile:
		var profile models.NetflixProfile
		if errFind := e.db.WithContext(ctx).First(&profile, resourceID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return 0, 0, false, ErrResourceNotFound
			}
			return 0, 0, false, fmt.Errorf("allocation: load profile: %w", errFind)
		}
		if profile.OrderItemID != nil {
			orderItemID = *profile.OrderItemID
		}
		return orderItemID, profile.AccountID, profile.Status == models.ResourceStatusClaimed, nil
	case models.ResourceKindSlot:
		var slot models.SpotifySlot
		if errFind := e.db.WithContext(ctx).First(&slot, resourceID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return 0, 0, false, ErrResourceNotFound
			}
			return 0, 0, false, fmt.Errorf("allocation: load slot: %w", errFind)
		}
		if slot.OrderItemID != nil {
			orderItemID = *slot.OrderItemID
		}
		return orderItemID, slot.AccountID, slot.Status == models.ResourceStatusClaimed, nil
	default:
		return 0, 0, false, fmt.Errorf("allocation: unknown resource kind %q", kind)
	}
}
