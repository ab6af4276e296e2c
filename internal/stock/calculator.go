package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slotmarket/slotmarket/internal/models"
	"gorm.io/gorm"
)

// ErrAccountNotFound indicates the account does not exist.
var ErrAccountNotFound = errors.New("stock: account not found")

// Calculator derives sellable stock from live free sub-resource counts. The
// cached stock column on accounts is written back by Recompute/ReconcileAll
// and stays advisory; the free-row count is the only ground truth.
type Calculator struct {
	db    *gorm.DB
	cache *Cache
}

// NewCalculator wires a calculator with its database and optional cache.
func NewCalculator(db *gorm.DB, cache *Cache) *Calculator {
	return &Calculator{db: db, cache: cache}
}

// ComputeStock returns the live sellable unit count for one account.
func (c *Calculator) ComputeStock(ctx context.Context, accountID uint64) (int, error) {
	var account models.Account
	if errFind := c.db.WithContext(ctx).First(&account, accountID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("stock: load account: %w", errFind)
	}
	return c.computeForAccount(ctx, &account)
}

// CachedStock serves a storefront lookup, preferring the advisory cache.
func (c *Calculator) CachedStock(ctx context.Context, accountID uint64) (int, error) {
	if value, ok := c.cache.Get(ctx, accountID); ok {
		return value, nil
	}
	value, err := c.ComputeStock(ctx, accountID)
	if err != nil {
		return 0, err
	}
	c.cache.Set(ctx, accountID, value)
	return value, nil
}

func (c *Calculator) computeForAccount(ctx context.Context, account *models.Account) (int, error) {
	switch {
	case account.Kind == models.AccountKindNetflix:
		var free int64
		if errCount := c.db.WithContext(ctx).Model(&models.NetflixProfile{}).
			Where("account_id = ? AND status = ? AND user_id IS NULL AND order_item_id IS NULL",
				account.ID, models.ResourceStatusFree).
			Count(&free).Error; errCount != nil {
			return 0, fmt.Errorf("stock: count free profiles: %w", errCount)
		}
		return int(free), nil

	case account.Kind == models.AccountKindSpotify && account.IsFamilyPlan:
		var allocated int64
		if errCount := c.db.WithContext(ctx).Model(&models.SpotifySlot{}).
			Where("account_id = ? AND is_allocated = ?", account.ID, true).
			Count(&allocated).Error; errCount != nil {
			return 0, fmt.Errorf("stock: count allocated slots: %w", errCount)
		}
		stock := account.MaxSlots - int(allocated)
		if stock < 0 {
			stock = 0
		}
		return stock, nil

	default:
		// Non-subdivided accounts sell at most one unit.
		if !account.IsActive {
			return 0, nil
		}
		now := time.Now().UTC()
		if account.IsBooked && !account.HoldExpired(now) {
			return 0, nil
		}
		var free int64
		if errCount := c.db.WithContext(ctx).Model(&models.SpotifySlot{}).
			Where("account_id = ? AND is_active = ? AND status = ?", account.ID, true, models.ResourceStatusFree).
			Count(&free).Error; errCount != nil {
			return 0, fmt.Errorf("stock: count free slots: %w", errCount)
		}
		if free > 0 {
			return 1, nil
		}
		return 0, nil
	}
}

// Recompute refreshes the cached stock column for one account and updates the
// advisory cache. It is a cache refresh, not an allocation decision, so racing
// with a concurrent claim is acceptable.
func (c *Calculator) Recompute(ctx context.Context, accountID uint64) (int, error) {
	var account models.Account
	if errFind := c.db.WithContext(ctx).First(&account, accountID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("stock: load account: %w", errFind)
	}

	value, err := c.computeForAccount(ctx, &account)
	if err != nil {
		return 0, err
	}

	patch := map[string]any{"stock": value}
	// Zero stock auto-deactivates so the storefront availability check stays a
	// single column read; non-zero stock reactivates symmetrically.
	if account.Subdivided() {
		patch["is_active"] = value > 0
	}
	if errUpdate := c.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", account.ID).
		Updates(patch).Error; errUpdate != nil {
		return 0, fmt.Errorf("stock: write back: %w", errUpdate)
	}

	c.cache.Set(ctx, account.ID, value)
	return value, nil
}

// ReconcileAll recomputes every account's cached stock. Idempotent and safe to
// run concurrently with live allocation traffic.
func (c *Calculator) ReconcileAll(ctx context.Context) (int, error) {
	var ids []uint64
	if errFind := c.db.WithContext(ctx).Model(&models.Account{}).
		Order("id ASC").
		Pluck("id", &ids).Error; errFind != nil {
		return 0, fmt.Errorf("stock: list accounts: %w", errFind)
	}

	recomputed := 0
	for _, id := range ids {
		if ctx != nil && ctx.Err() != nil {
			return recomputed, ctx.Err()
		}
		if _, errRecompute := c.Recompute(ctx, id); errRecompute != nil {
			return recomputed, errRecompute
		}
		recomputed++
	}
	return recomputed, nil
}

// Invalidate drops the advisory cache entry for an account.
func (c *Calculator) Invalidate(ctx context.Context, accountID uint64) {
	c.cache.Invalidate(ctx, accountID)
}
