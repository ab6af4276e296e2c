package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slotmarket/slotmarket/internal/models"
	"gorm.io/gorm"
)

// Booking precondition failures surfaced to the caller.
var (
	// ErrAccountNotFound indicates the account does not exist.
	ErrAccountNotFound = errors.New("booking: account not found")
	// ErrAccountInactive indicates the account cannot be sold.
	ErrAccountInactive = errors.New("booking: account inactive")
	// ErrAlreadyBooked indicates another order holds the account.
	ErrAlreadyBooked = errors.New("booking: already booked")
)

// Manager places and releases whole-account checkout holds. Exclusivity rests
// on conditional updates scoped to the unbooked state; a zero row count means
// the race was lost, never that something broke.
type Manager struct {
	db *gorm.DB
}

// NewManager wires a booking manager with its database dependency.
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// Book places an exclusive hold on the account for the given order. A hold
// whose deadline already passed counts as free; it is released through the
// same path the reconciliation sweep uses before the new hold is attempted.
func (m *Manager) Book(ctx context.Context, accountID, orderID uint64, hold time.Duration) (time.Time, error) {
	now := time.Now().UTC()

	// Lazy expiry: fold a stale hold back to unbooked first. Release always
	// goes through ExpireIfStale so a concurrent sweep and this call cannot
	// both mutate the booking columns; whoever runs second updates zero rows.
	if _, errExpire := m.ExpireIfStale(ctx, accountID, now); errExpire != nil {
		return time.Time{}, errExpire
	}

	until := now.Add(hold)
	res := m.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND is_active = ? AND is_booked = ?", accountID, true, false).
		Updates(map[string]any{
			"is_booked":        true,
			"booked_at":        now,
			"booked_until":     until,
			"order_id_booking": orderID,
		})
	if res.Error != nil {
		return time.Time{}, fmt.Errorf("booking: place hold: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return until, nil
	}

	// Lost the race or failed a precondition; read the row to say which.
	var account models.Account
	if errFind := m.db.WithContext(ctx).First(&account, accountID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return time.Time{}, ErrAccountNotFound
		}
		return time.Time{}, fmt.Errorf("booking: load account: %w", errFind)
	}
	if !account.IsActive {
		return time.Time{}, ErrAccountInactive
	}
	return time.Time{}, ErrAlreadyBooked
}

// Release clears the hold unconditionally, for explicit checkout cancellation.
func (m *Manager) Release(ctx context.Context, accountID uint64) error {
	res := m.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND is_booked = ?", accountID, true).
		Updates(clearHoldPatch())
	if res.Error != nil {
		return fmt.Errorf("booking: release hold: %w", res.Error)
	}
	return nil
}

// ExpireIfStale releases the hold when its deadline has passed and cancels the
// stale pending order behind it. This is the single release path for expired
// holds: the conditional update on the booking columns decides the winner.
// Returns true when this call performed the release.
func (m *Manager) ExpireIfStale(ctx context.Context, accountID uint64, now time.Time) (bool, error) {
	var account models.Account
	if errFind := m.db.WithContext(ctx).First(&account, accountID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return false, ErrAccountNotFound
		}
		return false, fmt.Errorf("booking: load account: %w", errFind)
	}
	if !account.HoldExpired(now) {
		return false, nil
	}

	staleOrderID := account.OrderIDBooking

	released := false
	errTx := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).
			Where("id = ? AND is_booked = ? AND booked_until < ?", accountID, true, now).
			Updates(clearHoldPatch())
		if res.Error != nil {
			return fmt.Errorf("booking: expire hold: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Another caller released first; nothing left to cascade.
			return nil
		}
		released = true

		if staleOrderID == nil {
			return nil
		}
		if errOrder := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", *staleOrderID, models.OrderStatusPending).
			Update("status", models.OrderStatusCancelled).Error; errOrder != nil {
			return fmt.Errorf("booking: cancel stale order: %w", errOrder)
		}
		if errTxn := tx.Model(&models.Transaction{}).
			Where("order_id = ? AND status = ?", *staleOrderID, models.TransactionStatusPending).
			Update("status", models.TransactionStatusFailed).Error; errTxn != nil {
			return fmt.Errorf("booking: fail stale transaction: %w", errTxn)
		}
		return nil
	})
	if errTx != nil {
		return false, errTx
	}
	if released {
		log.Infof("booking: expired hold account=%d order=%v", accountID, staleOrderID)
	}
	return released, nil
}

// ExpireDue releases every hold whose deadline passed. Used by the
// reconciliation sweep; returns the number of holds cleared.
func (m *Manager) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	var ids []uint64
	if errFind := m.db.WithContext(ctx).Model(&models.Account{}).
		Where("is_booked = ? AND booked_until < ?", true, now).
		Order("id ASC").
		Pluck("id", &ids).Error; errFind != nil {
		return 0, fmt.Errorf("booking: list stale holds: %w", errFind)
	}

	cleared := 0
	for _, id := range ids {
		if ctx != nil && ctx.Err() != nil {
			return cleared, ctx.Err()
		}
		released, errExpire := m.ExpireIfStale(ctx, id, now)
		if errExpire != nil {
			if errors.Is(errExpire, ErrAccountNotFound) {
				continue
			}
			return cleared, errExpire
		}
		if released {
			cleared++
		}
	}
	return cleared, nil
}

func clearHoldPatch() map[string]any {
	return map[string]any{
		"is_booked":        false,
		"booked_at":        nil,
		"booked_until":     nil,
		"order_id_booking": nil,
	}
}
