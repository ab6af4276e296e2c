package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/slotmarket/slotmarket/internal/db"
	"github.com/slotmarket/slotmarket/internal/models"
	"gorm.io/gorm"
)

func openBookingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:booking_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func createBookingTestAccount(t *testing.T, conn *gorm.DB, active bool) models.Account {
	t.Helper()
	account := models.Account{
		Kind:     models.AccountKindNetflix,
		Email:    fmt.Sprintf("acct_%d@example.com", time.Now().UnixNano()),
		Password: "hunter2",
		IsActive: active,
	}
	if errCreate := conn.Create(&account).Error; errCreate != nil {
		t.Fatalf("create account: %v", errCreate)
	}
	return account
}

func createBookingTestOrder(t *testing.T, conn *gorm.DB, status string) models.Order {
	t.Helper()
	user := models.User{
		Email:    fmt.Sprintf("buyer_%d@example.com", time.Now().UnixNano()),
		Password: "hashed",
		Active:   true,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	order := models.Order{UserID: user.ID, Status: status}
	if errCreate := conn.Create(&order).Error; errCreate != nil {
		t.Fatalf("create order: %v", errCreate)
	}
	return order
}

func TestBookPlacesHold(t *testing.T) {
	conn := openBookingTestDB(t)
	manager := NewManager(conn)
	account := createBookingTestAccount(t, conn, true)
	order := createBookingTestOrder(t, conn, models.OrderStatusPending)

	until, errBook := manager.Book(context.Background(), account.ID, order.ID, 15*time.Minute)
	if errBook != nil {
		t.Fatalf("book: %v", errBook)
	}
	if !until.After(time.Now().UTC()) {
		t.Fatalf("expected hold deadline in the future, got %v", until)
	}

	var got models.Account
	if errFind := conn.First(&got, account.ID).Error; errFind != nil {
		t.Fatalf("load account: %v", errFind)
	}
	if !got.IsBooked {
		t.Fatalf("expected account to be booked")
	}
	if got.OrderIDBooking == nil || *got.OrderIDBooking != order.ID {
		t.Fatalf("expected booking order %d, got %v", order.ID, got.OrderIDBooking)
	}
	if got.BookedUntil == nil {
		t.Fatalf("expected booked_until to be set")
	}
}

func TestBookRejectsSecondHold(t *testing.T) {
	conn := openBookingTestDB(t)
	manager := NewManager(conn)
	account := createBookingTestAccount(t, conn, true)
	first := createBookingTestOrder(t, conn, models.OrderStatusPending)
	second := createBookingTestOrder(t, conn, models.OrderStatusPending)

	if _, errBook := manager.Book(context.Background(), account.ID, first.ID, 15*time.Minute); errBook != nil {
		t.Fatalf("first book: %v", errBook)
	}
	_, errBook := manager.Book(context.Background(), account.ID, second.ID, 15*time.Minute)
	if !errors.Is(errBook, ErrAlreadyBooked) {
		t.Fatalf("expected ErrAlreadyBooked, got %v", errBook)
	}

	var got models.Account
	if errFind := conn.First(&got, account.ID).Error; errFind != nil {
		t.Fatalf("load account: %v", errFind)
	}
	if got.OrderIDBooking == nil || *got.OrderIDBooking != first.ID {
		t.Fatalf("expected first order to keep the hold, got %v", got.OrderIDBooking)
	}
}

func TestBookAccountNotFound(t *testing.T) {
	conn := openBookingTestDB(t)
	manager := NewManager(conn)

	_, errBook := manager.Book(context.Background(), 9999, 1, 15*time.Minute)
	if !errors.Is(errBook, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", errBook)
	}
}

func TestBookInactiveAccount(t *testing.T) {
	conn := openBookingTestDB(t)
	manager := NewManager(conn)
	account := createBookingTestAccount(t, conn, false)
	order := createBookingTestOrder(t, conn, models.OrderStatusPending)

	_, errBook := manager.Book(context.Background(), account.ID, order.ID, 15*time.Minute)
	if !errors.Is(errBook, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", errBook)
	}
}

func TestBookSucceedsOverExpiredHoldAndCancelsStaleOrder(t *testing.T) {
	conn := openBookingTestDB(t)
	manager := NewManager(conn)
	account := createBookingTestAccount(t, conn, true)
	stale := createBookingTestOrder(t, conn, models.OrderStatusPending)
	fresh := createBookingTestOrder(t, conn, models.OrderStatusPending)

	txn := models.Transaction{OrderID: stale.ID, Amount: 9.99, Status: models.TransactionStatusPending}
	if errCreate := conn.Create(&txn).Error; errCreate != nil {
		t.Fatalf("create transaction: %v", errCreate)
	}

	past := time.Now().UTC().Add(-time.Hour)
	deadline := past.Add(15 * time.Minute)
	if errSeed := conn.Model(&models.Account{}).Where("id = ?", account.ID).Updates(map[string]any{
		"is_booked":        true,
		"booked_at":        past,
		"booked_until":     deadline,
		"order_id_booking": stale.ID,
	}).Error; errSeed != nil {
		t.Fatalf("seed stale hold: %v", errSeed)
	}

	until, errBook := manager.Book(context.Background(), account.ID, fresh.ID, 15*time.Minute)
	if errBook != nil {
		t.Fatalf("book over expired hold: %v", errBook)
	}
	if !until.After(time.Now().UTC()) {
		t.Fatalf("expected fresh deadline, got %v", until)
	}

	var gotOrder models.Order
	if errFind := conn.First(&gotOrder, stale.ID).Error; errFind != nil {
		t.Fatalf("load stale order: %v", errFind)
	}
	if gotOrder.Status != models.OrderStatusCancelled {
		t.Fatalf("expected stale order CANCELLED, got %s", gotOrder.Status)
	}

	var gotTxn models.Transaction
	if errFind := conn.First(&gotTxn, txn.ID).Error; errFind != nil {
		t.Fatalf("load transaction: %v", errFind)
	}
	if gotTxn.Status != models.TransactionStatusFailed {
		t.Fatalf("expected transaction FAILED, got %s", gotTxn.Status)
	}

	var gotAccount models.Account
	if errFind := conn.First(&gotAccount, account.ID).Error; errFind != nil {
		t.Fatalf("load account: %v", errFind)
	}
	if gotAccount.OrderIDBooking == nil || *gotAccount.OrderIDBooking != fresh.ID {
		t.Fatalf("expected fresh order to hold the account, got %v", gotAccount.OrderIDBooking)
	}
}

func TestReleaseClearsHold(t *testing.T) {
	conn := openBookingTestDB(t)
	manager := NewManager(conn)
	account := createBookingTestAccount(t, conn, true)
	order := createBookingTestOrder(t, conn, models.OrderStatusPending)

	if _, errBook := manager.Book(context.Background(), account.ID, order.ID, 15*time.Minute); errBook != nil {
		t.Fatalf("book: %v", errBook)
	}
	if errRelease := manager.Release(context.Background(), account.ID); errRelease != nil {
		t.Fatalf("release: %v", errRelease)
	}

	var got models.Account
	if errFind := conn.First(&got, account.ID).Error; errFind != nil {
		t.Fatalf("load account: %v", errFind)
	}
	if got.IsBooked || got.OrderIDBooking != nil || got.BookedUntil != nil {
		t.Fatalf("expected hold cleared, got booked=%v order=%v until=%v", got.IsBooked, got.OrderIDBooking, got.BookedUntil)
	}
}

func TestExpireIfStaleKeepsLiveHold(t *testing.T) {
	conn := openBookingTestDB(t)
	manager := NewManager(conn)
	account := createBookingTestAccount(t, conn, true)
	order := createBookingTestOrder(t, conn, models.OrderStatusPending)

	if _, errBook := manager.Book(context.Background(), account.ID, order.ID, 15*time.Minute); errBook != nil {
		t.Fatalf("book: %v", errBook)
	}

	released, errExpire := manager.ExpireIfStale(context.Background(), account.ID, time.Now().UTC())
	if errExpire != nil {
		t.Fatalf("expire: %v", errExpire)
	}
	if released {
		t.Fatalf("expected live hold to survive")
	}

	var got models.Account
	if errFind := conn.First(&got, account.ID).Error; errFind != nil {
		t.Fatalf("load account: %v", errFind)
	}
	if !got.IsBooked {
		t.Fatalf("expected account to stay booked")
	}
}

func TestExpireIfStaleSecondCallerIsNoop(t *testing.T) {
	conn := openBookingTestDB(t)
	manager := NewManager(conn)
	account := createBookingTestAccount(t, conn, true)
	order := createBookingTestOrder(t, conn, models.OrderStatusPending)

	past := time.Now().UTC().Add(-time.Hour)
	if errSeed := conn.Model(&models.Account{}).Where("id = ?", account.ID).Updates(map[string]any{
		"is_booked":        true,
		"booked_at":        past,
		"booked_until":     past.Add(15 * time.Minute),
		"order_id_booking": order.ID,
	}).Error; errSeed != nil {
		t.Fatalf("seed stale hold: %v", errSeed)
	}

	now := time.Now().UTC()
	released, errExpire := manager.ExpireIfStale(context.Background(), account.ID, now)
	if errExpire != nil {
		t.Fatalf("first expire: %v", errExpire)
	}
	if !released {
		t.Fatalf("expected first caller to release")
	}

	released, errExpire = manager.ExpireIfStale(context.Background(), account.ID, now)
	if errExpire != nil {
		t.Fatalf("second expire: %v", errExpire)
	}
	if released {
		t.Fatalf("expected second caller to be a no-op")
	}
}

func TestExpireDueClearsOnlyStaleHolds(t *testing.T) {
	conn := openBookingTestDB(t)
	manager := NewManager(conn)

	staleA := createBookingTestAccount(t, conn, true)
	staleB := createBookingTestAccount(t, conn, true)
	live := createBookingTestAccount(t, conn, true)

	orderA := createBookingTestOrder(t, conn, models.OrderStatusPending)
	orderB := createBookingTestOrder(t, conn, models.OrderStatusPending)
	orderC := createBookingTestOrder(t, conn, models.OrderStatusPending)

	past := time.Now().UTC().Add(-time.Hour)
	for _, seed := range []struct {
		accountID uint64
		orderID   uint64
		until     time.Time
	}{
		{staleA.ID, orderA.ID, past},
		{staleB.ID, orderB.ID, past},
		{live.ID, orderC.ID, time.Now().UTC().Add(time.Hour)},
	} {
		if errSeed := conn.Model(&models.Account{}).Where("id = ?", seed.accountID).Updates(map[string]any{
			"is_booked":        true,
			"booked_at":        past,
			"booked_until":     seed.until,
			"order_id_booking": seed.orderID,
		}).Error; errSeed != nil {
			t.Fatalf("seed hold: %v", errSeed)
		}
	}

	cleared, errExpire := manager.ExpireDue(context.Background(), time.Now().UTC())
	if errExpire != nil {
		t.Fatalf("expire due: %v", errExpire)
	}
	if cleared != 2 {
		t.Fatalf("expected 2 cleared holds, got %d", cleared)
	}

	var gotLive models.Account
	if errFind := conn.First(&gotLive, live.ID).Error; errFind != nil {
		t.Fatalf("load live account: %v", errFind)
	}
	if !gotLive.IsBooked {
		t.Fatalf("expected live hold to survive the sweep")
	}
}

func TestBookConcurrentCallersSingleWinner(t *testing.T) {
	conn := openBookingTestDB(t)
	// One pooled connection: the shared-cache in-memory database rejects
	// concurrent writers, callers still interleave between statements.
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("unwrap sql.DB: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)

	manager := NewManager(conn)
	account := createBookingTestAccount(t, conn, true)

	const callers = 4
	orders := make([]models.Order, callers)
	for i := range orders {
		orders[i] = createBookingTestOrder(t, conn, models.OrderStatusPending)
	}

	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = manager.Book(context.Background(), account.ID, orders[i].ID, 15*time.Minute)
		}(i)
	}
	wg.Wait()

	var wins, rejected int
	for i := 0; i < callers; i++ {
		switch {
		case errs[i] == nil:
			wins++
		case errors.Is(errs[i], ErrAlreadyBooked):
			rejected++
		default:
			t.Fatalf("caller %d: %v", i, errs[i])
		}
	}
	if wins != 1 || rejected != callers-1 {
		t.Fatalf("expected 1 winner and %d rejections, got %d/%d", callers-1, wins, rejected)
	}

	var got models.Account
	if errFind := conn.First(&got, account.ID).Error; errFind != nil {
		t.Fatalf("load account: %v", errFind)
	}
	if !got.IsBooked || got.OrderIDBooking == nil {
		t.Fatalf("expected a single surviving hold, got booked=%v order=%v", got.IsBooked, got.OrderIDBooking)
	}
}
