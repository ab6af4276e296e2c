package cron

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/slotmarket/slotmarket/internal/allocation"
	"github.com/slotmarket/slotmarket/internal/booking"
	"github.com/slotmarket/slotmarket/internal/db"
	"github.com/slotmarket/slotmarket/internal/models"
	"github.com/slotmarket/slotmarket/internal/reconcile"
	"github.com/slotmarket/slotmarket/internal/stock"
	"gorm.io/gorm"
)

const cronTestSecret = "cron-test-secret"

func newCronTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:cron_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	calc := stock.NewCalculator(conn, stock.NewCache(nil))
	bookings := booking.NewManager(conn)
	engine := allocation.NewEngine(conn, calc)
	job := reconcile.NewJob(conn, bookings, calc, engine)

	router := gin.New()
	RegisterCronRoutes(router, cronTestSecret, job)
	return router, conn
}

func TestReconcileEndpointRejectsBadSecret(t *testing.T) {
	router, _ := newCronTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v0/cron/reconcile", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v0/cron/reconcile", nil)
	req.Header.Set("X-Cron-Secret", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong secret, got %d", rec.Code)
	}
}

func TestReconcileEndpointRunsSweep(t *testing.T) {
	router, conn := newCronTestRouter(t)

	account := models.Account{
		Kind:     models.AccountKindNetflix,
		Email:    fmt.Sprintf("acct_%d@example.com", time.Now().UnixNano()),
		Password: "hunter2",
		IsActive: true,
	}
	if errCreate := conn.Create(&account).Error; errCreate != nil {
		t.Fatalf("create account: %v", errCreate)
	}
	profile := models.NetflixProfile{AccountID: account.ID, Name: "One", Status: models.ResourceStatusFree}
	if errCreate := conn.Create(&profile).Error; errCreate != nil {
		t.Fatalf("create profile: %v", errCreate)
	}

	user := models.User{Email: fmt.Sprintf("buyer_%d@example.com", time.Now().UnixNano()), Password: "hashed", Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	order := models.Order{UserID: user.ID, Status: models.OrderStatusPending}
	if errCreate := conn.Create(&order).Error; errCreate != nil {
		t.Fatalf("create order: %v", errCreate)
	}

	past := time.Now().UTC().Add(-time.Hour)
	if errSeed := conn.Model(&models.Account{}).Where("id = ?", account.ID).Updates(map[string]any{
		"is_booked":        true,
		"booked_at":        past,
		"booked_until":     past.Add(15 * time.Minute),
		"order_id_booking": order.ID,
	}).Error; errSeed != nil {
		t.Fatalf("seed stale hold: %v", errSeed)
	}

	req := httptest.NewRequest(http.MethodPost, "/v0/cron/reconcile", nil)
	req.Header.Set("X-Cron-Secret", cronTestSecret)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var report reconcile.Report
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &report); errDecode != nil {
		t.Fatalf("decode report: %v", errDecode)
	}
	if report.ClearedBookings != 1 {
		t.Fatalf("expected 1 cleared booking, got %d", report.ClearedBookings)
	}
	if report.RecomputedAccounts != 1 {
		t.Fatalf("expected 1 recomputed account, got %d", report.RecomputedAccounts)
	}

	var gotOrder models.Order
	if errFind := conn.First(&gotOrder, order.ID).Error; errFind != nil {
		t.Fatalf("load order: %v", errFind)
	}
	if gotOrder.Status != models.OrderStatusCancelled {
		t.Fatalf("expected order CANCELLED, got %s", gotOrder.Status)
	}
}
