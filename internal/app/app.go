package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/slotmarket/slotmarket/internal/allocation"
	"github.com/slotmarket/slotmarket/internal/booking"
	"github.com/slotmarket/slotmarket/internal/config"
	"github.com/slotmarket/slotmarket/internal/db"
	adminapi "github.com/slotmarket/slotmarket/internal/http/api/admin"
	"github.com/slotmarket/slotmarket/internal/http/api/cron"
	"github.com/slotmarket/slotmarket/internal/http/api/front"
	"github.com/slotmarket/slotmarket/internal/models"
	"github.com/slotmarket/slotmarket/internal/reconcile"
	"github.com/slotmarket/slotmarket/internal/security"
	"github.com/slotmarket/slotmarket/internal/settings"
	"github.com/slotmarket/slotmarket/internal/stock"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg *config.Config) error {
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the inventory service with database-backed components.
func RunServer(ctx context.Context, cfg *config.Config) error {
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return fmt.Errorf("app: load settings: %w", errRefresh)
	}
	if errSeed := seedAdmin(ctx, conn, cfg); errSeed != nil {
		return errSeed
	}

	cache := stock.NewCache(newRedisClient(ctx, cfg))
	calc := stock.NewCalculator(conn, cache)
	bookings := booking.NewManager(conn)
	engine := allocation.NewEngine(conn, calc)
	job := reconcile.NewJob(conn, bookings, calc, engine)

	cronSecret, errSecret := resolveCronSecret(cfg)
	if errSecret != nil {
		return errSecret
	}

	router := newRouter(conn, cfg, cronSecret, bookings, engine, calc, job)

	job.Start(ctx)

	server := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// resolveCronSecret returns the configured cron secret, generating a one-off
// secret when none is set so the reconcile endpoint is never left unguarded.
// The generated value is logged once; it only lives for this process.
func resolveCronSecret(cfg *config.Config) (string, error) {
	if cfg.Cron.Secret != "" {
		return cfg.Cron.Secret, nil
	}
	secret, err := security.GenerateSharedSecret()
	if err != nil {
		return "", fmt.Errorf("app: cron secret: %w", err)
	}
	log.Warnf("cron.secret not configured, generated one-off secret for this run: %s", secret)
	return secret, nil
}

// newRouter assembles the gin engine with all route groups.
func newRouter(conn *gorm.DB, cfg *config.Config, cronSecret string, bookings *booking.Manager, engine *allocation.Engine, calc *stock.Calculator, job *reconcile.Job) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	jwtCfg := cfg.JWT()
	front.RegisterFrontRoutes(router, conn, jwtCfg, bookings, engine, calc)
	adminapi.RegisterAdminRoutes(router, conn, jwtCfg, engine, calc)
	cron.RegisterCronRoutes(router, cronSecret, job)
	return router
}

// requestLogger logs one line per request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}

// newRedisClient builds the optional stock cache client. A missing address or
// failed ping disables caching rather than blocking boot.
func newRedisClient(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		log.WithError(errPing).Warn("redis unavailable, stock cache disabled")
		_ = client.Close()
		return nil
	}
	return client
}

// seedAdmin creates the initial administrator when the table is empty.
func seedAdmin(ctx context.Context, conn *gorm.DB, cfg *config.Config) error {
	username := cfg.Auth.SeedAdminUsername
	password := cfg.Auth.SeedAdminPassword
	if username == "" || password == "" {
		return nil
	}

	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("app: count admins: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("app: hash seed password: %w", errHash)
	}
	admin := models.Admin{Username: username, Password: hash, Active: true}
	if errCreate := conn.WithContext(ctx).Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("app: seed admin: %w", errCreate)
	}
	log.Infof("seeded admin user %s", username)
	return nil
}
