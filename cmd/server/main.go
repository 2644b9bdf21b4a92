package main // Entry point package

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-auth/internal/auth"
	"github.com/iliyamo/clinic-auth/internal/config"
	"github.com/iliyamo/clinic-auth/internal/database"
	"github.com/iliyamo/clinic-auth/internal/handler"
	"github.com/iliyamo/clinic-auth/internal/maintenance"
	"github.com/iliyamo/clinic-auth/internal/middleware"
	"github.com/iliyamo/clinic-auth/internal/queue"
	"github.com/iliyamo/clinic-auth/internal/repository"
	"github.com/iliyamo/clinic-auth/internal/router"
	queue_publisher "github.com/iliyamo/clinic-auth/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the revocation store and the rate limiter. When it is
	// unreachable the service still runs: revocation falls back to the
	// in-process store and rate limiting is disabled.
	rdb := config.NewRedisClient()
	var revoked auth.RevocationStore
	if rdb != nil {
		revoked = auth.NewRedisRevocationStore(rdb)
	} else {
		log.Printf("redis unavailable, using in-memory revocation store")
		revoked = auth.NewMemoryRevocationStore()
	}

	tokens := auth.NewTokenService(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL, revoked)

	users := repository.NewUserRepo(db)
	otps := repository.NewOTPRepo(db)

	engine := maintenance.NewEngine(repository.NewCleanupStore(db), cfg.GracePeriod)
	scheduler := maintenance.NewScheduler(engine, func(res maintenance.Result) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Best effort: a lost audit event never fails a cleanup pass.
		_ = queue_publisher.PublishCleanupCompleted(ctx, queue.CleanupCompletedEvent{
			DeletedUsers:       res.UnverifiedUsers.DeletedCount,
			DeletedUserIDs:     res.UnverifiedUsers.DeletedIDs,
			DeletedOTPRequests: res.ExpiredOTPRequests.DeletedCount,
			RanAt:              res.RanAt.Format(time.RFC3339),
		})
	})
	if err := scheduler.Start(cfg.CleanupInterval); err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	// Audit consumer: appends cleanup events to logs/cleanup.log. Runs its
	// own reconnect loop for the life of the process.
	go func() {
		if err := queue.StartCleanupConsumer(); err != nil {
			log.Printf("cleanup consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, otps, tokens), limiter)
	router.RegisterAdmin(e, handler.NewMaintenanceHandler(scheduler, tokens))

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	// Block until a shutdown signal, then stop the timer and drain the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	scheduler.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
