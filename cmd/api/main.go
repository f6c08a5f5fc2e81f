package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vivekkumarprince1/backend-vaani/internal/audit"
	"github.com/Vivekkumarprince1/backend-vaani/internal/auth"
	"github.com/Vivekkumarprince1/backend-vaani/internal/calls"
	"github.com/Vivekkumarprince1/backend-vaani/internal/config"
	"github.com/Vivekkumarprince1/backend-vaani/internal/httpapi"
	"github.com/Vivekkumarprince1/backend-vaani/internal/realtime"
	"github.com/Vivekkumarprince1/backend-vaani/internal/reporting"
	"github.com/Vivekkumarprince1/backend-vaani/internal/rooms"
	"github.com/Vivekkumarprince1/backend-vaani/internal/timers"
	"github.com/Vivekkumarprince1/backend-vaani/pkg/logger"
	"github.com/Vivekkumarprince1/backend-vaani/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Wiring: the lifecycle service owns all session transitions; everything
	// else is a collaborator behind an interface.
	store := calls.NewPostgresStore(db)
	directory := rooms.NewPostgresDirectory(db)
	dispatcher := realtime.NewRedisDispatcher(rdb)
	registry := timers.NewRegistry()
	defer registry.Shutdown()

	trail := audit.NewService(audit.NewPostgresRepo(db))
	callService := calls.NewService(store, directory, dispatcher, registry, trail)
	historyService := reporting.NewService(store)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:    authManager,
		Calls:   callService,
		History: historyService,
	}
	healthz := func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	registerRoutes(r, healthz, auth.RequireAccessToken(authManager), h)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	log.Info("shutdown complete")
}
