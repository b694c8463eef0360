package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"mgmonitor/internal/condition"
	"mgmonitor/internal/config"
	cronrunner "mgmonitor/internal/cron"
	"mgmonitor/internal/db"
	"mgmonitor/internal/feed"
	"mgmonitor/internal/handler"
	"mgmonitor/internal/ledger"
	"mgmonitor/internal/logger"
	"mgmonitor/internal/notify"
	gormrepository "mgmonitor/internal/repository/gorm"

	_ "mgmonitor/docs"
)

func main() {
	cfgPath := os.Getenv("MG_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("MG_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	source := feed.NewModularGridClient(cfg.Feed, logger)
	dispatcher, err := notify.NewDispatcher(cfg.Notify, logger)
	if err != nil {
		logger.Fatal("notify config invalid", zap.Error(err))
	}
	scanner := ledger.New(store, source, condition.Default(), dispatcher, cfg.Scan, cfg.Deals, logger)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, StartedAt: time.Now()}
	healthHandler.Register(engine)
	monitorHandler := &handler.MonitorHandler{Repo: store, Ledger: scanner}
	monitorHandler.Register(engine)
	moduleHandler := &handler.ModuleHandler{Repo: store}
	moduleHandler.Register(engine)
	dealHandler := &handler.DealHandler{Repo: store}
	dealHandler.Register(engine)
	watchlistHandler := &handler.WatchlistHandler{Repo: store}
	watchlistHandler.Register(engine)
	preferenceHandler := &handler.PreferenceHandler{Repo: store}
	preferenceHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go dispatcher.Run(ctx)

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Scan.Enabled {
		_, err = cronRunner.Add(cfg.Scan.Schedule, func(ctx context.Context) {
			_, err := scanner.RunScanCycle(ctx)
			if errors.Is(err, ledger.ErrScanInProgress) {
				logger.Warn("scheduled scan skipped, previous cycle still running")
				return
			}
			if err != nil {
				logger.Warn("scheduled scan failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Fatal("cron register scan failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()

		// First scan right away so the store is warm before the schedule kicks in.
		go func() {
			if _, err := scanner.RunScanCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("initial scan failed", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	// Deliver anything still queued before the process goes away.
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
	dispatcher.Flush(flushCtx)
	cancelFlush()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
