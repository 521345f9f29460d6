package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/config"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/connector"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/connector/newsdata"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/db"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/events"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/handler"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/logger"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/models"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/repository"
	gormrepository "github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/repository/gorm"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/runner"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/scheduler"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/secrets"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/syncer"
)

func main() {
	cfgPath := os.Getenv("CS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("CS_ENV_ONLY"); envOnlyRaw != "" {
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

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	codec := secrets.NewFromEnv()
	if !codec.Ready() {
		logger.Warn("no credential key configured, sources with credentials will be skipped")
	}

	registry := connector.NewRegistry()
	registry.Register(newsdata.ProviderType, newsdata.Factory(cfg.Providers.NewsData.BaseURL))

	providerHTTP := &http.Client{Timeout: cfg.Providers.NewsData.Timeout}
	limiter := connector.NewHostLimiter(cfg.Providers.NewsData.RequestsPerSec, cfg.Providers.NewsData.Burst)

	syncService := &syncer.Service{
		Repo:     store,
		Registry: registry,
		Secrets:  codec,
		HTTP:     providerHTTP,
		Limiter:  limiter,
		Logger:   logger,
		Config:   cfg.Sync,
	}

	sink := initEventsClient(cfg.Events, logger)

	taskRunner := runner.New(store, sink, logger)
	taskRunner.Register(runner.JobTypeSyncAll, runner.SyncAllHandler(syncService))
	taskRunner.RegisterPrefix(runner.SourceJobPrefix, runner.SourceSyncHandler(syncService))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := seedSyncAllJob(ctx, store, cfg.Scheduler.SyncAllIntervalSeconds); err != nil {
		logger.Warn("seeding sync_all_sources job failed", zap.Error(err))
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(store, taskRunner, logger, ctx)
		if err := sched.Start(ctx); err != nil {
			logger.Fatal("scheduler start failed", zap.Error(err))
		}
		defer sched.Stop()
	} else {
		logger.Info("scheduler disabled, jobs run only on demand")
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	jobsHandler := &handler.JobsHandler{
		Repo:      store,
		Runner:    taskRunner,
		Scheduler: sched,
		Logger:    logger,
	}
	jobsHandler.Register(engine)
	sourcesHandler := &handler.SourcesHandler{
		Repo:      store,
		Syncer:    syncService,
		Runner:    taskRunner,
		Scheduler: sched,
		Logger:    logger,
	}
	sourcesHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// seedSyncAllJob makes sure the batch job exists on first boot. EnsureJob
// leaves an existing row untouched, so operator cadence edits survive
// restarts.
func seedSyncAllJob(ctx context.Context, repo repository.Repository, intervalSeconds int) error {
	if intervalSeconds <= 0 {
		intervalSeconds = 1800
	}
	interval := intervalSeconds
	return repo.EnsureJob(ctx, &models.Job{
		Name:            "Sync all sources",
		JobType:         runner.JobTypeSyncAll,
		Component:       "sources",
		IntervalSeconds: &interval,
		Enabled:         true,
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func initEventsClient(cfg config.EventsConfig, logger *zap.Logger) *events.Client {
	base := strings.TrimSpace(cfg.BaseURL)
	apiKey := strings.TrimSpace(cfg.APIKey)
	if base == "" || apiKey == "" {
		return nil
	}

	c := &events.Client{
		BaseURL: base,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: cfg.Timeout},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Login(ctx); err != nil {
		logger.Warn("events login failed (run events disabled)", zap.Error(err))
		return nil
	}
	logger.Info("events login ok")
	return c
}
