package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/noah-isme/college-timetable-api/api/swagger"
	"github.com/noah-isme/college-timetable-api/internal/handler"
	"github.com/noah-isme/college-timetable-api/internal/repository"
	"github.com/noah-isme/college-timetable-api/internal/routes"
	"github.com/noah-isme/college-timetable-api/internal/service"
	"github.com/noah-isme/college-timetable-api/pkg/cache"
	"github.com/noah-isme/college-timetable-api/pkg/config"
	"github.com/noah-isme/college-timetable-api/pkg/database"
	"github.com/noah-isme/college-timetable-api/pkg/jobs"
	"github.com/noah-isme/college-timetable-api/pkg/logger"
)

const (
	publishQueueBuffer = 256
	shutdownTimeout    = 10 * time.Second
)

// @title College Timetable API
// @version 1.0.0
// @description Generates conflict-free weekly timetables for sections, teachers and lab batches.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	settings, err := service.EngineSettingsFromConfig(cfg.Scheduler)
	if err != nil {
		logr.Fatal("invalid scheduler configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	dependencies := map[string]handler.Pinger{}
	serviceCfg := service.TimetableServiceConfig{
		Settings:      settings,
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
		CacheTTL:      cfg.Scheduler.CacheTTL,
	}

	var cacheStore service.CacheRepository
	if cfg.Features.Cache {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, generation cache disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheStore = cacheRepo
			dependencies["redis"] = cacheRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheStore, metrics, cfg.Scheduler.CacheTTL, logr, cacheStore != nil)

	var timetableSvc *service.TimetableService
	var publishQueue *jobs.Queue
	if cfg.Features.Persistence {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck

		store := repository.NewTimetableRepository(db)
		publisher := service.NewTimetablePublisher(store, metrics, logr)
		publishQueue = jobs.NewQueue("timetable-publisher", publisher.Handle, jobs.QueueConfig{
			Workers:    cfg.Publisher.Workers,
			BufferSize: publishQueueBuffer,
			MaxRetries: cfg.Publisher.Retries,
			RetryDelay: cfg.Publisher.RetryDelay,
			Logger:     logr,
		})
		publishQueue.Start(context.Background())
		dependencies["postgres"] = store

		timetableSvc = service.NewTimetableService(store, publishQueue, cacheSvc, metrics, nil, logr, serviceCfg)
	} else {
		timetableSvc = service.NewTimetableService(nil, nil, cacheSvc, metrics, nil, logr, serviceCfg)
	}

	router := routes.New(routes.Dependencies{
		Config:    cfg,
		Logger:    logr,
		Metrics:   metrics,
		Verifier:  service.NewTokenVerifier(cfg.JWT.Secret),
		Timetable: handler.NewTimetableHandler(timetableSvc),
		Ops:       handler.NewMetricsHandler(metrics, dependencies),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting",
			"addr", srv.Addr,
			"env", cfg.Env,
			"auth", cfg.JWT.Enabled,
			"persistence", cfg.Features.Persistence,
			"cache", cacheSvc.Enabled(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if publishQueue != nil {
		publishQueue.Stop()
	}
}
