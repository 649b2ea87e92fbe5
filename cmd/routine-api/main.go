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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/routine-builder/api/swagger"
	"github.com/noah-isme/routine-builder/internal/handler"
	internalmiddleware "github.com/noah-isme/routine-builder/internal/middleware"
	"github.com/noah-isme/routine-builder/internal/models"
	"github.com/noah-isme/routine-builder/internal/repository"
	"github.com/noah-isme/routine-builder/internal/service"
	"github.com/noah-isme/routine-builder/pkg/cache"
	"github.com/noah-isme/routine-builder/pkg/config"
	"github.com/noah-isme/routine-builder/pkg/database"
	"github.com/noah-isme/routine-builder/pkg/logger"
	corsmiddleware "github.com/noah-isme/routine-builder/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/routine-builder/pkg/middleware/requestid"
	"github.com/noah-isme/routine-builder/pkg/storage"
)

// @title Routine Builder API
// @version 1.0.0
// @description Weekly class routines with cross-routine teacher conflict detection
// @BasePath /
// @schemes http

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	layout, err := models.ParseLayout(cfg.Scheduler.Days, cfg.Scheduler.Rows)
	if err != nil {
		return fmt.Errorf("grid layout: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck
	if err := database.InitCatalogSchema(ctx, db); err != nil {
		return err
	}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	var redisRepo *repository.CacheRepository
	if cfg.Catalog.CacheEnabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, teacher lists will not be cached", zap.Error(err))
		} else {
			redisRepo = repository.NewCacheRepository(redisClient, "routine-builder", logr)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cacheRepo != nil)

	validate := validator.New()
	catalog := service.NewCatalogService(repository.NewCatalogRepository(db), cacheSvc, validate, logr)

	loader := service.NewTeacherListLoader(catalog, service.TeacherListLoaderConfig{
		Workers:    cfg.Catalog.FetchWorkers,
		BufferSize: cfg.Catalog.FetchBuffer,
		MaxRetries: cfg.Catalog.FetchRetries,
		RetryDelay: cfg.Catalog.FetchRetryGap,
		Timeout:    cfg.Catalog.FetchTimeout,
	}, logr)
	loader.Start(ctx)
	defer loader.Stop()

	controller := service.NewScheduleController(
		repository.NewRoutineStore(layout),
		loader,
		service.ScheduleControllerConfig{EnforceAvailability: cfg.Scheduler.EnforceAvailability},
		metrics,
		logr,
	)
	catalog.OnTeachersChanged(controller.InvalidateCandidates)

	exports := newExportService(cfg, controller, catalog, logr)
	go runExportCleanup(ctx, exports, cfg.Export.LinkTTL, logr)

	imports := service.NewImportService(catalog, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics)
	metricsHandler.AddReadinessCheck("postgres", db.PingContext)
	if redisRepo != nil {
		metricsHandler.AddReadinessCheck("redis", redisRepo.Ping)
	}
	metricsHandler.AddQueue("teacher_fetch", loader.Pending)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix),
		handler.NewRoutineHandler(controller, exports),
		handler.NewCatalogHandler(catalog, imports, cfg.Import.MaxFileSizeBytes),
		metricsHandler,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.Bool("enforce_availability", cfg.Scheduler.EnforceAvailability),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func registerRoutes(api *gin.RouterGroup, routines *handler.RoutineHandler, catalog *handler.CatalogHandler, metrics *handler.MetricsHandler) {
	api.GET("/layout", routines.Layout)
	api.GET("/availability", routines.Availability)

	api.GET("/routines", routines.List)
	api.POST("/routines", routines.Create)
	api.GET("/routines/conflicts", routines.Conflicts)
	api.GET("/routines/export", routines.Export)
	api.POST("/routines/export/archive", routines.Archive)
	api.GET("/routines/:id", routines.Get)
	api.DELETE("/routines/:id", routines.Delete)
	api.GET("/routines/:id/cells/:day/:slot", routines.GetCell)
	api.DELETE("/routines/:id/cells/:day/:slot", routines.ClearCell)
	api.PUT("/routines/:id/cells/:day/:slot/subject", routines.SelectSubject)
	api.PUT("/routines/:id/cells/:day/:slot/teacher", routines.SelectTeacher)
	api.GET("/routines/:id/cells/:day/:slot/candidates", routines.Candidates)
	api.GET("/exports/:token", routines.Download)

	api.GET("/subjects", catalog.ListSubjects)
	api.POST("/subjects/import", catalog.Import)
	api.GET("/subjects/:code", catalog.GetSubject)
	api.PUT("/subjects/:code", catalog.UpsertSubject)
	api.GET("/subjects/:code/teachers", catalog.ListTeachers)
	api.POST("/subjects/:code/teachers", catalog.AddTeacher)

	api.GET("/metrics/summary", metrics.Summary)
}

// newExportService enables archived download links only when a signing secret is configured.
func newExportService(cfg *config.Config, controller *service.ScheduleController, catalog *service.CatalogService, logr *zap.Logger) *service.ExportService {
	exportCfg := service.ExportConfig{Title: cfg.Export.Title, APIPrefix: cfg.APIPrefix}
	if cfg.Export.SigningSecret == "" {
		logr.Info("export links disabled, EXPORT_SIGNING_SECRET is empty")
		return service.NewExportService(controller, catalog, nil, nil, exportCfg, logr)
	}
	files, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Warn("export directory unusable, export links disabled", zap.String("dir", cfg.Export.Dir), zap.Error(err))
		return service.NewExportService(controller, catalog, nil, nil, exportCfg, logr)
	}
	signer := storage.NewSigner(cfg.Export.SigningSecret, cfg.Export.LinkTTL)
	return service.NewExportService(controller, catalog, files, signer, exportCfg, logr)
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := exports.Cleanup(ttl); err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
			}
		}
	}
}
