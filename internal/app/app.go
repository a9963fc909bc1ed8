package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heartmarshall/wordflow-backend/internal/adapter/store"
	"github.com/heartmarshall/wordflow-backend/internal/config"
	"github.com/heartmarshall/wordflow-backend/internal/domain"
	"github.com/heartmarshall/wordflow-backend/internal/service/importer"
	"github.com/heartmarshall/wordflow-backend/internal/service/scheduler"
	"github.com/heartmarshall/wordflow-backend/internal/service/search"
	"github.com/heartmarshall/wordflow-backend/internal/service/srs"
	"github.com/heartmarshall/wordflow-backend/internal/service/stats"
	"github.com/heartmarshall/wordflow-backend/internal/transport/middleware"
	"github.com/heartmarshall/wordflow-backend/internal/transport/rest"
)

// Run is the application entry point. It loads configuration, initializes
// all layers (storage, services, transport), starts the HTTP server, and
// waits for a shutdown signal for graceful termination.
func Run(ctx context.Context) error {
	// -----------------------------------------------------------------------
	// 1. Load and validate config
	// -----------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// -----------------------------------------------------------------------
	// 2. Initialize logger
	// -----------------------------------------------------------------------
	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
	)

	// -----------------------------------------------------------------------
	// 3. Open the SQLite database and apply migrations
	// -----------------------------------------------------------------------
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	// -----------------------------------------------------------------------
	// 4. Create the Store façade
	// -----------------------------------------------------------------------
	st := store.New(db)

	// -----------------------------------------------------------------------
	// 5. Create services
	// -----------------------------------------------------------------------
	srsConfig := domain.SRSConfig{
		DefaultEase:    cfg.SRS.DefaultEase,
		MinEase:        cfg.SRS.MinEase,
		MaxEase:        cfg.SRS.MaxEase,
		LeechThreshold: cfg.SRS.LeechThreshold,
	}
	srsService := srs.NewService(logger, st, srsConfig)

	schedulerConfig := domain.SchedulerConfig{
		DefaultLimit:    cfg.Scheduler.DefaultLimit,
		DefaultNewLimit: cfg.Scheduler.DefaultNewLimit,
	}
	schedulerService := scheduler.NewService(logger, st, schedulerConfig)

	importerService := importer.New(st, importer.Config{
		BatchSize:            cfg.Import.BatchSize,
		MaxConcurrent:        cfg.Import.MaxConcurrent,
		MaxReportedRowErrors: cfg.Import.MaxReportedRowErrors,
	}, logger)

	searchService := search.New(st)

	// schedulerForStats adapts scheduler.Service.NextQueue to the narrow
	// function type stats.Service composes against, keeping that package
	// free of a direct scheduler import.
	schedulerForStats := func(ctx context.Context, opts domain.QueueOptions) (domain.QueueStats, error) {
		result, err := schedulerService.NextQueue(ctx, opts)
		if err != nil {
			return domain.QueueStats{}, err
		}
		return result.Stats, nil
	}
	statsService := stats.New(st, schedulerForStats)

	// -----------------------------------------------------------------------
	// 6. Create REST handlers
	// -----------------------------------------------------------------------
	healthHandler := rest.NewHealthHandler(st, BuildVersion())
	wordbookHandler := rest.NewWordbookHandler(st, logger)
	wordHandler := rest.NewWordHandler(importerService, searchService, st, logger)
	importHandler := rest.NewImportHandler(importerService, logger)
	settingsHandler := rest.NewSettingsHandler(st, logger)

	// schedulerForStudy/applyForStudy adapt the scheduler/srs services to the
	// rest package's own function types, for the same reason as above.
	schedulerForStudy := func(ctx context.Context, opts domain.QueueOptions) (*rest.SchedulerResult, error) {
		result, err := schedulerService.NextQueue(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &rest.SchedulerResult{Cards: result.Cards, Stats: result.Stats}, nil
	}
	applyForStudy := func(ctx context.Context, cardID int, grade domain.ReviewGrade, elapsedMs *int) (*rest.SRSResult, error) {
		result, err := srsService.Apply(ctx, cardID, grade, elapsedMs, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		return &rest.SRSResult{State: result.State, Review: result.Review}, nil
	}
	studyHandler := rest.NewStudyHandler(schedulerForStudy, applyForStudy, statsService, logger)

	// -----------------------------------------------------------------------
	// 7. Assemble middleware chain
	// -----------------------------------------------------------------------
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.CleanupInterval)
	defer rateLimiter.Stop()

	// readDeadline gives read (GET) requests a context bounded by
	// cfg.Server.RequestDeadline, the §5 soft deadline.
	readDeadline := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || cfg.Server.RequestDeadline <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), cfg.Server.RequestDeadline)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	chain := []middleware.Middleware{
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.CORS(cfg.CORS),
		readDeadline,
	}
	if cfg.RateLimit.Enabled {
		chain = append(chain, rateLimiter.Limit(cfg.RateLimit.RequestsPerMin))
	}
	wrap := middleware.Chain(chain...)

	// -----------------------------------------------------------------------
	// 8. Create ServeMux and register routes (§6's REST endpoint table)
	// -----------------------------------------------------------------------
	mux := http.NewServeMux()

	// Health endpoints - outside the middleware stack and outside the §6
	// versioned API surface; these are infra probes, not client-facing API.
	mux.HandleFunc("GET /live", healthHandler.Live)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /health", healthHandler.Health)

	// Everything else is rooted at /api/v1 per §6.
	const apiPrefix = "/api/v1"

	mux.HandleFunc("POST "+apiPrefix+"/wordbooks", wordbookHandler.Create)
	mux.HandleFunc("GET "+apiPrefix+"/wordbooks", wordbookHandler.List)
	mux.HandleFunc("GET "+apiPrefix+"/wordbooks/active", wordbookHandler.Active)
	mux.HandleFunc("POST "+apiPrefix+"/wordbooks/{id}/activate", wordbookHandler.Activate)
	mux.HandleFunc("DELETE "+apiPrefix+"/wordbooks/{id}", wordbookHandler.Delete)
	mux.HandleFunc("GET "+apiPrefix+"/wordbooks/{id}/stats", wordbookHandler.Stats)

	mux.HandleFunc("POST "+apiPrefix+"/words/bulk", wordHandler.BulkImport)
	mux.HandleFunc("GET "+apiPrefix+"/words/search", wordHandler.Search)
	mux.HandleFunc("GET "+apiPrefix+"/words/suggest", wordHandler.Suggest)
	mux.HandleFunc("GET "+apiPrefix+"/words/{id}", wordHandler.Get)

	mux.HandleFunc("GET "+apiPrefix+"/imports", importHandler.List)
	mux.HandleFunc("GET "+apiPrefix+"/imports/{id}", importHandler.Get)

	mux.HandleFunc("GET "+apiPrefix+"/stats", wordbookHandler.GlobalStats)

	mux.HandleFunc("GET "+apiPrefix+"/study/next", studyHandler.Next)
	mux.HandleFunc("POST "+apiPrefix+"/review", studyHandler.Review)
	mux.HandleFunc("GET "+apiPrefix+"/study/stats", studyHandler.Stats)
	mux.HandleFunc("GET "+apiPrefix+"/study/progress", studyHandler.Progress)
	mux.HandleFunc("GET "+apiPrefix+"/study/due-forecast", studyHandler.DueForecast)

	mux.HandleFunc("GET "+apiPrefix+"/settings", settingsHandler.Get)
	mux.HandleFunc("PUT "+apiPrefix+"/settings", settingsHandler.Put)

	handler := wrap(mux)

	// -----------------------------------------------------------------------
	// 9. Create and start HTTP server
	// -----------------------------------------------------------------------
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	// -----------------------------------------------------------------------
	// 10. Wait for signal -> graceful shutdown
	// -----------------------------------------------------------------------
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("HTTP server stopped")

	// db.Close() called via defer
	logger.Info("shutdown complete")

	return nil
}
