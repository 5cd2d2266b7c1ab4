// Package main is the entry point for the review ranking API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/reviewrank/internal/api"
	"github.com/onnwee/reviewrank/internal/audit"
	"github.com/onnwee/reviewrank/internal/auth"
	"github.com/onnwee/reviewrank/internal/config"
	"github.com/onnwee/reviewrank/internal/health"
	"github.com/onnwee/reviewrank/internal/middleware"
	"github.com/onnwee/reviewrank/internal/popular"
	"github.com/onnwee/reviewrank/internal/review"
	"github.com/onnwee/reviewrank/internal/scoring"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("ReviewRank API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	weights, err := scoring.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		logger.Warn("falling back to default scoring weights", "error", err)
	}

	// Storage: Postgres when configured, in-memory otherwise (dev/test only).
	var (
		reviewRepo review.Repository
		snapshots  popular.SnapshotRepository
	)
	checkers := map[string]api.HealthChecker{}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			cancel()
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		cancel()

		reviewRepo = review.NewPostgresRepository(db, logger)
		snapshots = popular.NewPostgresSnapshotRepository(db, logger)
		checkers["database"] = health.NewDBChecker(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
		reviewRepo = review.NewInMemoryRepository()
		snapshots = popular.NewInMemorySnapshotRepository()
	}

	aggregator := popular.NewAggregator(
		review.NewEngagementAdapter(reviewRepo), snapshots, weights, logger)

	// Metrics registry shared by the HTTP layer and the aggregation jobs.
	registry := prometheus.NewRegistry()
	popMetrics := popular.NewMetrics()
	if err := popMetrics.Register(registry); err != nil {
		logger.Error("failed to register aggregation metrics", "error", err)
		os.Exit(1)
	}
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	intervals := map[popular.Period]time.Duration{
		popular.PeriodDaily:   cfg.DailyInterval,
		popular.PeriodWeekly:  cfg.WeeklyInterval,
		popular.PeriodMonthly: cfg.MonthlyInterval,
		popular.PeriodAllTime: cfg.AllTimeInterval,
	}
	jobs := make([]*popular.AggregationJob, 0, len(intervals))
	for _, period := range popular.Periods {
		job := popular.NewAggregationJob(popular.AggregationJobConfig{
			Period:   period,
			Interval: intervals[period],
			Timeout:  cfg.AggregationTimeout,
			Logger:   logger,
			Metrics:  popMetrics,
		}, aggregator)
		if err := job.Start(jobCtx); err != nil {
			logger.Error("failed to start aggregation job", "period", string(period), "error", err)
			os.Exit(1)
		}
		// Populate each snapshot immediately so reads are not empty until
		// the first tick.
		go job.RecomputeNow()
		jobs = append(jobs, job)
	}

	// Rate limit store: Redis when configured, in-memory otherwise.
	var rateStore middleware.RateLimitStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		rateStore = middleware.NewRedisRateLimitStore(redisClient, logger)
		logger.Info("using Redis rate limit store", "addr", cfg.RedisAddr)
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		rateStore = memStore
		go func() {
			ticker := time.NewTicker(5 * cfg.RateLimitWindow)
			defer ticker.Stop()
			for {
				select {
				case <-jobCtx.Done():
					return
				case <-ticker.C:
					memStore.Cleanup()
				}
			}
		}()
	}
	rateLimit := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitRequests,
		WindowDuration:    cfg.RateLimitWindow,
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret)

	auditRepo := audit.NewInMemoryRepository()

	popularHandler := api.NewPopularHandler(snapshots, logger)
	adminHandler := api.NewAdminHandler(aggregator, auditRepo, cfg.AggregationTimeout, logger)
	healthHandler := api.NewHealthHandler(checkers, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler.Health)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/reviews/popular", popularHandler.GetPopularReviews)
	mux.HandleFunc("/api/admin/popular/recompute", api.RequireAuth(jwtService, adminHandler.RecomputePopular))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"reviewrank-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> Logging -> RateLimiter -> HTTPMetrics
	handler := middleware.RequestID(
		middleware.Logging(logger)(
			middleware.RateLimiter(rateStore, rateLimit, middleware.IPKeyFunc())(
				middleware.HTTPMetrics(httpMetrics)(mux))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	for _, job := range jobs {
		job.Stop()
	}
	cancelJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
