// Package main is a one-shot CLI that recomputes popularity snapshots.
// Intended for migrations, backfills, and operational recovery; the API
// server runs the same aggregation on a schedule.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/onnwee/reviewrank/internal/middleware"
	"github.com/onnwee/reviewrank/internal/popular"
	"github.com/onnwee/reviewrank/internal/review"
	"github.com/onnwee/reviewrank/internal/scoring"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	periodFlag := flag.String("period", "", "period to recompute (daily, weekly, monthly, all_time); empty recomputes all")
	timeoutFlag := flag.Duration("timeout", 2*time.Minute, "timeout per period recompute")
	prune := flag.Bool("prune", true, "prune snapshot entries for deleted reviews after recompute")
	flag.Parse()

	if *help {
		fmt.Println("ReviewRank Snapshot Recompute")
		fmt.Println()
		fmt.Println("Usage: recompute [options]")
		fmt.Println()
		fmt.Println("Reads DATABASE_URL and optional CALIBRATION_PATH from the environment.")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}
	logger := middleware.NewLogger(env)
	slog.SetDefault(logger)

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	periods := popular.Periods
	if *periodFlag != "" {
		p, err := popular.ParsePeriod(*periodFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid period %q: must be one of daily, weekly, monthly, all_time\n", *periodFlag)
			os.Exit(1)
		}
		periods = []popular.Period{p}
	}

	weights, err := scoring.LoadCalibration(os.Getenv("CALIBRATION_PATH"))
	if err != nil {
		logger.Warn("falling back to default scoring weights", "error", err)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	cancel()

	reviewRepo := review.NewPostgresRepository(db, logger)
	snapshots := popular.NewPostgresSnapshotRepository(db, logger)
	aggregator := popular.NewAggregator(
		review.NewEngagementAdapter(reviewRepo), snapshots, weights, logger)

	exitCode := 0
	for _, period := range periods {
		ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
		entries, err := aggregator.Run(ctx, period)
		cancel()
		if err != nil {
			logger.Error("recompute failed", "period", string(period), "error", err)
			exitCode = 1
			continue
		}
		fmt.Printf("%s: %d entries\n", period, entries)
	}

	if *prune {
		ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
		removed, err := aggregator.PruneDeleted(ctx)
		cancel()
		if err != nil {
			logger.Error("prune failed", "error", err)
			exitCode = 1
		} else if removed > 0 {
			fmt.Printf("pruned %d stale entries\n", removed)
		}
	}

	os.Exit(exitCode)
}
