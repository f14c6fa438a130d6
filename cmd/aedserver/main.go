// Command aedserver runs the AED map read API plus the two background
// ingestion tasks (spec.md §4). Every replica attempts primary
// election over DataDir at startup; the primary runs Overpass/country
// ingestion and publishes invalidation events, secondaries serve reads
// and flush their count cache on those events (spec.md §4.9, C9).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openaedmap/aedcore/internal/aedingest"
	"github.com/openaedmap/aedcore/internal/coordinator"
	"github.com/openaedmap/aedcore/internal/core/config"
	"github.com/openaedmap/aedcore/internal/core/health"
	"github.com/openaedmap/aedcore/internal/core/httpclient"
	"github.com/openaedmap/aedcore/internal/core/observability"
	"github.com/openaedmap/aedcore/internal/core/server"
	"github.com/openaedmap/aedcore/internal/countryingest"
	"github.com/openaedmap/aedcore/internal/httpapi"
	"github.com/openaedmap/aedcore/internal/invalidate"
	"github.com/openaedmap/aedcore/internal/logger"
	"github.com/openaedmap/aedcore/internal/query"
	"github.com/openaedmap/aedcore/internal/store"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.EqualFold(os.Getenv("LOG_CONSOLE"), "true"),
		Component: "aedserver",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.Init(prometheus.DefaultRegisterer, !strings.EqualFold(os.Getenv("METRICS_ENABLED"), "false"))
	observability.ExposeBuildInfo(Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		appLog.Error("store open failed", "err", err)
		return 1
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		appLog.Error("migrate failed", "err", err)
		return 1
	}

	coord := coordinator.New(cfg.DataDir, "aedcore")
	if err := coord.Acquire(ctx); err != nil {
		appLog.Error("coordinator acquire failed", "err", err)
		return 1
	}
	defer func() { _ = coord.Close() }()

	brokers := splitBrokers(cfg.KafkaBrokers)

	queryService := query.NewService(st, cfg.CountByCountryCacheSize, cfg.CountByCountryCacheTTL)

	if coord.IsPrimary {
		if err := runPrimary(ctx, cfg, appLog, st, coord, brokers); err != nil {
			appLog.Error("primary startup failed", "err", err)
			return 1
		}
	} else {
		sub := invalidate.NewSubscriber(brokers, "aedcore-secondary", cfg.InvalidationTopic,
			func(invalidate.Event) { queryService.InvalidateCounts() }, appLog)
		if err := sub.Start(ctx); err != nil {
			appLog.Error("invalidation subscriber start failed", "err", err)
			return 1
		}
		defer sub.Stop()
	}

	handler := &httpapi.Handler{Query: queryService, Config: cfg, Logger: appLog, Version: Version}
	router := httpapi.NewRouter(handler, health.Readiness(coord))

	if err := server.Run(ctx, cfg.Addr, appLog, router); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// runPrimary wires the Overpass/country ingestion loops and blocks
// until both have completed at least one cycle, then flips the
// coordinator's state to running so secondaries stop waiting
// (spec.md §4.9).
func runPrimary(ctx context.Context, cfg config.Config, appLog *slog.Logger, st *store.Store, coord *coordinator.Coordinator, brokers []string) error {
	publisher, err := invalidate.NewPublisher(brokers, cfg.InvalidationTopic, cfg.InvalidationEnable)
	if err != nil {
		return err
	}

	httpClient := httpclient.NewOutbound()

	countrySvc := &countryingest.Service{
		Store:       st,
		HTTPClient:  httpClient,
		FeedURL:     cfg.CountryFeedURL,
		UpdateDelay: cfg.CountryUpdateDelay,
		Logger:      appLog,
		Invalidator: publisher,
	}
	aedSvc := &aedingest.Service{
		Store:             st,
		HTTPClient:        httpClient,
		OverpassURL:       cfg.OverpassURL,
		ReplicationURL:    cfg.ReplicationURL,
		OverpassTimeout:   cfg.OverpassTimeout,
		PlanetDiffTimeout: cfg.PlanetDiffTimeout,
		UpdateDelay:       cfg.AEDUpdateDelay,
		RebuildThreshold:  cfg.AEDRebuildThreshold,
		Logger:            appLog,
		Invalidator:       publisher,
	}

	countryReady := make(chan struct{})
	aedReady := make(chan struct{})
	go countrySvc.Task().Loop(ctx, countryReady)
	go aedSvc.Task().Loop(ctx, aedReady)

	select {
	case <-countryReady:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-aedReady:
	case <-ctx.Done():
		return ctx.Err()
	}

	return coord.SetState(coordinator.StateRunning)
}

func splitBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
