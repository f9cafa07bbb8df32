// Command regioncache-server wires the region cache engine, its
// ambient stack, and its supplemented collaborators (remote dataset
// client, Kafka invalidation, Redis discovery) into a runnable HTTP
// service, following the teacher's cmd/middleware wiring shape.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/civicgrid/regioncache/internal/core/config"
	"github.com/civicgrid/regioncache/internal/core/httpclient"
	"github.com/civicgrid/regioncache/internal/core/observability"
	"github.com/civicgrid/regioncache/internal/core/router"
	"github.com/civicgrid/regioncache/internal/discovery"
	"github.com/civicgrid/regioncache/internal/invalidation"
	"github.com/civicgrid/regioncache/internal/invalidation/kafkaconsumer"
	"github.com/civicgrid/regioncache/internal/logger"
	"github.com/civicgrid/regioncache/internal/memgov"
	"github.com/civicgrid/regioncache/internal/regioncache"
	"github.com/civicgrid/regioncache/internal/remotedataset"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Scenario:  cfg.Scenario,
		Component: "regioncache-server",
	}, os.Stdout)
	log := &zl

	log.Info().Str("addr", cfg.Addr).Str("version", Version).Msg("starting regioncache-server")

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		log.Error().Err(err).Msg("failed to register metrics")
		return 1
	}

	gov := memgov.New(cfg.Cache.IterationInterval)
	dataset := remotedataset.NewClient(cfg.SodaBaseURL, httpclient.NewOutbound())

	spatialCache := regioncache.NewSpatialRegionCache("spatial", cfg.Cache, dataset, gov, metrics, log)
	hashMapCache := regioncache.NewHashMapRegionCache("hashmap", cfg.Cache, dataset, gov, metrics, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go spatialCache.RunDepressurizeLoop(ctx)
	go hashMapCache.RunDepressurizeLoop(ctx)

	invTargets := []kafkaconsumer.Target{
		{
			Name:  "spatial",
			Evict: func(ev invalidation.Event) bool { return spatialCache.Evict(ev.Key()) },
			Reset: spatialCache.Reset,
		},
		{
			Name:  "hashmap",
			Evict: func(ev invalidation.Event) bool { return hashMapCache.Evict(ev.Key()) },
			Reset: hashMapCache.Reset,
		},
	}
	consumer := kafkaconsumer.New(
		kafkaconsumer.FromEnv(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID),
		invTargets, metrics, log,
	)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("kafka invalidation consumer exited")
		}
	}()

	instanceID := hostnameOrPID()
	registrar := discovery.New(cfg.RedisAddr, instanceID, 30*time.Second)
	go func() {
		if err := registrar.Run(ctx, 10*time.Second); err != nil {
			log.Warn().Err(err).Msg("discovery registrar exited")
		}
	}()

	handler := router.New(spatialCache, registry, log)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("signal received, shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("server stopped")
	return 0
}

func hostnameOrPID() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "regioncache-" + strconv.Itoa(os.Getpid())
	}
	return h
}
