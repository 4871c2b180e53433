// Command rainrate derives precipitation rate from one WRF output file,
// renders the latest step as a PNG map and writes the full series as NetCDF.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	kafkaadapter "github.com/couchcryptid/storm-data-rainrate/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-rainrate/internal/adapter/mapbox"
	"github.com/couchcryptid/storm-data-rainrate/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-data-rainrate/internal/adapter/render"
	"github.com/couchcryptid/storm-data-rainrate/internal/config"
	"github.com/couchcryptid/storm-data-rainrate/internal/domain"
	"github.com/couchcryptid/storm-data-rainrate/internal/observability"
	"github.com/couchcryptid/storm-data-rainrate/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var notifier pipeline.Notifier
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		notifier = writer
		logger.Info("kafka notification enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	source := func(path string) (pipeline.Dataset, error) {
		ds, err := netcdf.Open(path)
		if err != nil {
			return nil, err
		}
		return ds, nil
	}
	renderer := render.New(render.Options{
		WidthInches:        cfg.PlotWidthInches,
		HeightInches:       cfg.PlotHeightInches,
		DPI:                cfg.PlotDPI,
		CoastlineShapefile: cfg.CoastlineShapefile,
	})

	p := pipeline.New(source, renderer, netcdf.Persister{}, notifier, geocoder, logger, metrics, pipeline.Options{
		InputPath:      cfg.InputPath(),
		ImagePath:      cfg.ImagePath(),
		DataPath:       cfg.DataPath(),
		PushgatewayURL: cfg.PushgatewayURL,
		PublishTimeout: cfg.PublishTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := p.Run(ctx); err != nil {
		if errors.Is(err, netcdf.ErrMissingInputFile) {
			logger.Error("input file not found, place the WRF output in the data directory",
				"path", cfg.InputPath(), "data_dir", cfg.DataDir)
			return 1
		}
		logger.Error("run failed", "error", err)
		return 1
	}
	return 0
}
