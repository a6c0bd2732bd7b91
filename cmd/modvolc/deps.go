package main

import (
	"time"

	kafkaadapter "github.com/couchcryptid/modvolc-etl/internal/adapter/kafka"
	"github.com/couchcryptid/modvolc-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/modvolc-etl/internal/adapter/modvolc"
	"github.com/couchcryptid/modvolc-etl/internal/domain"
	"github.com/couchcryptid/modvolc-etl/internal/pipeline"
)

// geocodeCacheTTL bounds how long a resolved site location is reused.
const geocodeCacheTTL = 24 * time.Hour

// newPipeline wires the adapters selected by the configuration. The returned
// cleanup closes whatever was opened.
func (a *app) newPipeline(opts pipeline.Options) (*pipeline.Pipeline, func()) {
	cfg, logger := a.cfg, a.logger

	var fetcher pipeline.Fetcher = modvolc.NewClient(cfg.ModvolcBaseURL, cfg.ModvolcTimeout, cfg.ModvolcRetries, a.metrics, logger)
	if cfg.FetchCacheTTL > 0 {
		fetcher = modvolc.NewCachedFetcher(fetcher, cfg.FetchCacheTTL, a.metrics)
	}

	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, a.metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, geocodeCacheTTL)
		logger.Info("mapbox geocoding enabled", "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	cleanup := func() {}
	var publisher pipeline.Publisher
	if cfg.PublishEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		cleanup = func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	return pipeline.New(fetcher, geocoder, publisher, opts, logger, a.metrics), cleanup
}
