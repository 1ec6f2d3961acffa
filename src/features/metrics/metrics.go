package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters. Labels stay low-cardinality: statuses, stages and
// tier names are all bounded by configuration.
var (
	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavecrate_ingest_items_total",
		Help: "Batch items processed, by terminal status.",
	}, []string{"status"})

	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavecrate_ingest_stage_failures_total",
		Help: "Item failures by pipeline stage.",
	}, []string{"stage"})

	TierFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavecrate_transcode_tier_failures_total",
		Help: "Failed rendition attempts by quality tier.",
	}, []string{"tier"})

	TranscodeSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wavecrate_transcode_duration_seconds",
		Help:    "Wall time of encoder runs by quality tier.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"tier"})

	UploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wavecrate_upload_bytes_total",
		Help: "Bytes uploaded to the object store.",
	})

	RetryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavecrate_retry_attempts_total",
		Help: "Retries performed, by error kind.",
	}, []string{"kind"})
)

// Catalog gauges, refreshed on scrape.
var (
	CatalogTracks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wavecrate_catalog_tracks",
		Help: "Tracks currently in the catalog.",
	})

	CatalogAlbums = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wavecrate_catalog_albums",
		Help: "Albums currently in the catalog.",
	})
)
