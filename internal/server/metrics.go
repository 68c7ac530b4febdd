package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morpho_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "morpho_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Morph processing metrics
	morphRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morpho_morph_requests_total",
			Help: "Total number of morph requests",
		},
		[]string{"transport", "status"}, // transport: http, websocket
	)

	morphDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "morpho_morph_duration_seconds",
			Help:    "Morph processing duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25, 60},
		},
		[]string{"transport"},
	)

	morphFrames = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "morpho_morph_frames",
			Help:    "Number of frames produced per morph",
			Buckets: []float64{2, 3, 5, 10, 20, 50, 100},
		},
	)

	morphPairs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "morpho_morph_line_pairs",
			Help:    "Number of feature line pairs per morph",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "morpho_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "morpho_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "morpho_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
