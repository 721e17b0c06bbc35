package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelkit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labelkit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Generation metrics
	generationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelkit_generation_requests_total",
			Help: "Total number of generation requests",
		},
		[]string{"kind", "status"}, // kind: bulk, print, labels, websocket_bulk, websocket_print
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labelkit_generation_duration_seconds",
			Help:    "Generation duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25, 60},
		},
		[]string{"kind"},
	)

	requestItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labelkit_request_items",
			Help:    "Number of data items per generation request",
			Buckets: []float64{1, 5, 20, 50, 100, 250, 500, 1000},
		},
		[]string{"kind"},
	)

	labelsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelkit_labels_rendered_total",
			Help: "Total number of label images rendered",
		},
		[]string{"kind"},
	)

	labelsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "labelkit_labels_skipped_total",
			Help: "Labels skipped in bulk runs because their value could not be encoded",
		},
	)

	sheetsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelkit_sheets_generated_total",
			Help: "Total number of print sheets composed",
		},
		[]string{"format"},
	)

	routingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelkit_routing_decisions_total",
			Help: "Routing decisions returned by the estimate endpoint",
		},
		[]string{"mode"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelkit_cache_lookups_total",
			Help: "Output cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelkit_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, labels
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labelkit_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelkit_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
