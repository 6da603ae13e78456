package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sqlgate_build_info",
			Help: "Build information of the sqlgate server",
		},
		[]string{"version", "commit", "date"},
	)

	StatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlgate_statements_total",
			Help: "Total number of statements executed, by outcome",
		},
		[]string{"status"},
	)

	StatementDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlgate_statement_duration_seconds",
			Help:    "Duration of statement execution",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
	)

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlgate_cache_hits_total",
			Help: "Total number of result cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlgate_cache_misses_total",
			Help: "Total number of result cache misses",
		},
	)

	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlgate_cache_evictions_total",
			Help: "Total number of result cache evictions",
		},
	)

	SessionsOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlgate_sessions_opened_total",
			Help: "Total number of database sessions opened",
		},
	)

	SessionsReplacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlgate_sessions_replaced_total",
			Help: "Total number of database sessions replaced, by reason",
		},
		[]string{"reason"},
	)

	CatalogTables = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlgate_catalog_tables",
			Help: "Number of tables currently known to the schema catalog",
		},
	)

	CatalogPersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlgate_catalog_persist_failures_total",
			Help: "Total number of failed schema catalog writes",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlgate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~41s
		},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlgate_tool_calls_total",
			Help: "Total number of tool calls",
		},
		[]string{"tool_name", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlgate_tool_call_duration_seconds",
			Help:    "Duration of tool calls",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~41s
		},
		[]string{"tool_name"},
	)
)
