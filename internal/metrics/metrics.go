package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentslack_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentslack_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentslack_tool_calls_total",
			Help: "Total tool invocations",
		},
		[]string{"tool", "outcome"}, // outcome is "ok" or an error kind
	)

	WorldsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentslack_worlds_registered_total",
			Help: "Total worlds registered",
		},
	)

	AgentsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentslack_agents_registered_total",
			Help: "Total agents registered",
		},
	)

	PoolFree = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentslack_identity_pool_free",
			Help: "Unassigned identity bindings",
		},
	)

	MessagesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentslack_messages_delivered_total",
			Help: "Messages delivered to agents as new",
		},
		[]string{"source"}, // "channel", "dm" or "sweep"
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentslack_messages_sent_total",
			Help: "Messages posted by agents",
		},
		[]string{"kind"}, // "dm" or "broadcast"
	)

	SweepChannelFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentslack_sweep_channel_failures_total",
			Help: "Channels skipped during a sweep because the provider failed",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentslack_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentslack_provider_latency_seconds",
			Help:    "Messaging provider call latency",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"op"},
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentslack_provider_errors_total",
			Help: "Messaging provider call failures",
		},
		[]string{"op"},
	)

	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentslack_store_latency_seconds",
			Help:    "Directory store query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
