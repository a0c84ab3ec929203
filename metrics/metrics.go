package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wcl_check"

var (
	ReportsComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_computed_total",
			Help:      "Completed analysis jobs by service kind.",
		},
		[]string{"service"},
	)
	ReportErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_errors_total",
			Help:      "Failed analysis jobs by service kind.",
		},
		[]string{"service"},
	)
	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of one analysis job.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting for the worker.",
		},
	)
	GraphQLCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_calls_total",
			Help:      "Upstream GraphQL calls by query name.",
		},
		[]string{"query"},
	)
	GraphQLErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_errors_total",
			Help:      "Failed upstream GraphQL calls by query name.",
		},
		[]string{"query"},
	)
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache lookups served from disk.",
		},
	)
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that fell through.",
		},
	)
)

func Route(g *gin.Engine) {
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
