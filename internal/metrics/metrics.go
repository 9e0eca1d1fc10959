package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveRuns   prometheus.Gauge
	PipelineRuns *prometheus.CounterVec // level label
	RunErrors    *prometheus.CounterVec // phase label: load|save|publish
	RunDuration  prometheus.Histogram

	StageDuration *prometheus.HistogramVec // stage label
	RouteLookups  *prometheus.CounterVec   // result label: ok|error|empty|skipped

	SlackGaps   prometheus.Counter
	Overlaps    prometheus.Counter
	OverlapMins prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	RefreshInterval prometheus.Gauge // seconds
}

func NewCollector(refreshInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_active_runs",
			Help: "Number of pipeline runs in progress.",
		}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_pipeline_runs_total",
			Help: "Total pipeline runs by level.",
		}, []string{"level"}),
		RunErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_run_errors_total",
			Help: "Pipeline runs that failed around the pipeline, by phase.",
		}, []string{"phase"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_run_duration_seconds",
			Help:    "Duration of a full load, pipeline, save and publish cycle.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planner_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12),
		}, []string{"stage"}),
		RouteLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_route_lookups_total",
			Help: "Route lookups by result.",
		}, []string{"result"}),
		SlackGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_slack_gaps_total",
			Help: "Slack gaps found across runs.",
		}),
		Overlaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_overlaps_total",
			Help: "Overlaps found across runs.",
		}),
		OverlapMins: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_overlap_minutes",
			Help:    "Size of detected overlaps in minutes.",
			Buckets: []float64{5, 15, 30, 60, 120, 240, 480, 1440},
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		RefreshInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_refresh_interval_seconds",
			Help: "Periodic re-run interval in seconds, 0 when disabled.",
		}),
	}

	reg.MustRegister(
		c.ActiveRuns, c.PipelineRuns, c.RunErrors, c.RunDuration,
		c.StageDuration, c.RouteLookups,
		c.SlackGaps, c.Overlaps, c.OverlapMins,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.RefreshInterval,
	)

	c.RefreshInterval.Set(refreshInterval.Seconds())

	return c
}

// StageObserve and RouteLookupInc let the collector observe pipeline runs.
func (c *Collector) StageObserve(stage string, d time.Duration) {
	c.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collector) RouteLookupInc(result string) {
	c.RouteLookups.WithLabelValues(result).Inc()
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
