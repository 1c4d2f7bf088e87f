package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "memeshop"

// Recorder collects counters for a single CLI invocation. A nil *Recorder
// accepts every call and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	acquired        prometheus.Counter
	published       prometheus.Counter
	publishFailures prometheus.Counter
	channelPosts    *prometheus.CounterVec
	retryWait       *prometheus.HistogramVec
	pruned          prometheus.Counter
	assetsDeleted   prometheus.Counter
	runDuration     *prometheus.GaugeVec
	lastSuccess     *prometheus.GaugeVec
}

// New registers the pipeline collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		acquired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_acquired_total",
			Help:      "Records appended to the intake file.",
		}),
		published: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_published_total",
			Help:      "Listings created and published on the commerce platform.",
		}),
		publishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_publish_failures_total",
			Help:      "Records whose listing could not be created or published.",
		}),
		channelPosts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_posts_total",
			Help:      "Social channel post outcomes by channel.",
		}, []string{"channel", "outcome"}),
		retryWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_retry_wait_seconds",
			Help:      "Backoff waits scheduled after failed channel posts.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"channel"}),
		pruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_pruned_total",
			Help:      "Unsold listings deleted by the pruner.",
		}),
		assetsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_deleted_total",
			Help:      "Local image assets removed after distribution finished.",
		}),
		runDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run by command.",
		}, []string{"command"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run by command.",
		}, []string{"command"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) RecordAcquired(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.acquired.Add(float64(n))
}

func (r *Recorder) RecordPublished() {
	if r == nil {
		return
	}
	r.published.Inc()
}

func (r *Recorder) RecordPublishFailure() {
	if r == nil {
		return
	}
	r.publishFailures.Inc()
}

// RecordChannelPost counts a final channel outcome ("posted" or "exhausted").
func (r *Recorder) RecordChannelPost(channel, outcome string) {
	if r == nil {
		return
	}
	r.channelPosts.WithLabelValues(channel, outcome).Inc()
}

func (r *Recorder) ObserveRetryWait(channel string, wait time.Duration) {
	if r == nil {
		return
	}
	r.retryWait.WithLabelValues(channel).Observe(wait.Seconds())
}

func (r *Recorder) RecordPruned() {
	if r == nil {
		return
	}
	r.pruned.Inc()
}

func (r *Recorder) RecordAssetDeleted() {
	if r == nil {
		return
	}
	r.assetsDeleted.Inc()
}

// ObserveRun stores the run duration and, on success, the completion time.
func (r *Recorder) ObserveRun(command string, started, finished time.Time, success bool) {
	if r == nil {
		return
	}
	r.runDuration.WithLabelValues(command).Set(finished.Sub(started).Seconds())
	if success {
		r.lastSuccess.WithLabelValues(command).Set(float64(finished.Unix()))
	}
}

// Push sends every collected metric to a Pushgateway. An empty url is a no-op.
func (r *Recorder) Push(ctx context.Context, url, job, instance string) error {
	url = strings.TrimSpace(url)
	if r == nil || url == "" {
		return nil
	}
	pusher := push.New(url, job).Gatherer(r.registry)
	if instance = strings.TrimSpace(instance); instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
