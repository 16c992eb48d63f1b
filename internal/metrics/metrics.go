package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every TailorJob collector plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, route and status.",
	}, []string{"method", "handler", "status"})

	HTTPDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "handler"})

	HTTPInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_inprogress",
		Help: "HTTP requests currently being served.",
	})

	CVParseDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "cv_parse_duration_seconds",
		Help:    "Time taken to parse a CV.",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120},
	})

	CVParseErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "cv_parse_errors_total",
		Help: "Total number of CV parsing errors.",
	}, []string{"error_type"})

	AIMatchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "ai_match_duration_seconds",
		Help:    "Time taken to run AI CV matching.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
	})

	PayPalAPICalls = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "paypal_api_calls_total",
		Help: "PayPal API calls.",
	}, []string{"operation", "status"})

	PayPalWebhooks = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "paypal_webhooks_total",
		Help: "PayPal webhooks received.",
	}, []string{"event_type", "processed"})

	QueueLength = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_length",
		Help: "Number of jobs in the queue.",
	}, []string{"queue"})

	QueueProcessingDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queue_processing_duration_seconds",
		Help:    "Time to process a queue job.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	}, []string{"job_type"})

	RedisErrors = factory.NewCounter(prometheus.CounterOpts{
		Name: "redis_connection_errors_total",
		Help: "Redis connection errors.",
	})

	SubscriptionEvents = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_events_total",
		Help: "Subscription lifecycle events.",
	}, []string{"event_type", "tier"})

	FeatureUsage = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "feature_usage_total",
		Help: "Feature usage count.",
	}, []string{"feature", "tier"})

	PayPalHealth = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paypal_health_ratio",
		Help: "Latest PayPal monitor ratios (payment_success, webhook_processing, churn).",
	}, []string{"check"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func ObserveCVParse(d time.Duration) { CVParseDuration.Observe(d.Seconds()) }

func CVParseError(errorType string) { CVParseErrors.WithLabelValues(errorType).Inc() }

func ObserveAIMatch(d time.Duration) { AIMatchDuration.Observe(d.Seconds()) }

func PayPalCall(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	PayPalAPICalls.WithLabelValues(operation, status).Inc()
}

func PayPalWebhook(eventType string, processed bool) {
	PayPalWebhooks.WithLabelValues(eventType, strconv.FormatBool(processed)).Inc()
}

func ObserveQueueJob(jobType string, d time.Duration) {
	QueueProcessingDuration.WithLabelValues(jobType).Observe(d.Seconds())
}

func SubscriptionEvent(eventType, tier string) {
	SubscriptionEvents.WithLabelValues(eventType, tier).Inc()
}

func Feature(feature, tier string) {
	if tier == "" {
		tier = "free"
	}
	FeatureUsage.WithLabelValues(feature, tier).Inc()
}
