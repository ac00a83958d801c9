// Package metrics exposes the Prometheus instruments used across the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	guidanceLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chefmentor_guidance_lookups_total",
		Help: "Step guidance resolutions by outcome",
	}, []string{"outcome"}) // outcome=hit|miss|fallback

	prefetchJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chefmentor_prefetch_jobs_total",
		Help: "Prefetch jobs by outcome",
	}, []string{"outcome"}) // outcome=stored|stale|skipped|failed|dropped|deduped

	prefetchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chefmentor_prefetch_queue_depth",
		Help: "Jobs waiting in the prefetch queue",
	})

	providerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chefmentor_guidance_provider_calls_total",
		Help: "Calls to the guidance provider by outcome",
	}, []string{"provider", "outcome"}) // outcome=success|error

	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chefmentor_guidance_provider_duration_seconds",
		Help:    "Latency of guidance provider calls",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"provider"})

	memoLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chefmentor_guidance_memo_lookups_total",
		Help: "Redis guidance memo lookups by result",
	}, []string{"result"}) // result=hit|miss|error

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chefmentor_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chefmentor_circuit_breaker_trips_total",
		Help: "Transitions into the open state",
	}, []string{"name", "reason"})

	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chefmentor_sessions_started_total",
		Help: "Cooking sessions started",
	})

	sessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chefmentor_sessions_completed_total",
		Help: "Cooking sessions that reached the final step",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chefmentor_http_requests_total",
		Help: "HTTP requests by route pattern and status code",
	}, []string{"route", "status"})
)

func RecordGuidanceLookup(outcome string) {
	guidanceLookups.WithLabelValues(outcome).Inc()
}

func RecordPrefetch(outcome string) {
	prefetchJobs.WithLabelValues(outcome).Inc()
}

func SetPrefetchQueueDepth(n int) {
	prefetchQueueDepth.Set(float64(n))
}

// ObserveProviderCall records one provider call and its latency.
func ObserveProviderCall(provider string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	providerCalls.WithLabelValues(provider, outcome).Inc()
	providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}

func RecordMemoLookup(result string) {
	memoLookups.WithLabelValues(result).Inc()
}

// SetCircuitBreakerState maps the state name onto the gauge value.
func SetCircuitBreakerState(name, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	breakerState.WithLabelValues(name).Set(v)
}

func RecordCircuitBreakerTrip(name, reason string) {
	breakerTrips.WithLabelValues(name, reason).Inc()
}

func RecordSessionStarted() {
	sessionsStarted.Inc()
}

func RecordSessionCompleted() {
	sessionsCompleted.Inc()
}

func RecordHTTPRequest(route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
