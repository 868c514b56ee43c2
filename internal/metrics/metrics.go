package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tablebook"

var (
	once sync.Once

	providerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Count of provider API calls by endpoint and final outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	providerRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_request_retries_total",
			Help:      "Count of retried provider API attempts.",
		},
		[]string{"endpoint"},
	)

	providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of a single provider API attempt.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	bookingTypeCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_type_cache_total",
			Help:      "Booking type cache lookups by result.",
		},
		[]string{"result"},
	)

	typesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_types_skipped_total",
			Help:      "Booking types dropped from an availability result.",
		},
		[]string{"reason"},
	)

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Count of booking submissions by outcome status.",
		},
		[]string{"status"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_cancelled_total",
			Help:      "Count of bookings cancelled through the provider.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			providerRequests,
			providerRetries,
			providerDuration,
			bookingTypeCache,
			typesSkipped,
			bookingCreated,
			bookingCancelled,
		)
	})
}

func IncProviderRequest(endpoint, outcome string) {
	providerRequests.WithLabelValues(endpoint, outcome).Inc()
}

func IncProviderRetry(endpoint string) {
	providerRetries.WithLabelValues(endpoint).Inc()
}

func ObserveProviderDuration(endpoint string, seconds float64) {
	providerDuration.WithLabelValues(endpoint).Observe(seconds)
}

func IncBookingTypeCache(result string) {
	bookingTypeCache.WithLabelValues(result).Inc()
}

func IncTypeSkipped(reason string) {
	typesSkipped.WithLabelValues(reason).Inc()
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}
