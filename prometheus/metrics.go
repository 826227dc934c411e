package prometheus

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Auth metrics
	LoginCounter        prometheus.Counter
	RegisterCounter     prometheus.Counter
	RefreshCounter      prometheus.Counter
	LogoutCounter       prometheus.Counter
	AuthErrorCounter    *prometheus.CounterVec
	TokensIssuedCounter *prometheus.CounterVec

	// Database operation metrics
	DBOperationHistogram *prometheus.HistogramVec

	// Domain metrics
	QuotesCreatedCounter    *prometheus.CounterVec
	QuoteTransitionCounter  *prometheus.CounterVec
	HoursTrackedCounter     prometheus.Counter
	IntegrationCallsCounter *prometheus.CounterVec

	// Outbox metrics
	WebhookDeliveryCounter *prometheus.CounterVec
	OutboxQueueDepth       prometheus.Gauge

	// Request metrics
	RequestDurationHistogram *prometheus.HistogramVec
	APIRequestCounter        *prometheus.CounterVec
	APIErrorCounter          *prometheus.CounterVec

	initOnce sync.Once
)

// InitMetrics registers all collectors under the given namespace. Only the
// first call has an effect.
func InitMetrics(namespace string) {
	initOnce.Do(func() {
		LoginCounter = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_total",
			Help:      "Total number of login attempts",
		})

		RegisterCounter = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "register_total",
			Help:      "Total number of registration attempts",
		})

		RefreshCounter = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Total number of access token refresh attempts",
		})

		LogoutCounter = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logout_total",
			Help:      "Total number of logouts",
		})

		AuthErrorCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_errors_total",
				Help:      "Total number of authentication errors",
			},
			[]string{"reason"},
		)

		TokensIssuedCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_issued_total",
				Help:      "Total number of tokens issued",
			},
			[]string{"token_type"},
		)

		DBOperationHistogram = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_operation_duration_seconds",
				Help:      "Duration of database operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		)

		QuotesCreatedCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quotes_created_total",
				Help:      "Total number of quotes created",
			},
			[]string{"source"},
		)

		QuoteTransitionCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_status_transitions_total",
				Help:      "Total number of quote status changes by target status",
			},
			[]string{"status"},
		)

		HoursTrackedCounter = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hours_tracked_total",
			Help:      "Total number of hours logged through time entries",
		})

		IntegrationCallsCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "integration_calls_total",
				Help:      "Total number of outbound integration calls",
			},
			[]string{"integration", "operation", "result"},
		)

		WebhookDeliveryCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_deliveries_total",
				Help:      "Total number of outbox deliveries by final result",
			},
			[]string{"job", "result"},
		)

		OutboxQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_queue_depth",
			Help:      "Number of jobs waiting in the outbox queue",
		})

		RequestDurationHistogram = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)

		APIRequestCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "path"},
		)

		APIErrorCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors",
			},
			[]string{"method", "path", "status"},
		)
	})
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if APIRequestCounter == nil {
				return next(c)
			}
			start := time.Now()

			APIRequestCounter.With(prometheus.Labels{
				"method": c.Request().Method,
				"path":   c.Path(),
			}).Inc()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			RequestDurationHistogram.With(prometheus.Labels{
				"method": c.Request().Method,
				"path":   c.Path(),
				"status": status,
			}).Observe(time.Since(start).Seconds())

			if c.Response().Status >= 400 {
				APIErrorCounter.With(prometheus.Labels{
					"method": c.Request().Method,
					"path":   c.Path(),
					"status": status,
				}).Inc()
			}

			return nil
		}
	}
}

// HandlerFunc returns a HTTP handler for metrics endpoint
func HandlerFunc() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// TrackDBOperation returns a function that tracks database operation duration
func TrackDBOperation(operation string) func(time.Time) {
	return func(startTime time.Time) {
		if DBOperationHistogram == nil {
			return
		}
		DBOperationHistogram.With(prometheus.Labels{
			"operation": operation,
		}).Observe(time.Since(startTime).Seconds())
	}
}

// RecordAuthAttempt increments the counter of the given auth operation:
// login, register, refresh or logout.
func RecordAuthAttempt(operation string) {
	var counter prometheus.Counter
	switch operation {
	case "login":
		counter = LoginCounter
	case "register":
		counter = RegisterCounter
	case "refresh":
		counter = RefreshCounter
	case "logout":
		counter = LogoutCounter
	}
	if counter != nil {
		counter.Inc()
	}
}

// RecordAuthError increments the auth error counter
func RecordAuthError(reason string) {
	if AuthErrorCounter != nil {
		AuthErrorCounter.WithLabelValues(reason).Inc()
	}
}

// RecordTokenIssued increments the tokens issued counter
func RecordTokenIssued(tokenType string) {
	if TokensIssuedCounter != nil {
		TokensIssuedCounter.WithLabelValues(tokenType).Inc()
	}
}

// RecordQuoteCreated increments the created quotes counter
func RecordQuoteCreated(source string) {
	if QuotesCreatedCounter != nil {
		QuotesCreatedCounter.WithLabelValues(source).Inc()
	}
}

// RecordQuoteTransition increments the quote transition counter
func RecordQuoteTransition(status string) {
	if QuoteTransitionCounter != nil {
		QuoteTransitionCounter.WithLabelValues(status).Inc()
	}
}

// RecordHoursTracked adds logged hours
func RecordHoursTracked(hours float64) {
	if HoursTrackedCounter != nil && hours > 0 {
		HoursTrackedCounter.Add(hours)
	}
}

// RecordIntegrationCall increments the integration call counter
func RecordIntegrationCall(integration, operation string, err error) {
	if IntegrationCallsCounter == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	IntegrationCallsCounter.WithLabelValues(integration, operation, result).Inc()
}

// RecordWebhookDelivery increments the outbox delivery counter
func RecordWebhookDelivery(job, result string) {
	if WebhookDeliveryCounter != nil {
		WebhookDeliveryCounter.WithLabelValues(job, result).Inc()
	}
}

// SetOutboxQueueDepth sets the outbox queue depth gauge
func SetOutboxQueueDepth(depth int) {
	if OutboxQueueDepth != nil {
		OutboxQueueDepth.Set(float64(depth))
	}
}
