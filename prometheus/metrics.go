package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agendacerto/pkg/config"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agenda_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Signup counters
	SignupCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agenda_signup_total",
			Help: "Total number of signups",
		},
	)

	// Empresa operation counter
	EmpresaOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_empresa_operations_total",
			Help: "Total number of empresa operations",
		},
		[]string{"operation"}, // operation can be "create", "access", "update", etc.
	)

	// Google OAuth operation counter
	GoogleOAuthCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_google_oauth_total",
			Help: "Total number of Google OAuth operations",
		},
		[]string{"operation"}, // "initiate", "exchange", "refresh", "disconnect"
	)

	// Token refresh outcome counter
	TokenRefreshCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_token_refresh_total",
			Help: "Total number of Google token refresh attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	// Calendar fetch counter
	CalendarFetchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_calendar_fetch_total",
			Help: "Total number of calendar event fetches",
		},
		[]string{"scope"}, // "single", "all", "public"
	)

	// Share token counter
	ShareTokenCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_share_tokens_total",
			Help: "Total number of share token operations",
		},
		[]string{"operation"}, // "mint", "validate", "revoke", "expired"
	)

	// Provisioning counter
	ProvisionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_provision_total",
			Help: "Total number of workflow provisioning runs by outcome",
		},
		[]string{"outcome"}, // "created", "reused", "activated", "error", "in_progress"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "login_failure", "invalid_token", "db_error" etc.
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agenda_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agenda_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)

	// Upstream call duration (Google, n8n)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agenda_upstream_duration_seconds",
			Help:    "Duration of upstream API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream"}, // "google", "n8n"
	)
)

// Gauge metrics
var (
	// Active share tokens
	ActiveShareTokensGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agenda_active_share_tokens",
			Help: "Number of currently outstanding public share tokens",
		},
	)

	// Connected empresas
	ConnectedEmpresasGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agenda_connected_empresas",
			Help: "Number of empresas with a Google connection",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agenda_info",
			Help: "Information about the AgendaCerto service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(SignupCounter)
	prometheus.MustRegister(EmpresaOperationCounter)
	prometheus.MustRegister(GoogleOAuthCounter)
	prometheus.MustRegister(TokenRefreshCounter)
	prometheus.MustRegister(CalendarFetchCounter)
	prometheus.MustRegister(ShareTokenCounter)
	prometheus.MustRegister(ProvisionCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(UpstreamDuration)

	// Register gauges
	prometheus.MustRegister(ActiveShareTokensGauge)
	prometheus.MustRegister(ConnectedEmpresasGauge)
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// InitMetrics applies metric configuration
func InitMetrics(cfg *config.Config) {
	// Prefix is fixed at registration time; config hook kept for parity
	_ = cfg
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware records request counts and durations per endpoint
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			labels := prometheus.Labels{
				"endpoint": c.Path(),
				"method":   c.Request().Method,
				"status":   strconv.Itoa(status),
			}
			HTTPRequestCounter.With(labels).Inc()
			RequestDuration.With(labels).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// TrackDBOperation measures database operation durations:
// defer TrackDBOperation("query")(time.Now())
func TrackDBOperation(operation string) func(time.Time) {
	return func(start time.Time) {
		DBOperationDuration.With(prometheus.Labels{"operation": operation}).Observe(time.Since(start).Seconds())
	}
}

// TrackUpstream measures upstream call durations
func TrackUpstream(upstream string) func(time.Time) {
	return func(start time.Time) {
		UpstreamDuration.With(prometheus.Labels{"upstream": upstream}).Observe(time.Since(start).Seconds())
	}
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordEmpresaOperation records an empresa operation
func RecordEmpresaOperation(operation string) {
	EmpresaOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordGoogleOAuth records a Google OAuth operation
func RecordGoogleOAuth(operation string) {
	GoogleOAuthCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordTokenRefresh records a token refresh outcome
func RecordTokenRefresh(outcome string) {
	TokenRefreshCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordCalendarFetch records a calendar fetch by scope
func RecordCalendarFetch(scope string) {
	CalendarFetchCounter.With(prometheus.Labels{"scope": scope}).Inc()
}

// RecordShareToken records a share token operation
func RecordShareToken(operation string) {
	ShareTokenCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordProvision records a provisioning outcome
func RecordProvision(outcome string) {
	ProvisionCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}
