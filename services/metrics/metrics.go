package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atlportal/backend/core/school"
)

const namespace = "atlportal"

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// school roles
	RoleResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_resolutions_total",
			Help:      "Total number of committed school role resolutions",
		},
		[]string{"role", "decision"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, RequestDuration, RoleResolutions)
}

// Handler serves the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Recorder counts role resolutions.
type Recorder struct {
	resolutions *prometheus.CounterVec
}

var _ school.Recorder = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{resolutions: RoleResolutions}
}

func (r *Recorder) RecordResolution(role, decision string) {
	r.resolutions.WithLabelValues(role, decision).Inc()
}

// Middleware observes every request handled by the echo router.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			RequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			RequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
