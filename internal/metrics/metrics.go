// Package metrics exposes Prometheus collectors for the API.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "rescueboard/internal/errors"
)

var (
	// HTTPRequests counts requests by route template and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rescue_http_requests_total",
		Help: "Total HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	// HTTPLatency records request latency by route template.
	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rescue_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// FoodsPosted counts successfully created listings.
	FoodsPosted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rescue_foods_posted_total",
		Help: "Total food listings posted",
	})

	// FoodClaims counts claim attempts by outcome.
	FoodClaims = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rescue_food_claims_total",
		Help: "Total claim attempts by result",
	}, []string{"result"})

	// FoodsDeleted counts listings removed by admins.
	FoodsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rescue_foods_deleted_total",
		Help: "Total food listings deleted",
	})

	// FoodsExpired counts listings moved to expired by the sweeper.
	FoodsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rescue_foods_expired_total",
		Help: "Total food listings expired",
	})

	// BlobDeleteFailures counts image deletions that failed and were skipped.
	BlobDeleteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rescue_blob_delete_failures_total",
		Help: "Image deletions that failed during food removal",
	})
)

// Claim results.
const (
	ClaimOK        = "ok"
	ClaimConflict  = "conflict"
	ClaimForbidden = "forbidden"
	ClaimNotFound  = "not_found"
)

// Middleware records request counts and latency per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status, _ = apperrors.MapErrorToHTTP(err)
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			HTTPLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
