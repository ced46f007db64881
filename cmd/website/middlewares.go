package main

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/adampresley/adamgokit/mux"
	"github.com/adampresley/photogallery/cmd/website/internal/apiresponses"
	"github.com/adampresley/photogallery/pkg/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_http_requests_total",
			Help: "HTTP requests by route and status code.",
		},
		[]string{"route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	defaultImageOrigin = "https://imagedelivery.net"
)

/*
newUploadAuthMiddleware only lets a request through when it carries the
service token or a gateway identity. The outcome is stored on the request
context for handlers that want to log who called.
*/
func newUploadAuthMiddleware(authService services.AuthorizationServicer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := authService.Authorize(r)

			if !auth.Authorized {
				apiresponses.WriteErrorMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := services.WithAuthorization(r.Context(), auth)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

/*
newSecurityHeadersMiddleware sets the browser hardening headers. Images are
allowed from the origin of the configured delivery base URL.
*/
func newSecurityHeadersMiddleware(imageDeliveryBaseURL string) func(http.Handler) http.Handler {
	csp := contentSecurityPolicy(imageDeliveryBaseURL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")

			next.ServeHTTP(w, r)
		})
	}
}

func contentSecurityPolicy(imageDeliveryBaseURL string) string {
	imageOrigin := defaultImageOrigin

	if u, err := url.Parse(imageDeliveryBaseURL); err == nil && u.Scheme != "" && u.Host != "" {
		imageOrigin = u.Scheme + "://" + u.Host
	}

	return "default-src 'self'; img-src 'self' data: " + imageOrigin + "; " +
		"connect-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; " +
		"font-src 'self' https://fonts.gstatic.com; frame-ancestors 'none'"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func newMetricsMiddleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}

/*
withCommonMiddlewares puts metrics and security headers in front of every
route's own middlewares.
*/
func withCommonMiddlewares(routes []mux.Route, securityHeaders mux.MiddlewareFunc) []mux.Route {
	result := make([]mux.Route, 0, len(routes))

	for _, route := range routes {
		middlewares := []mux.MiddlewareFunc{
			newMetricsMiddleware(route.Path),
			securityHeaders,
		}

		route.Middlewares = append(middlewares, route.Middlewares...)
		result = append(result, route)
	}

	return result
}
