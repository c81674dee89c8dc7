// metrics.go — Prometheus HTTP метрики для Pro Forma Module.
// Регистрирует метрики: pf_http_requests_total, pf_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pf_http_requests_total",
			Help: "Общее количество HTTP-запросов к Pro Forma Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pf_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Pro Forma Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов: токены и UUID в пути схлопываются
			// в {token}/{id} — и против роста кардинальности, и чтобы
			// публичный токен (bearer-секрет) не попал в метрики
			normalizedPath := NormalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// NormalizePath маскирует динамические сегменты пути.
// /pro-forma-request/a1b2... → /pro-forma-request/{token} — токен
// является bearer-секретом и не должен появляться ни в метриках, ни в логах.
// /api/v1/pro-forma-requests/<uuid>[/resolve|/decline] → .../{id}[/...].
func NormalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/pro-forma-requests":
		return path
	}

	const publicPrefix = "/pro-forma-request/"
	if strings.HasPrefix(path, publicPrefix) {
		return publicPrefix + "{token}"
	}

	const apiPrefix = "/api/v1/pro-forma-requests/"
	if len(path) > len(apiPrefix) && strings.HasPrefix(path, apiPrefix) {
		suffix := ""
		// Суффиксы после UUID (36 символов)
		if len(path) > len(apiPrefix)+36 {
			suffix = path[len(apiPrefix)+36:]
		}
		switch suffix {
		case "/resolve":
			return apiPrefix + "{id}/resolve"
		case "/decline":
			return apiPrefix + "{id}/decline"
		default:
			return apiPrefix + "{id}"
		}
	}

	return path
}
