// logging.go — slog middleware для журналирования HTTP-запросов.
// Пути логируются после NormalizePath: публичный токен — bearer-секрет
// и не должен утекать в журнал.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestLogger возвращает middleware, записывающее каждый HTTP-запрос.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	requestLogger := logger.With(slog.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			requestLogger.Info("HTTP-запрос обработан",
				slog.String("method", r.Method),
				slog.String("path", NormalizePath(r.URL.Path)),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
