package util

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// responseMeter records what the handler actually sent.
type responseMeter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeter) WriteHeader(statusCode int) {
	if m.status == 0 {
		m.status = statusCode
	}
	m.ResponseWriter.WriteHeader(statusCode)
}

func (m *responseMeter) Write(p []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(p)
	m.bytes += n
	return n, err
}

const slowRequestThreshold = 2 * time.Second

// WithRequestLog emits one structured log line per HTTP request using
// the request-scoped logger, so request_id rides along automatically.
// Server errors and slow requests are logged at Warn.
func WithRequestLog(service string, next http.Handler) http.Handler {
	service = strings.TrimSpace(service)
	if service == "" {
		service = "unknown"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		meter := &responseMeter{ResponseWriter: w}
		next.ServeHTTP(meter, r)

		status := meter.status
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError || elapsed >= slowRequestThreshold {
			level = slog.LevelWarn
		}
		LoggerFromContext(r.Context()).Log(r.Context(), level,
			"http_request",
			"service", service,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", meter.bytes,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}
