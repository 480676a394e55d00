package api

import (
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/phonecam/internal/logging"
)

// HTTPLoggingMiddleware logs HTTP requests with appropriate log levels based on status codes.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	// Extract request information
	method := ctx.Method()
	path := ctx.URL().Path
	query := ctx.URL().RawQuery
	userAgent := ctx.Header("User-Agent")
	remoteAddr := ctx.RemoteAddr()

	// Build base log attributes
	logAttrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("remote_addr", remoteAddr),
	}

	if query != "" {
		logAttrs = append(logAttrs, slog.String("query", query))
	}

	if userAgent != "" {
		logAttrs = append(logAttrs, slog.String("user_agent", userAgent))
	}

	// Call the next handler
	next(ctx)

	// Calculate duration and get response details
	duration := time.Since(start)
	status := ctx.Status()

	// Add response attributes
	logAttrs = append(logAttrs,
		slog.Int("status", status),
		slog.Duration("duration", duration),
	)

	logger.LogAttrs(ctx.Context(), requestLevel(method, path, status), "HTTP request completed", logAttrs...)
}

// requestLevel picks the log level for a finished request. Preflights and
// health probes are noisy and only logged at debug.
func requestLevel(method, path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case method == "OPTIONS", path == "/api/health":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
