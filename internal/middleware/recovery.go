package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mcoot/chessgame-go/internal/metrics"
)

// PanicHandler writes the response for a request whose handler panicked
type PanicHandler func(w http.ResponseWriter, r *http.Request, err any)

// Recovered logs a panic caught on surface along with its stack and counts
// it. The game server calls it for protocol frames, Recovery for HTTP.
func Recovered(logger *slog.Logger, surface string, err any, attrs ...slog.Attr) {
	metrics.PanicRecovered(surface)

	args := []any{
		slog.String("surface", surface),
		slog.Any("error", err),
		slog.String("stack", string(debug.Stack())),
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	logger.Error("panic recovered", args...)
}

// Recovery turns an HTTP handler panic into a logged error and the response
// written by handler
func Recovery(logger *slog.Logger, handler PanicHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					Recovered(logger, "http", err,
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path))
					handler(w, r, err)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
