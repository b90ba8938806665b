package logutil

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type (
	key byte

	statusRecorder struct {
		http.ResponseWriter
		status int
	}
)

var (
	loggerKey = key(1)
)

func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func GetOrDefault(ctx context.Context) zerolog.Logger {
	v := ctx.Value(loggerKey)
	if v == nil {
		return log.Logger
	}
	return v.(zerolog.Logger)
}

// Requests attaches a request scoped logger to every request and logs
// the request once the handler returns.
func Requests(ctx context.Context, next http.Handler) http.Handler {
	base := GetOrDefault(ctx)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLog := base.With().Str("request.id", uuid.NewString()).Logger()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(WithLogger(r.Context(), reqLog)))
		ev := reqLog.Info()
		if rec.status >= http.StatusInternalServerError {
			ev = reqLog.Warn()
		}
		ev.Str("http.method", r.Method).
			Str("http.path", r.URL.Path).
			Int("http.status", rec.status).
			Dur("http.duration", time.Since(start)).
			Msg("Request served")
	})
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, the
// storefront proxy needs it to flush streamed responses.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
