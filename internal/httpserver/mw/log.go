package mw

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/satchelhq/satchel/internal/logger"
)

// statusWriter captures status code and bytes written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	// Ensure status is set if handler wrote body without calling WriteHeader.
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// logState is planted by Log and filled in by downstream middleware,
// the same way chi's LogEntry works. Only the request goroutine
// touches it.
type logState struct {
	userID string
}

// MarkUser tags the access log line for this request with a user ID.
func MarkUser(ctx context.Context, userID string) {
	if st, ok := ctx.Value(logStateKey).(*logState); ok {
		st.userID = userID
	}
}

// Log returns a middleware that logs one line per HTTP request. The
// line carries the user ID when the request was authenticated.
func Log(loggerClient logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w}
			st := &logState{}
			r = r.WithContext(context.WithValue(r.Context(), logStateKey, st))

			next.ServeHTTP(ww, r)

			fields := []logger.Field{
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.status),
				logger.Int("bytes", ww.bytes),
				logger.Duration("duration", time.Since(start)),
				logger.String("remote_ip", r.RemoteAddr),
				logger.String("user_agent", r.UserAgent()),
				logger.String("request_id", middleware.GetReqID(r.Context())),
			}
			if st.userID != "" {
				fields = append(fields, logger.String("user_id", st.userID))
			}
			loggerClient.Info("http_request", fields...)
		})
	}
}
