package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/crumbway/crumbway/internal/metrics"
)

var contextKeyUpstream = contextKey("upstream")

type LoggingMiddleware struct {
	logger *slog.Logger
	next   http.Handler
}

func WithLoggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return &LoggingMiddleware{
		logger: logger,
		next:   next,
	}
}

func (h *LoggingMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writer := newLoggerResponseWriter(w)

	var upstream string
	ctx := context.WithValue(r.Context(), contextKeyUpstream, &upstream)
	r = r.WithContext(ctx)

	started := time.Now()
	h.next.ServeHTTP(writer, r)
	elapsed := time.Since(started)

	userAgent := r.Header.Get("User-Agent")
	respContent := writer.Header().Get("Content-Type")
	remoteAddr := r.Header.Get("X-Forwarded-For")
	requestID := r.Header.Get("X-Request-ID")
	if remoteAddr == "" {
		remoteAddr = r.RemoteAddr
	}

	metrics.Tracker.TrackRequest(r.Method, writer.statusCode, elapsed)

	h.logger.LogAttrs(nil, slog.LevelInfo, "Request",
		slog.String("host", r.Host),
		slog.String("path", r.URL.Path),
		slog.String("upstream", upstream),
		slog.String("request_id", requestID),
		slog.Int("status", writer.statusCode),
		slog.Int64("duration", elapsed.Nanoseconds()),
		slog.String("method", r.Method),
		slog.Int64("resp_content_length", writer.bytesWritten),
		slog.String("resp_content_type", respContent),
		slog.String("remote_addr", remoteAddr),
		slog.String("user_agent", userAgent),
		slog.String("query", r.URL.RawQuery),
	)
}

// setLoggedUpstream records the decoded upstream URL for the access log
// entry of the current request.
func setLoggedUpstream(ctx context.Context, upstream string) {
	if value, ok := ctx.Value(contextKeyUpstream).(*string); ok {
		*value = upstream
	}
}

type loggerResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func newLoggerResponseWriter(w http.ResponseWriter) *loggerResponseWriter {
	return &loggerResponseWriter{w, http.StatusOK, 0}
}

// WriteHeader is used to capture the status code
func (r *loggerResponseWriter) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Write is used to capture the amount of data written
func (r *loggerResponseWriter) Write(b []byte) (int, error) {
	bytesWritten, err := r.ResponseWriter.Write(b)
	r.bytesWritten += int64(bytesWritten)
	return bytesWritten, err
}

func (r *loggerResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("ResponseWriter does not implement http.Hijacker")
	}

	con, rw, err := hijacker.Hijack()
	if err == nil {
		r.statusCode = http.StatusSwitchingProtocols
	}
	return con, rw, err
}

func (r *loggerResponseWriter) Flush() {
	flusher, ok := r.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
