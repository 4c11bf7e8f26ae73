package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nereus-labs/nautilus-go/internal/platform/requestid"
)

const RequestIDHeader = "X-Request-Id"

// recorder remembers what a handler answered so the access log can report
// it after the fact.
type recorder struct {
	http.ResponseWriter
	status    int
	bytes     int64
	errorCode string
	engine    string
}

func (rw *recorder) WriteHeader(status int) {
	if rw.status == 0 {
		rw.status = status
	}
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *recorder) Write(p []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += int64(n)
	return n, err
}

func (rw *recorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// noteError tags the current response with an error code for the access log.
func noteError(w http.ResponseWriter, code, engine string) {
	for {
		switch v := w.(type) {
		case *recorder:
			v.errorCode = code
			v.engine = engine
			return
		case interface{ Unwrap() http.ResponseWriter }:
			w = v.Unwrap()
		default:
			return
		}
	}
}

// Wrap returns next behind the request id, recovery and access log layer.
func Wrap(logger *slog.Logger, service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			newID, err := requestid.New()
			if err != nil {
				newID = fmt.Sprintf("%s-%d", service, time.Now().UnixNano())
			}
			id = newID
		}
		r.Header.Set(RequestIDHeader, id)
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(requestid.WithContext(r.Context(), id))

		rw := &recorder{ResponseWriter: w}
		defer func() {
			if v := recover(); v != nil {
				logger.Error("panic recovered", "request_id", id, "path", r.URL.Path, "panic", v)
				if rw.status == 0 {
					WriteError(rw, r, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}
			logRequest(logger, r, rw, id, time.Since(start))
		}()
		next.ServeHTTP(rw, r)
	})
}

func logRequest(logger *slog.Logger, r *http.Request, rw *recorder, id string, elapsed time.Duration) {
	status := rw.status
	if status == 0 {
		status = http.StatusOK
	}
	attrs := []any{
		"request_id", id,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"bytes", rw.bytes,
		"duration_ms", elapsed.Milliseconds(),
	}
	if rw.errorCode != "" {
		attrs = append(attrs, "error", rw.errorCode)
	}
	if rw.engine != "" {
		attrs = append(attrs, "engine", rw.engine)
	}
	switch {
	case status >= 500:
		logger.Error("http request", attrs...)
	case status >= 400:
		logger.Warn("http request", attrs...)
	default:
		logger.Info("http request", attrs...)
	}
}

// RequestID returns the id Wrap assigned to r.
func RequestID(r *http.Request) string {
	id, _ := requestid.FromContext(r.Context())
	return id
}
