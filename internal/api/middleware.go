package api

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the id attached to ctx by the request middleware, or
// an empty string.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// newRouter returns a router carrying the middleware shared by every
// listener.
func (s *Server) newRouter(listener string) chi.Router {
	r := chi.NewRouter()
	r.Use(tagRequest, s.observe(listener))
	return r
}

// tagRequest reuses the caller's X-Request-ID or mints one.
func tagRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// observe logs and counts each request once it completes, and answers a
// handler panic with a 500. A WebSocket request completes when its
// connection ends.
func (s *Server) observe(listener string) func(http.Handler) http.Handler {
	requests := s.hub.Metrics().HTTPRequests
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				if p := recover(); p != nil {
					s.logger.Error("panic recovered in HTTP handler",
						"listener", listener,
						"path", r.URL.Path,
						"panic", p,
						"request_id", RequestID(r.Context()),
					)
					if !rec.written {
						writeError(rec, http.StatusInternalServerError, codeInternal, "internal server error")
					}
				}
				requests.WithLabelValues(listener, strconv.Itoa(rec.status)).Inc()
				s.logger.Debug("http request",
					"listener", listener,
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", RequestID(r.Context()),
				)
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// statusRecorder remembers the response status. It passes Hijack through
// so WebSocket upgrades work behind it.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusRecorder) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, ErrHijackUnsupported
	}
	w.status = http.StatusSwitchingProtocols
	w.written = true
	return h.Hijack()
}
