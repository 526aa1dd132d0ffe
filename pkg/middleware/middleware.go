// Package middleware wraps the resolver API with request ids, access logs,
// CORS, password auth and panic recovery.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"m3u8-resolver/pkg/config"
	"m3u8-resolver/pkg/logging"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
	// PasswordHeader is the header alternative to the api_password query.
	PasswordHeader = "X-API-Password"
)

// Middleware decorates a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so that the first one is outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequestID keeps an incoming request id or assigns a fresh one, and echoes
// it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// Logging writes one access line per request, at a level that follows the
// status class. Handlers find the request logger in the context.
func Logging(log *logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			reqLog := log.RequestLogger(r.Method, r.URL.Path, r.RemoteAddr, r.Header.Get(RequestIDHeader))

			next.ServeHTTP(rec, r.WithContext(reqLog.WithContext(r.Context())))

			done := reqLog.WithDuration(time.Since(start))
			args := []any{"status", rec.status, "bytes", rec.written}
			switch {
			case rec.status >= http.StatusInternalServerError:
				done.Error("request failed", args...)
			case rec.status >= http.StatusBadRequest:
				done.Warn("request rejected", args...)
			default:
				done.Info("request served", args...)
			}
		})
	}
}

// CORS opens the read-only API to browser players on any origin.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		h.Set("Access-Control-Allow-Headers", PasswordHeader+", "+RequestIDHeader)
		h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		h.Set("Cache-Control", "no-store")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Auth requires cfg.APIPassword on every non-public path when one is set.
func Auth(cfg *config.Config, log *logging.Logger) Middleware {
	want := []byte(cfg.APIPassword)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(want) == 0 || isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			given := r.Header.Get(PasswordHeader)
			if given == "" {
				given = r.URL.Query().Get("api_password")
			}
			if subtle.ConstantTimeCompare([]byte(given), want) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn("api password rejected", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			writeProblem(w, http.StatusUnauthorized, "auth", "api password required")
		})
	}
}

// Recovery turns a handler panic into a 500 JSON response.
func Recovery(log *logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					log.Error("handler panic",
						"panic", v,
						"method", r.Method,
						"path", r.URL.Path,
						"request_id", r.Header.Get(RequestIDHeader),
					)
					writeProblem(w, http.StatusInternalServerError, "internal", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// writeProblem matches the error body shape of the API handlers.
func writeProblem(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg, "kind": kind})
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}

func isPublic(path string) bool {
	return path == "/" || path == "/health"
}
