package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/etnz/cryptofolio/common"
	"github.com/google/uuid"
)

// exchange is what the middleware chain learns about one API call.
type exchange struct {
	id        string // correlation id
	operation string // tracker operation served, empty for unknown routes
	status    int
	size      int
}

type exchangeKey struct{}

// exchangeOf returns the exchange of r, never nil.
func exchangeOf(r *http.Request) *exchange {
	if x, ok := r.Context().Value(exchangeKey{}).(*exchange); ok {
		return x
	}
	return &exchange{}
}

// recorder records the status and size of the answer in its exchange.
type recorder struct {
	http.ResponseWriter
	x *exchange
}

func (w *recorder) WriteHeader(code int) {
	w.x.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *recorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.x.size += n
	return n, err
}

// operation names the tracker operation a route serves, for the access log.
func operation(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exchangeOf(r).operation = name
		h(w, r)
	}
}

// recoveryMiddleware turns a handler panic into a 500.
func recoveryMiddleware(logger *common.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					x := exchangeOf(r)
					logger.Error().
						Str("panic", fmt.Sprint(rec)).
						Str("operation", x.operation).
						Str("correlation_id", x.id).
						Msg("portfolio handler panicked")
					WriteError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware lets the web frontend call the API from another origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-Correlation-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accessMiddleware starts the exchange of every call: it picks the caller's
// correlation id or makes one, and logs the tracker operation once answered.
// Reads are logged at debug, rejected calls at info and failures at error.
func accessMiddleware(logger *common.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			x := &exchange{id: r.Header.Get("X-Request-ID"), status: http.StatusOK}
			if x.id == "" {
				x.id = r.Header.Get("X-Correlation-ID")
			}
			if x.id == "" {
				x.id = uuid.New().String()[:8]
			}
			w.Header().Set("X-Correlation-ID", x.id)

			start := time.Now()
			next.ServeHTTP(&recorder{ResponseWriter: w, x: x}, r.WithContext(context.WithValue(r.Context(), exchangeKey{}, x)))

			event := logger.Debug()
			switch {
			case x.status >= 500:
				event = logger.Error()
			case x.status >= 400:
				event = logger.Info()
			case r.Method == http.MethodPost:
				event = logger.Info()
			}
			op := x.operation
			if op == "" {
				op = "unknown"
			}
			event.
				Str("operation", op).
				Str("method", r.Method).
				Str("query", r.URL.RawQuery).
				Int("status", x.status).
				Int("bytes", x.size).
				Dur("elapsed", time.Since(start)).
				Str("correlation_id", x.id).
				Msg("portfolio api call")
		})
	}
}

// applyMiddleware wraps handler, outermost first: recovery, CORS, access log.
func applyMiddleware(handler http.Handler, logger *common.Logger) http.Handler {
	handler = accessMiddleware(logger)(handler)
	handler = corsMiddleware(handler)
	return recoveryMiddleware(logger)(handler)
}
