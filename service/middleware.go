package service

import (
	"net/http"
	"time"

	"github.com/urfave/negroni"

	"github.com/kava-labs/kava-dev-proxy/logging"
)

// createRequestLoggingMiddleware returns negroni middleware that logs every
// request served, proxied or not, to the service log once it completes
func createRequestLoggingMiddleware(serviceLogger *logging.ServiceLogger) negroni.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		start := time.Now()

		next(w, r)

		// negroni wraps the writer before calling middleware
		lrw, ok := w.(negroni.ResponseWriter)
		if !ok {
			return
		}

		serviceLogger.Debug().
			Str("method", r.Method).
			Str("uri", r.URL.RequestURI()).
			Str("exchange_id", lrw.Header().Get(ExchangeIDHeader)).
			Int("status", lrw.Status()).
			Int("bytes", lrw.Size()).
			Dur("duration", time.Since(start)).
			Msg("request served")
	}
}

// createRecoveryMiddleware returns negroni middleware that turns a panic in
// a handler into a 500 and an error log line instead of a dropped connection
func createRecoveryMiddleware(serviceLogger *logging.ServiceLogger) negroni.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			// the reverse proxy aborts broken responses this way, let the server drop the connection
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			serviceLogger.Error().
				Interface("panic", recovered).
				Str("method", r.Method).
				Str("uri", r.URL.RequestURI()).
				Msg("handler panicked")

			w.WriteHeader(http.StatusInternalServerError)
		}()

		next(w, r)
	}
}
