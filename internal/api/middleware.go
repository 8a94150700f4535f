package api

import (
	"net/http"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/logger"
)

const internalServerError = "internal server error"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Logger.Infow("request",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldStatus, rec.status,
			logger.FieldDuration, time.Since(start).Milliseconds())
	})
}

// RecoveryMiddleware turns a handler panic into a 500.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Logger.Errorw("panic in handler",
					logger.FieldPath, r.URL.Path,
					logger.FieldError, err)
				writeError(w, http.StatusInternalServerError, internalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
