// Package api exposes extraction, evaluation, scoring and monitoring over
// HTTP. Datasets travel as CSV text inside JSON bodies.
package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes registers every endpoint on a new router.
func SetupRoutes(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.HandleFunc("/healthz", h.Health).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/extract", h.Extract).Methods("POST")
	v1.HandleFunc("/run", h.Run).Methods("POST")
	v1.HandleFunc("/clean", h.Clean).Methods("POST")
	v1.HandleFunc("/score", h.Score).Methods("POST")
	v1.HandleFunc("/snapshots", h.CreateSnapshot).Methods("POST")
	v1.HandleFunc("/snapshots", h.ListSnapshots).Methods("GET")
	v1.HandleFunc("/analyze", h.Analyze).Methods("POST")

	return r
}
