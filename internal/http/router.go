package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// NewRouter wires the widget page, the JSON API, health and metrics.
// requestTimeout bounds how long POST / and POST /api/submit?wait=true wait
// for a lookup to settle.
func NewRouter(h *Handler, logger *zap.Logger, requestTimeout time.Duration) *mux.Router {
	waiting := TimeoutMiddleware(requestTimeout)

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	router.HandleFunc("/", h.GetPage).Methods("GET")
	router.Handle("/", waiting(http.HandlerFunc(h.PostPage))).Methods("POST")
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/view", h.GetView).Methods("GET")
	api.HandleFunc("/query", h.PutQuery).Methods("PUT")
	api.Handle("/submit", waiting(http.HandlerFunc(h.PostSubmit))).Methods("POST")

	return router
}
