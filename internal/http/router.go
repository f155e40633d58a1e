package httpapi

import (
	"expvar"
	"net/http"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", app.listEventsHandler)
	mux.HandleFunc("GET /events/{eventID}", app.getEventHandler)
	mux.HandleFunc("GET /events/{eventID}/seats", app.listSeatsHandler)
	mux.HandleFunc("POST /events/{eventID}/holds", app.reserveHandler)
	mux.HandleFunc("DELETE /events/{eventID}/holds/{seat}", app.cancelHoldHandler)
	mux.HandleFunc("POST /events/{eventID}/purchases", app.purchaseHandler)
	mux.HandleFunc("GET /bookings", app.bookingsHandler)
	mux.HandleFunc("GET /healthz", app.healthHandler)
	mux.HandleFunc("GET /debug/metrics", app.metricsHandler)
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("GET /openapi.yaml", app.openapiHandler)
	mux.HandleFunc("GET /docs", app.docsHandler)
	return WithRequestID(WithLogging(mux))
}
