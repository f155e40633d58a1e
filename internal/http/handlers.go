package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/seat-reservation-service/internal/catalog"
	"github.com/fairyhunter13/seat-reservation-service/internal/config"
	httpopenapi "github.com/fairyhunter13/seat-reservation-service/internal/http/openapi"
	"github.com/fairyhunter13/seat-reservation-service/internal/hold"
	"github.com/fairyhunter13/seat-reservation-service/internal/inventory"
	"github.com/fairyhunter13/seat-reservation-service/internal/model"
	"github.com/fairyhunter13/seat-reservation-service/internal/obs"
)

type App struct {
	Cfg     config.Config
	Catalog *catalog.Catalog
	Holds   *hold.Scheduler
	closing atomic.Bool
	started time.Time
}

type seatsRequest struct {
	Seats []int `json:"seats"`
}

type reservationResponse struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	EventID   string    `json:"event_id"`
	HoldID    string    `json:"hold_id"`
	Seats     []int     `json:"seats"`
	ExpiresAt time.Time `json:"expires_at"`
}

type purchaseResult struct {
	Seat   int    `json:"seat"`
	Status string `json:"status"`
}

type purchaseResponse struct {
	RequestID string           `json:"request_id"`
	EventID   string           `json:"event_id"`
	Sold      int              `json:"sold"`
	Results   []purchaseResult `json:"results"`
}

func NewApp(cfg config.Config, c *catalog.Catalog, holds *hold.Scheduler) *App {
	return &App{Cfg: cfg, Catalog: c, Holds: holds, started: time.Now()}
}

// StartShutdown makes mutating endpoints answer 503.
func (a *App) StartShutdown() {
	a.closing.Store(true)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeSeats validates the content type and body of a mutating request.
// It writes the error response itself and reports whether to continue.
func (a *App) decodeSeats(w http.ResponseWriter, r *http.Request) (seatsRequest, bool) {
	var req seatsRequest
	if a.closing.Load() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return req, false
	}
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return req, false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return req, false
	}
	if req.Seats == nil {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "seats is required")
		return req, false
	}
	return req, true
}

// writeDomainError maps catalog and inventory errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	var unavailable *inventory.UnavailableError
	switch {
	case errors.Is(err, catalog.ErrEventNotFound):
		WriteJSONError(w, http.StatusNotFound, "event_not_found", "")
	case errors.Is(err, catalog.ErrNotReleased):
		WriteJSONError(w, http.StatusForbidden, "tickets_not_released", err.Error())
	case errors.Is(err, catalog.ErrInvalidTicketCount), errors.Is(err, inventory.ErrEmptySelection):
		WriteJSONError(w, http.StatusBadRequest, "invalid_ticket_count", err.Error())
	case errors.As(err, &unavailable):
		WriteJSONError(w, http.StatusConflict, "seats_unavailable", joinInts(unavailable.Seats))
	case errors.Is(err, inventory.ErrNoActiveReservation):
		WriteJSONError(w, http.StatusNotFound, "no_active_reservation", err.Error())
	default:
		obs.Logger.Error("unexpected_error", "error", err)
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func (a *App) listEventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Catalog.Events())
}

func (a *App) getEventHandler(w http.ResponseWriter, r *http.Request) {
	info, err := a.Catalog.Event(r.PathValue("eventID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *App) listSeatsHandler(w http.ResponseWriter, r *http.Request) {
	inv, err := a.Catalog.Inventory(r.PathValue("eventID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	q := r.URL.Query().Get("status")
	if q == "" {
		writeJSON(w, http.StatusOK, inv.Seats())
		return
	}
	st, ok := model.ParseSeatStatus(strings.ToLower(q))
	if !ok {
		WriteJSONError(w, http.StatusBadRequest, "invalid_status", "status must be free, held or sold")
		return
	}
	writeJSON(w, http.StatusOK, inv.SeatsWithStatus(st))
}

func (a *App) reserveHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeSeats(w, r)
	if !ok {
		return
	}
	eventID := r.PathValue("eventID")
	res, err := a.Catalog.Reserve(r.Context(), eventID, req.Seats)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := reservationResponse{
		Status:    "held",
		RequestID: RequestIDFromContext(r.Context()),
		EventID:   eventID,
		HoldID:    res.ID,
		Seats:     res.Seats,
		ExpiresAt: res.ExpiresAt.UTC(),
	}
	writeJSON(w, http.StatusCreated, resp)
	obs.Logger.Info("seats_held",
		"request_id", resp.RequestID,
		"event_id", eventID,
		"hold_id", res.ID,
		"seats", res.Seats,
		"expires_at", resp.ExpiresAt,
	)
}

func (a *App) purchaseHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeSeats(w, r)
	if !ok {
		return
	}
	if len(req.Seats) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "seats must not be empty")
		return
	}
	eventID := r.PathValue("eventID")
	out, err := a.Catalog.Purchase(r.Context(), eventID, req.Seats)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := purchaseResponse{
		RequestID: RequestIDFromContext(r.Context()),
		EventID:   eventID,
		Results:   make([]purchaseResult, 0, len(out)),
	}
	for _, o := range out {
		status := "sold"
		if o.Err != nil {
			status = "no_active_reservation"
		} else {
			resp.Sold++
		}
		resp.Results = append(resp.Results, purchaseResult{Seat: o.Seat, Status: status})
	}
	writeJSON(w, http.StatusOK, resp)
	obs.Logger.Info("purchase_completed",
		"request_id", resp.RequestID,
		"event_id", eventID,
		"requested", len(req.Seats),
		"sold", resp.Sold,
	)
}

func (a *App) cancelHoldHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	seat, err := strconv.Atoi(r.PathValue("seat"))
	if err != nil || seat < 1 {
		WriteJSONError(w, http.StatusBadRequest, "invalid_seat", "seat must be a positive integer")
		return
	}
	if err := a.Catalog.CancelHold(r.Context(), r.PathValue("eventID"), seat); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) bookingsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Catalog.Bookings())
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if a.closing.Load() {
		status = "shutting_down"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	armed, fired, cancelled, pending := a.Holds.Metrics()
	var free, held, sold int
	for _, ev := range a.Catalog.Events() {
		inv, err := a.Catalog.Inventory(ev.ID)
		if err != nil {
			continue
		}
		f, h, s := inv.Counts()
		free += f
		held += h
		sold += s
	}
	m := map[string]any{
		"holds_armed":     armed,
		"holds_expired":   fired,
		"holds_cancelled": cancelled,
		"holds_pending":   pending,
		"seats_free":      free,
		"seats_held":      held,
		"seats_sold":      sold,
		"uptime_sec":      time.Since(a.started).Seconds(),
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Seat Reservation API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
