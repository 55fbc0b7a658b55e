package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cajuhub/roombook/libs/auth"
	"github.com/cajuhub/roombook/libs/httpx"
	"github.com/cajuhub/roombook/services/booking-service/internal/booking"
	"github.com/cajuhub/roombook/services/booking-service/internal/model"
)

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/bookings", h.Create)
	mux.HandleFunc("GET /api/v1/bookings", h.ListForSpace)
	mux.HandleFunc("GET /api/v1/bookings/occupied", h.Occupied)
	mux.HandleFunc("GET /api/v1/bookings/me", h.ListMine)
	mux.HandleFunc("GET /api/v1/bookings/user/{userID}", h.ListForUser)
	mux.HandleFunc("DELETE /api/v1/bookings/{bookingID}", h.Cancel)
	mux.HandleFunc("GET /api/v1/spaces/{spaceID}/calendar", h.Calendar)
	mux.HandleFunc("GET /api/v1/spaces/{spaceID}/free", h.FreeSlots)
	mux.HandleFunc("GET /api/v1/admin/bookings", h.ListAll)
	mux.HandleFunc("GET /api/v1/admin/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/admin/agenda", h.Agenda)
}

// callerFrom reads the identity the gateway forwards.
func callerFrom(r *http.Request) booking.Caller {
	return booking.Caller{
		UserID:  strings.TrimSpace(r.Header.Get(httpx.UserIDHeader)),
		IsAdmin: strings.EqualFold(strings.TrimSpace(r.Header.Get(httpx.RoleHeader)), auth.RoleAdmin),
	}
}

type createBookingRequest struct {
	SpaceID   string `json:"space_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type bookingResponse struct {
	ID        string `json:"id"`
	SpaceID   string `json:"space_id"`
	UserID    string `json:"user_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	CreatedAt string `json:"created_at,omitempty"`
	SpaceName string `json:"space_name,omitempty"`
	SpaceType string `json:"space_type,omitempty"`
	FloorID   string `json:"floor_id,omitempty"`
}

func toResponse(b model.Booking) bookingResponse {
	resp := bookingResponse{
		ID:        b.ID,
		SpaceID:   b.SpaceID,
		UserID:    b.UserID,
		StartTime: b.Start.UTC().Format(time.RFC3339Nano),
		EndTime:   b.End.UTC().Format(time.RFC3339Nano),
	}
	if !b.CreatedAt.IsZero() {
		resp.CreatedAt = b.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

func toDetailsResponse(items []model.BookingDetails) []bookingResponse {
	out := make([]bookingResponse, 0, len(items))
	for _, d := range items {
		resp := toResponse(d.Booking)
		resp.SpaceName, resp.SpaceType, resp.FloorID = d.SpaceName, d.SpaceType, d.FloorID
		out = append(out, resp)
	}
	return out
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid", "invalid json body")
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid", "invalid start_time")
		return
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndTime))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid", "invalid end_time")
		return
	}

	b, err := h.svc.CreateBooking(r.Context(), callerFrom(r), req.SpaceID, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/bookings/"+b.ID)
	httpx.WriteJSON(w, http.StatusCreated, toResponse(b))
}

func (h *BookingHandler) ListForSpace(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.ListForSpace(r.Context(), callerFrom(r), r.URL.Query().Get("space_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toResponse(b))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Occupied answers with the ids of spaces in use. Unparseable or empty ranges
// yield an empty list so map views degrade to "everything free".
func (h *BookingHandler) Occupied(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, errStart := time.Parse(time.RFC3339, q.Get("start_time"))
	end, errEnd := time.Parse(time.RFC3339, q.Get("end_time"))
	if errStart != nil || errEnd != nil {
		// An empty range still goes through the caller check.
		start, end = time.Time{}, time.Time{}
	}
	ids, err := h.svc.GetOccupied(r.Context(), callerFrom(r), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ids)
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.listForUser(w, r, "")
}

func (h *BookingHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	h.listForUser(w, r, r.PathValue("userID"))
}

func (h *BookingHandler) listForUser(w http.ResponseWriter, r *http.Request, userID string) {
	items, err := h.svc.ListForUser(r.Context(), callerFrom(r), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDetailsResponse(items))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.CancelBooking(r.Context(), callerFrom(r), r.PathValue("bookingID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type slotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Booked    bool   `json:"booked"`
}

type calendarResponse struct {
	SpaceID   string         `json:"space_id"`
	SpaceName string         `json:"space_name"`
	Active    bool           `json:"active"`
	WeekStart string         `json:"week_start"`
	WeekEnd   string         `json:"week_end"`
	Slots     []slotResponse `json:"slots"`
}

func (h *BookingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	var weekStart time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("week_start")); raw != "" {
		t, err := parseDay(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid", "week_start must be YYYY-MM-DD or RFC3339")
			return
		}
		weekStart = t
	}
	cal, err := h.svc.SpaceCalendar(r.Context(), callerFrom(r), r.PathValue("spaceID"), weekStart)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := calendarResponse{
		SpaceID:   cal.Space.ID,
		SpaceName: cal.Space.Name,
		Active:    cal.Space.Active,
		WeekStart: cal.Week.Start.Format(time.RFC3339Nano),
		WeekEnd:   cal.Week.End.Format(time.RFC3339Nano),
		Slots:     make([]slotResponse, 0, len(cal.Slots)),
	}
	for _, s := range cal.Slots {
		resp.Slots = append(resp.Slots, slotResponse{
			StartTime: s.Start.Format(time.RFC3339Nano),
			EndTime:   s.End.Format(time.RFC3339Nano),
			Booked:    s.Booked,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := parseDay(strings.TrimSpace(q.Get("date")))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid", "date must be YYYY-MM-DD or RFC3339")
		return
	}
	minutes, err := strconv.Atoi(q.Get("duration_minutes"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid", "duration_minutes must be an integer")
		return
	}
	starts, err := h.svc.FreeSlots(r.Context(), callerFrom(r), r.PathValue("spaceID"), day, time.Duration(minutes)*time.Minute)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]slotResponse, 0, len(starts))
	for _, s := range starts {
		out = append(out, slotResponse{
			StartTime: s.Format(time.RFC3339Nano),
			EndTime:   s.Add(time.Duration(minutes) * time.Minute).Format(time.RFC3339Nano),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func parseDay(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := booking.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	switch kind {
	case booking.KindInternal:
		msg = "internal error"
	case booking.KindUnavailable:
		msg = "booking store temporarily unavailable"
		w.Header().Set("Retry-After", "1")
	}
	if status >= 500 {
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()), "kind", kind.String(), "err", err)
	}
	httpx.WriteError(w, status, kind.String(), msg)
}

func statusFor(k booking.Kind) int {
	switch k {
	case booking.KindInvalid:
		return http.StatusBadRequest
	case booking.KindInactiveSpace:
		return http.StatusUnprocessableEntity
	case booking.KindConflict:
		return http.StatusConflict
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindUnavailable:
		return http.StatusServiceUnavailable
	case booking.KindUnauthenticated:
		return http.StatusUnauthorized
	case booking.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
