package handlers

import (
	"net/http"
	"time"

	"github.com/cajuhub/roombook/libs/httpx"
)

func (h *BookingHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListAll(r.Context(), callerFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDetailsResponse(items))
}

type statsResponse struct {
	TotalBookings int `json:"total_bookings"`
	HappeningNow  int `json:"happening_now"`
	UniqueUsers   int `json:"unique_users"`
}

func (h *BookingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context(), callerFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statsResponse{
		TotalBookings: st.Total,
		HappeningNow:  st.HappeningNow,
		UniqueUsers:   st.UniqueUsers,
	})
}

type agendaItem struct {
	BookingID string `json:"booking_id"`
	UserID    string `json:"user_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type agendaRow struct {
	SpaceID   string       `json:"space_id"`
	SpaceName string       `json:"space_name"`
	Active    bool         `json:"active"`
	Occupied  bool         `json:"occupied"`
	Next      []agendaItem `json:"next"`
}

func (h *BookingHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Agenda(r.Context(), callerFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]agendaRow, 0, len(rows))
	for _, row := range rows {
		ar := agendaRow{
			SpaceID:   row.Space.ID,
			SpaceName: row.Space.Name,
			Active:    row.Space.Active,
			Occupied:  row.Occupied,
			Next:      make([]agendaItem, 0, len(row.Next)),
		}
		for _, b := range row.Next {
			ar.Next = append(ar.Next, agendaItem{
				BookingID: b.ID,
				UserID:    b.UserID,
				StartTime: b.Start.UTC().Format(time.RFC3339Nano),
				EndTime:   b.End.UTC().Format(time.RFC3339Nano),
			})
		}
		out = append(out, ar)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
