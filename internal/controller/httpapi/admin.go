package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/oliver453/lochlann-se/internal/model"
)

func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := h.restaurantID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var filter model.BookingFilter
	q := r.URL.Query()
	if raw := q.Get("date"); raw != "" {
		date, err := model.ParseDate(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		filter.Date = &date
	}
	if raw := q.Get("status"); raw != "" {
		status, err := model.ParseBookingStatus(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		filter.Status = &status
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.writeError(w, r, model.NewValidationError("limit", "limit must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}

	bookings, err := h.Bookings.List(r.Context(), restaurantID, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	booking, err := h.Bookings.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) updateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, r, model.NewValidationError("body", "invalid JSON payload"))
		return
	}

	status, err := model.ParseBookingStatus(payload.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	booking, err := h.Bookings.UpdateStatus(r.Context(), id, status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{Success: true, Booking: booking})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := h.restaurantID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	stats, err := h.Bookings.Stats(r.Context(), restaurantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := h.restaurantID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tables, err := h.Tables.List(r.Context(), restaurantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (h *Handler) createTable(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := h.restaurantID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	table := model.Table{IsActive: true}
	if err := json.NewDecoder(r.Body).Decode(&table); err != nil {
		h.writeError(w, r, model.NewValidationError("body", "invalid JSON payload"))
		return
	}
	table.RestaurantID = restaurantID

	if err := h.Tables.Create(r.Context(), &table); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, table)
}

func (h *Handler) updateTable(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var patch model.TablePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, r, model.NewValidationError("body", "invalid JSON payload"))
		return
	}

	table, err := h.Tables.Update(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := h.restaurantID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	settings, err := h.Settings.Get(r.Context(), restaurantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := h.restaurantID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var payload struct {
		Booking      model.BookingSettings `json:"booking"`
		OpeningHours []model.OpeningHours  `json:"opening_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, r, model.NewValidationError("body", "invalid JSON payload"))
		return
	}

	if err := h.Settings.Save(r.Context(), restaurantID, payload.Booking, payload.OpeningHours); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) setSpecialHours(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := h.restaurantID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	date, err := model.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var special model.SpecialHours
	if err := json.NewDecoder(r.Body).Decode(&special); err != nil {
		h.writeError(w, r, model.NewValidationError("body", "invalid JSON payload"))
		return
	}
	special.RestaurantID = restaurantID
	special.Date = date

	if err := h.Settings.SetSpecialHours(r.Context(), &special); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, special)
}

func (h *Handler) clearSpecialHours(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := h.restaurantID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	date, err := model.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.Settings.ClearSpecialHours(r.Context(), restaurantID, date); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
