package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/oliver453/lochlann-se/internal/model"
	"github.com/oliver453/lochlann-se/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

type createBookingRequest struct {
	RestaurantID  *uuid.UUID       `json:"restaurantId"`
	Date          string           `json:"date"`
	Time          *model.TimeOfDay `json:"time"`
	PartySize     int              `json:"partySize"`
	CustomerName  string           `json:"customerName"`
	CustomerEmail string           `json:"customerEmail"`
	CustomerPhone string           `json:"customerPhone"`
	Notes         *string          `json:"notes"`
}

type bookingResponse struct {
	Success bool           `json:"success"`
	Booking *model.Booking `json:"booking"`
}

func (h *Handler) getAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("date") == "" || q.Get("partySize") == "" {
		h.writeError(w, r, model.NewValidationError("date", "date and partySize are required"))
		return
	}

	date, err := model.ParseDate(q.Get("date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	partySize, err := strconv.Atoi(q.Get("partySize"))
	if err != nil {
		h.writeError(w, r, model.NewValidationError("partySize", "partySize must be an integer"))
		return
	}

	restaurantID, err := h.restaurantID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	slots, err := h.Availability.Query(r.Context(), restaurantID, date, partySize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, model.CreatedViaWebsite)
}

func (h *Handler) createAdminBooking(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, model.CreatedViaAdmin)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, via model.CreatedVia) {
	var payload createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, r, model.NewValidationError("body", "invalid JSON payload"))
		return
	}

	if payload.Date == "" || payload.Time == nil || payload.PartySize == 0 {
		h.writeError(w, r, model.NewValidationError("body", "date, time and partySize are required"))
		return
	}

	date, err := model.ParseDate(payload.Date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	restaurantID := h.DefaultRestaurantID
	if payload.RestaurantID != nil {
		restaurantID = *payload.RestaurantID
	}

	booking, err := h.Bookings.Create(r.Context(), service.CreateBookingRequest{
		RestaurantID:   restaurantID,
		Date:           date,
		Time:           *payload.Time,
		PartySize:      payload.PartySize,
		CustomerName:   payload.CustomerName,
		CustomerEmail:  payload.CustomerEmail,
		CustomerPhone:  payload.CustomerPhone,
		Notes:          payload.Notes,
		CreatedVia:     via,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyHeader)),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, bookingResponse{Success: true, Booking: booking})
}
