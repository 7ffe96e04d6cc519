package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/oliver453/lochlann-se/internal/model"
	"github.com/oliver453/lochlann-se/internal/service"
)

type AvailabilityQuerier interface {
	Query(ctx context.Context, restaurantID uuid.UUID, date time.Time, partySize int) ([]model.Slot, error)
}

type BookingManager interface {
	Create(ctx context.Context, req service.CreateBookingRequest) (*model.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next model.BookingStatus) (*model.Booking, error)
	List(ctx context.Context, restaurantID uuid.UUID, filter model.BookingFilter) ([]model.Booking, error)
	Stats(ctx context.Context, restaurantID uuid.UUID) (*model.DashboardStats, error)
}

type TableManager interface {
	Create(ctx context.Context, table *model.Table) error
	List(ctx context.Context, restaurantID uuid.UUID) ([]model.Table, error)
	Update(ctx context.Context, id uuid.UUID, patch model.TablePatch) (*model.Table, error)
}

type SettingsManager interface {
	Get(ctx context.Context, restaurantID uuid.UUID) (*service.RestaurantSettings, error)
	Save(ctx context.Context, restaurantID uuid.UUID, booking model.BookingSettings, week []model.OpeningHours) error
	SetSpecialHours(ctx context.Context, special *model.SpecialHours) error
	ClearSpecialHours(ctx context.Context, restaurantID uuid.UUID, date time.Time) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Availability AvailabilityQuerier
	Bookings     BookingManager
	Tables       TableManager
	Settings     SettingsManager
	Health       Pinger

	// DefaultRestaurantID is used when a request names no restaurant.
	DefaultRestaurantID uuid.UUID
	// CreateLimiter throttles public booking creation; nil disables it.
	CreateLimiter *RateLimiter
	Logger        *zap.Logger
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.healthz).Methods("GET")
	r.HandleFunc("/readyz", h.readyz).Methods("GET")

	public := r.PathPrefix("/api/booking").Subrouter()
	public.HandleFunc("/availability", h.getAvailability).Methods("GET")
	public.Handle("/create", h.limitCreate(http.HandlerFunc(h.createBooking))).Methods("POST")

	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.HandleFunc("/bookings", h.listBookings).Methods("GET")
	admin.HandleFunc("/bookings", h.createAdminBooking).Methods("POST")
	admin.HandleFunc("/bookings/{id}", h.getBooking).Methods("GET")
	admin.HandleFunc("/bookings/{id}", h.updateBookingStatus).Methods("PATCH")
	admin.HandleFunc("/stats", h.getStats).Methods("GET")
	admin.HandleFunc("/tables", h.listTables).Methods("GET")
	admin.HandleFunc("/tables", h.createTable).Methods("POST")
	admin.HandleFunc("/tables/{id}", h.updateTable).Methods("PATCH")
	admin.HandleFunc("/settings", h.getSettings).Methods("GET")
	admin.HandleFunc("/settings", h.saveSettings).Methods("PUT")
	admin.HandleFunc("/special-hours/{date}", h.setSpecialHours).Methods("PUT")
	admin.HandleFunc("/special-hours/{date}", h.clearSpecialHours).Methods("DELETE")
}

// NewRouter wires routes, metrics, access logging and CORS.
func NewRouter(handler *Handler) http.Handler {
	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.Use(accessLog(handler.Logger))

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
	}).Handler(r)
}

func (h *Handler) limitCreate(next http.Handler) http.Handler {
	if h.CreateLimiter == nil {
		return next
	}
	return h.CreateLimiter.Middleware(next)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Health.Ping(ctx); err != nil {
			h.Logger.Warn("Readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// restaurantID reads the restaurantId query parameter, falling back to the default.
func (h *Handler) restaurantID(r *http.Request) (uuid.UUID, error) {
	raw := r.URL.Query().Get("restaurantId")
	if raw == "" {
		if h.DefaultRestaurantID == uuid.Nil {
			return uuid.Nil, model.NewValidationError("restaurantId", "restaurantId is required")
		}
		return h.DefaultRestaurantID, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, model.NewValidationError("restaurantId", "restaurantId must be a uuid")
	}
	return id, nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, model.NewValidationError("id", "id must be a uuid")
	}
	return id, nil
}
